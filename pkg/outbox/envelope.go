package outbox

import (
	"encoding/json"
	"time"

	"github.com/juspay/hyperswitch-sub035/pkg/enums"
)

// PayloadEnvelope is the stable webhook body stored in outbox_events and
// relayed to subscribers unchanged.
type PayloadEnvelope struct {
	Version    int                    `json:"version"`
	EventID    string                 `json:"event_id"`
	EventType  enums.OutboxEventType  `json:"event_type"`
	EventClass enums.OutboxEventClass `json:"event_class"`
	ObjectID   string                 `json:"object_id"`
	MerchantID string                 `json:"merchant_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Content    json.RawMessage        `json:"content"`
}
