package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/juspay/hyperswitch-sub035/pkg/enums"
)

// OutboxEvent is an append-only outgoing webhook waiting to be relayed.
type OutboxEvent struct {
	ID           uuid.UUID              `gorm:"column:id;primaryKey"`
	EventType    enums.OutboxEventType  `gorm:"column:event_type;not null;uniqueIndex:ux_outbox_events_event_object"`
	EventClass   enums.OutboxEventClass `gorm:"column:event_class;not null"`
	ObjectID     string                 `gorm:"column:object_id;not null;uniqueIndex:ux_outbox_events_event_object"`
	MerchantID   string                 `gorm:"column:merchant_id;not null"`
	Payload      datatypes.JSON         `gorm:"column:payload;not null"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
	PublishedAt  *time.Time             `gorm:"column:published_at"`
	AttemptCount int                    `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string                `gorm:"column:last_error"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }
