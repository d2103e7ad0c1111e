package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	dbpkg "github.com/juspay/hyperswitch-sub035/pkg/db"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
)

const (
	envelopeVersion  = 1
	uniqueEventIndex = "ux_outbox_events_event_object"
)

// Event is an outgoing webhook about one object.
type Event struct {
	EventType  enums.OutboxEventType
	EventClass enums.OutboxEventClass
	ObjectID   string
	MerchantID string
	Content    any
	OccurredAt time.Time
}

type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Emit queues event inside tx.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event Event) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !event.EventType.IsValid() {
		return fmt.Errorf("invalid event type %q", event.EventType)
	}
	if !event.EventClass.IsValid() {
		return fmt.Errorf("invalid event class %q", event.EventClass)
	}
	if event.ObjectID == "" {
		return errors.New("object id required")
	}
	content, err := json.Marshal(event.Content)
	if err != nil {
		return err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	id := uuid.New()
	envelope := PayloadEnvelope{
		Version:    envelopeVersion,
		EventID:    id.String(),
		EventType:  event.EventType,
		EventClass: event.EventClass,
		ObjectID:   event.ObjectID,
		MerchantID: event.MerchantID,
		OccurredAt: event.OccurredAt,
		Content:    content,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := models.OutboxEvent{
		ID:         id,
		EventType:  event.EventType,
		EventClass: event.EventClass,
		ObjectID:   event.ObjectID,
		MerchantID: event.MerchantID,
		Payload:    datatypes.JSON(payload),
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event_id":    envelope.EventID,
			"event_type":  event.EventType,
			"event_class": event.EventClass,
			"object_id":   event.ObjectID,
		})
		s.logg.Info(logCtx, "outbox event queued")
	}
	return nil
}

// EmitIfNotExists queues event unless one with the same type already exists for the object.
func (s *Service) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event Event) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	exists, err := s.repo.ExistsTx(tx, event.EventType, event.ObjectID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := s.Emit(ctx, tx, event); err != nil {
		if dbpkg.IsUniqueViolation(err, uniqueEventIndex) {
			return nil
		}
		return err
	}
	return nil
}
