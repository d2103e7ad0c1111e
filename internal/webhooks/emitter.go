// Package webhooks turns payment state changes into outgoing merchant webhooks.
// Events are written to the outbox inside the caller's transaction and relayed
// to Pub/Sub by cmd/outbox-publisher.
package webhooks

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	"github.com/juspay/hyperswitch-sub035/pkg/outbox"
)

// PaymentContent is the body merchants receive for payment events.
type PaymentContent struct {
	PaymentID      string             `json:"payment_id"`
	MerchantID     string             `json:"merchant_id"`
	Status         enums.IntentStatus `json:"status"`
	Amount         int64              `json:"amount"`
	AmountCaptured *int64             `json:"amount_captured,omitempty"`
	Currency       string             `json:"currency"`
	AttemptID      string             `json:"attempt_id,omitempty"`
	Connector      string             `json:"connector,omitempty"`
	ErrorCode      *string            `json:"error_code,omitempty"`
	ErrorMessage   *string            `json:"error_message,omitempty"`
	UpdatedAt      time.Time          `json:"updated"`
}

type queue interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.Event) error
}

type Emitter struct {
	outbox queue
}

func NewEmitter(svc *outbox.Service) (*Emitter, error) {
	if svc == nil {
		return nil, errors.New("outbox service required")
	}
	return &Emitter{outbox: svc}, nil
}

// EmitPayment queues the webhook for the intent's current status, if that
// status has one. Each event type is sent at most once per payment.
func (e *Emitter) EmitPayment(ctx context.Context, tx *gorm.DB, intent models.PaymentIntent, attempt *models.PaymentAttempt) (bool, error) {
	eventType, ok := enums.EventTypeForIntentStatus(intent.Status)
	if !ok {
		return false, nil
	}
	return true, e.Emit(ctx, tx, eventType, intent, attempt)
}

// Emit queues eventType for the payment regardless of its status.
func (e *Emitter) Emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, intent models.PaymentIntent, attempt *models.PaymentAttempt) error {
	content := PaymentContent{
		PaymentID:      intent.PaymentID,
		MerchantID:     intent.MerchantID,
		Status:         intent.Status,
		Amount:         intent.Amount,
		AmountCaptured: intent.AmountCaptured,
		Currency:       intent.Currency,
		UpdatedAt:      intent.UpdatedAt,
	}
	if attempt != nil {
		content.AttemptID = attempt.AttemptID
		if attempt.Connector != nil {
			content.Connector = *attempt.Connector
		}
		content.ErrorCode = attempt.ErrorCode
		content.ErrorMessage = attempt.ErrorMessage
	}
	return e.outbox.EmitIfNotExists(ctx, tx, outbox.Event{
		EventType:  eventType,
		EventClass: enums.EventClassPayments,
		ObjectID:   intent.PaymentID,
		MerchantID: intent.MerchantID,
		Content:    content,
	})
}
