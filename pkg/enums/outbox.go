package enums

import "fmt"

// OutboxEventClass groups outgoing webhook events by the object they describe.
type OutboxEventClass string

const (
	EventClassPayments OutboxEventClass = "payments"
	EventClassRefunds  OutboxEventClass = "refunds"
)

var validEventClasses = []OutboxEventClass{
	EventClassPayments,
	EventClassRefunds,
}

// IsValid reports whether the value matches a known event class.
func (c OutboxEventClass) IsValid() bool {
	for _, candidate := range validEventClasses {
		if candidate == c {
			return true
		}
	}
	return false
}

// OutboxEventType is the merchant-facing webhook event type.
type OutboxEventType string

const (
	EventPaymentSucceeded         OutboxEventType = "payment_succeeded"
	EventPaymentFailed            OutboxEventType = "payment_failed"
	EventPaymentProcessing        OutboxEventType = "payment_processing"
	EventPaymentCancelled         OutboxEventType = "payment_cancelled"
	EventPaymentAuthorized        OutboxEventType = "payment_authorized"
	EventPaymentCaptured          OutboxEventType = "payment_captured"
	EventPaymentPartiallyCaptured OutboxEventType = "payment_partially_captured"
	EventActionRequired           OutboxEventType = "action_required"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPaymentSucceeded,
	EventPaymentFailed,
	EventPaymentProcessing,
	EventPaymentCancelled,
	EventPaymentAuthorized,
	EventPaymentCaptured,
	EventPaymentPartiallyCaptured,
	EventActionRequired,
}

// IsValid reports whether the value matches a known webhook event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}

// EventTypeForIntentStatus maps a settled intent status onto the webhook it triggers.
func EventTypeForIntentStatus(status IntentStatus) (OutboxEventType, bool) {
	switch status {
	case IntentStatusSucceeded:
		return EventPaymentSucceeded, true
	case IntentStatusFailed:
		return EventPaymentFailed, true
	case IntentStatusProcessing:
		return EventPaymentProcessing, true
	case IntentStatusCancelled:
		return EventPaymentCancelled, true
	case IntentStatusRequiresCapture:
		return EventPaymentAuthorized, true
	case IntentStatusPartiallyCaptured, IntentStatusPartiallyCapturedAndCapturable:
		return EventPaymentPartiallyCaptured, true
	case IntentStatusRequiresCustomerAction, IntentStatusRequiresMerchantAction:
		return EventActionRequired, true
	}
	return "", false
}
