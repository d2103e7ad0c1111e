package enums

import "fmt"

// IntentStatus is the lifecycle status of a payment intent.
type IntentStatus string

const (
	IntentStatusRequiresPaymentMethod                 IntentStatus = "requires_payment_method"
	IntentStatusRequiresConfirmation                  IntentStatus = "requires_confirmation"
	IntentStatusRequiresCustomerAction                IntentStatus = "requires_customer_action"
	IntentStatusRequiresMerchantAction                IntentStatus = "requires_merchant_action"
	IntentStatusRequiresCapture                       IntentStatus = "requires_capture"
	IntentStatusProcessing                            IntentStatus = "processing"
	IntentStatusSucceeded                             IntentStatus = "succeeded"
	IntentStatusFailed                                IntentStatus = "failed"
	IntentStatusCancelled                             IntentStatus = "cancelled"
	IntentStatusPartiallyCaptured                     IntentStatus = "partially_captured"
	IntentStatusPartiallyCapturedAndCapturable        IntentStatus = "partially_captured_and_capturable"
	IntentStatusPartiallyAuthorizedAndRequiresCapture IntentStatus = "partially_authorized_and_requires_capture"
	IntentStatusConflicted                            IntentStatus = "conflicted"
)

var validIntentStatuses = []IntentStatus{
	IntentStatusRequiresPaymentMethod,
	IntentStatusRequiresConfirmation,
	IntentStatusRequiresCustomerAction,
	IntentStatusRequiresMerchantAction,
	IntentStatusRequiresCapture,
	IntentStatusProcessing,
	IntentStatusSucceeded,
	IntentStatusFailed,
	IntentStatusCancelled,
	IntentStatusPartiallyCaptured,
	IntentStatusPartiallyCapturedAndCapturable,
	IntentStatusPartiallyAuthorizedAndRequiresCapture,
	IntentStatusConflicted,
}

// String implements fmt.Stringer.
func (i IntentStatus) String() string {
	return string(i)
}

// IsValid reports whether the value is a known IntentStatus.
func (i IntentStatus) IsValid() bool {
	for _, candidate := range validIntentStatuses {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseIntentStatus converts raw input into a IntentStatus.
func ParseIntentStatus(value string) (IntentStatus, error) {
	for _, candidate := range validIntentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid intent status %q", value)
}

// IsTerminal reports whether no further connector interaction is expected.
func (i IntentStatus) IsTerminal() bool {
	switch i {
	case IntentStatusSucceeded, IntentStatusFailed, IntentStatusCancelled, IntentStatusPartiallyCaptured:
		return true
	}
	return false
}
