package enums

import "fmt"

// PaymentFlow names an operation executed through the payment pipeline.
type PaymentFlow string

const (
	PaymentFlowAuthorize     PaymentFlow = "authorize"
	PaymentFlowCapture       PaymentFlow = "capture"
	PaymentFlowVoid          PaymentFlow = "void"
	PaymentFlowApprove       PaymentFlow = "approve"
	PaymentFlowAttemptRecord PaymentFlow = "attempt_record"
	PaymentFlowPSync         PaymentFlow = "psync"
)

var validPaymentFlows = []PaymentFlow{
	PaymentFlowAuthorize,
	PaymentFlowCapture,
	PaymentFlowVoid,
	PaymentFlowApprove,
	PaymentFlowAttemptRecord,
	PaymentFlowPSync,
}

// String implements fmt.Stringer.
func (p PaymentFlow) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentFlow.
func (p PaymentFlow) IsValid() bool {
	for _, candidate := range validPaymentFlows {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentFlow converts raw input into a PaymentFlow.
func ParsePaymentFlow(value string) (PaymentFlow, error) {
	for _, candidate := range validPaymentFlows {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment flow %q", value)
}
