package operations

import (
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
)

var (
	authorizeAllowed = []enums.IntentStatus{
		enums.IntentStatusRequiresPaymentMethod,
		enums.IntentStatusRequiresConfirmation,
	}
	recoveryAuthorizeAllowed = []enums.IntentStatus{
		enums.IntentStatusRequiresPaymentMethod,
		enums.IntentStatusFailed,
	}
	captureAllowed = []enums.IntentStatus{
		enums.IntentStatusRequiresCapture,
		enums.IntentStatusPartiallyCapturedAndCapturable,
	}
	voidAllowed = []enums.IntentStatus{
		enums.IntentStatusRequiresCapture,
		enums.IntentStatusPartiallyCapturedAndCapturable,
		enums.IntentStatusPartiallyAuthorizedAndRequiresCapture,
	}
	approveAllowed = []enums.IntentStatus{
		enums.IntentStatusRequiresMerchantAction,
	}
	attemptRecordAllowed = []enums.IntentStatus{
		enums.IntentStatusRequiresPaymentMethod,
		enums.IntentStatusFailed,
	}
	psyncAllowed = []enums.IntentStatus{
		enums.IntentStatusProcessing,
		enums.IntentStatusRequiresCapture,
		enums.IntentStatusRequiresCustomerAction,
		enums.IntentStatusRequiresMerchantAction,
		enums.IntentStatusPartiallyCapturedAndCapturable,
		enums.IntentStatusPartiallyAuthorizedAndRequiresCapture,
	}
)

// ValidateStatusForOperation fails with a state conflict when status is not
// in allowed. It never touches storage.
func ValidateStatusForOperation(flow enums.PaymentFlow, status enums.IntentStatus, allowed []enums.IntentStatus) error {
	for _, s := range allowed {
		if s == status {
			return nil
		}
	}
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = s.String()
	}
	return pkgerrors.NewUnexpectedState(pkgerrors.UnexpectedState{
		CurrentFlow:   flowName(flow),
		FieldName:     "status",
		CurrentValue:  status.String(),
		AllowedStates: names,
	})
}

func flowName(flow enums.PaymentFlow) string {
	switch flow {
	case enums.PaymentFlowAuthorize:
		return "PaymentConfirm"
	case enums.PaymentFlowCapture:
		return "PaymentCapture"
	case enums.PaymentFlowVoid:
		return "PaymentCancel"
	case enums.PaymentFlowApprove:
		return "PaymentApprove"
	case enums.PaymentFlowAttemptRecord:
		return "PaymentAttemptRecord"
	case enums.PaymentFlowPSync:
		return "PaymentStatus"
	default:
		return flow.String()
	}
}
