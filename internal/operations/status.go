package operations

import "github.com/juspay/hyperswitch-sub035/pkg/enums"

// IntentStatusForAttempt maps an attempt status onto its intent status.
func IntentStatusForAttempt(status enums.AttemptStatus) enums.IntentStatus {
	switch status {
	case enums.AttemptStatusCharged:
		return enums.IntentStatusSucceeded
	case enums.AttemptStatusAuthorized, enums.AttemptStatusVoidFailed:
		return enums.IntentStatusRequiresCapture
	case enums.AttemptStatusPartialCharged:
		return enums.IntentStatusPartiallyCaptured
	case enums.AttemptStatusPartialChargedAndChargeable:
		return enums.IntentStatusPartiallyCapturedAndCapturable
	case enums.AttemptStatusAuthenticationPending:
		return enums.IntentStatusRequiresCustomerAction
	case enums.AttemptStatusVoided:
		return enums.IntentStatusCancelled
	case enums.AttemptStatusAuthenticationFailed,
		enums.AttemptStatusAuthorizationFailed,
		enums.AttemptStatusCaptureFailed,
		enums.AttemptStatusFailure,
		enums.AttemptStatusRouterDeclined:
		return enums.IntentStatusFailed
	default:
		return enums.IntentStatusProcessing
	}
}
