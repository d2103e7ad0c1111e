package operations

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
)

func TestValidateStatusForOperation(t *testing.T) {
	assert.NoError(t, ValidateStatusForOperation(enums.PaymentFlowVoid, enums.IntentStatusPartiallyAuthorizedAndRequiresCapture, voidAllowed))

	err := ValidateStatusForOperation(enums.PaymentFlowVoid, enums.IntentStatusSucceeded, voidAllowed)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
	state := pkgerrors.As(err).Details().(pkgerrors.UnexpectedState)
	assert.Equal(t, "PaymentCancel", state.CurrentFlow)
	assert.Len(t, state.AllowedStates, 3)
}

func TestPSyncAllowsOnlyNonTerminalStatuses(t *testing.T) {
	for _, s := range psyncAllowed {
		assert.False(t, s.IsTerminal(), s.String())
	}
}

func TestIntentStatusForAttempt(t *testing.T) {
	cases := map[enums.AttemptStatus]enums.IntentStatus{
		enums.AttemptStatusCharged:                     enums.IntentStatusSucceeded,
		enums.AttemptStatusAuthorized:                  enums.IntentStatusRequiresCapture,
		enums.AttemptStatusPartialCharged:              enums.IntentStatusPartiallyCaptured,
		enums.AttemptStatusPartialChargedAndChargeable: enums.IntentStatusPartiallyCapturedAndCapturable,
		enums.AttemptStatusVoided:                      enums.IntentStatusCancelled,
		enums.AttemptStatusVoidFailed:                  enums.IntentStatusRequiresCapture,
		enums.AttemptStatusAuthorizationFailed:         enums.IntentStatusFailed,
		enums.AttemptStatusRouterDeclined:              enums.IntentStatusFailed,
		enums.AttemptStatusPending:                     enums.IntentStatusProcessing,
		enums.AttemptStatusAuthenticationPending:       enums.IntentStatusRequiresCustomerAction,
	}
	for attempt, want := range cases {
		assert.Equal(t, want, IntentStatusForAttempt(attempt), attempt.String())
	}
}
