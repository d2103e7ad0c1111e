package enums

import "fmt"

// AttemptStatus is the status of a single connector attempt.
type AttemptStatus string

const (
	AttemptStatusStarted                     AttemptStatus = "started"
	AttemptStatusAuthenticationPending       AttemptStatus = "authentication_pending"
	AttemptStatusAuthenticationFailed        AttemptStatus = "authentication_failed"
	AttemptStatusAuthorizing                 AttemptStatus = "authorizing"
	AttemptStatusAuthorized                  AttemptStatus = "authorized"
	AttemptStatusAuthorizationFailed         AttemptStatus = "authorization_failed"
	AttemptStatusCharged                     AttemptStatus = "charged"
	AttemptStatusCaptureInitiated            AttemptStatus = "capture_initiated"
	AttemptStatusCaptureFailed               AttemptStatus = "capture_failed"
	AttemptStatusPartialCharged              AttemptStatus = "partial_charged"
	AttemptStatusPartialChargedAndChargeable AttemptStatus = "partial_charged_and_chargeable"
	AttemptStatusVoidInitiated               AttemptStatus = "void_initiated"
	AttemptStatusVoided                      AttemptStatus = "voided"
	AttemptStatusVoidFailed                  AttemptStatus = "void_failed"
	AttemptStatusPending                     AttemptStatus = "pending"
	AttemptStatusFailure                     AttemptStatus = "failure"
	AttemptStatusUnresolved                  AttemptStatus = "unresolved"
	AttemptStatusRouterDeclined              AttemptStatus = "router_declined"
)

var validAttemptStatuses = []AttemptStatus{
	AttemptStatusStarted,
	AttemptStatusAuthenticationPending,
	AttemptStatusAuthenticationFailed,
	AttemptStatusAuthorizing,
	AttemptStatusAuthorized,
	AttemptStatusAuthorizationFailed,
	AttemptStatusCharged,
	AttemptStatusCaptureInitiated,
	AttemptStatusCaptureFailed,
	AttemptStatusPartialCharged,
	AttemptStatusPartialChargedAndChargeable,
	AttemptStatusVoidInitiated,
	AttemptStatusVoided,
	AttemptStatusVoidFailed,
	AttemptStatusPending,
	AttemptStatusFailure,
	AttemptStatusUnresolved,
	AttemptStatusRouterDeclined,
}

// String implements fmt.Stringer.
func (a AttemptStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AttemptStatus.
func (a AttemptStatus) IsValid() bool {
	for _, candidate := range validAttemptStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAttemptStatus converts raw input into a AttemptStatus.
func ParseAttemptStatus(value string) (AttemptStatus, error) {
	for _, candidate := range validAttemptStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid attempt status %q", value)
}
