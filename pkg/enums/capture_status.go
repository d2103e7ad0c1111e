package enums

import "fmt"

// CaptureStatus is the status of one partial capture.
type CaptureStatus string

const (
	CaptureStatusStarted CaptureStatus = "started"
	CaptureStatusPending CaptureStatus = "pending"
	CaptureStatusCharged CaptureStatus = "charged"
	CaptureStatusFailed  CaptureStatus = "failed"
)

var validCaptureStatuses = []CaptureStatus{
	CaptureStatusStarted,
	CaptureStatusPending,
	CaptureStatusCharged,
	CaptureStatusFailed,
}

// String implements fmt.Stringer.
func (c CaptureStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CaptureStatus.
func (c CaptureStatus) IsValid() bool {
	for _, candidate := range validCaptureStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCaptureStatus converts raw input into a CaptureStatus.
func ParseCaptureStatus(value string) (CaptureStatus, error) {
	for _, candidate := range validCaptureStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid capture status %q", value)
}
