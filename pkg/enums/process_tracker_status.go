package enums

import "fmt"

// ProcessTrackerStatus is the scheduler-facing status of a process tracker row.
type ProcessTrackerStatus string

const (
	ProcessTrackerStatusNew            ProcessTrackerStatus = "new"
	ProcessTrackerStatusPending        ProcessTrackerStatus = "pending"
	ProcessTrackerStatusProcessStarted ProcessTrackerStatus = "process_started"
	ProcessTrackerStatusFinish         ProcessTrackerStatus = "finish"
	ProcessTrackerStatusReview         ProcessTrackerStatus = "review"
)

var validProcessTrackerStatuses = []ProcessTrackerStatus{
	ProcessTrackerStatusNew,
	ProcessTrackerStatusPending,
	ProcessTrackerStatusProcessStarted,
	ProcessTrackerStatusFinish,
	ProcessTrackerStatusReview,
}

// String implements fmt.Stringer.
func (p ProcessTrackerStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProcessTrackerStatus.
func (p ProcessTrackerStatus) IsValid() bool {
	for _, candidate := range validProcessTrackerStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProcessTrackerStatus converts raw input into a ProcessTrackerStatus.
func ParseProcessTrackerStatus(value string) (ProcessTrackerStatus, error) {
	for _, candidate := range validProcessTrackerStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid process tracker status %q", value)
}
