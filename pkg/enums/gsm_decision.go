package enums

import "fmt"

// GsmDecision is the action configured for a connector error in the gateway status map.
type GsmDecision string

const (
	GsmDecisionRetry     GsmDecision = "retry"
	GsmDecisionRequeue   GsmDecision = "requeue"
	GsmDecisionDoDefault GsmDecision = "do_default"
)

var validGsmDecisions = []GsmDecision{
	GsmDecisionRetry,
	GsmDecisionRequeue,
	GsmDecisionDoDefault,
}

// String implements fmt.Stringer.
func (g GsmDecision) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GsmDecision.
func (g GsmDecision) IsValid() bool {
	for _, candidate := range validGsmDecisions {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGsmDecision converts raw input into a GsmDecision.
func ParseGsmDecision(value string) (GsmDecision, error) {
	for _, candidate := range validGsmDecisions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gsm decision %q", value)
}
