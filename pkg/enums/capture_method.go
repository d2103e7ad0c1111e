package enums

import "fmt"

// CaptureMethod controls whether authorization and capture happen together.
type CaptureMethod string

const (
	CaptureMethodAutomatic      CaptureMethod = "automatic"
	CaptureMethodManual         CaptureMethod = "manual"
	CaptureMethodManualMultiple CaptureMethod = "manual_multiple"
)

var validCaptureMethods = []CaptureMethod{
	CaptureMethodAutomatic,
	CaptureMethodManual,
	CaptureMethodManualMultiple,
}

// String implements fmt.Stringer.
func (c CaptureMethod) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CaptureMethod.
func (c CaptureMethod) IsValid() bool {
	for _, candidate := range validCaptureMethods {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCaptureMethod converts raw input into a CaptureMethod.
func ParseCaptureMethod(value string) (CaptureMethod, error) {
	for _, candidate := range validCaptureMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid capture method %q", value)
}
