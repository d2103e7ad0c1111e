package connectors

import (
	"context"
	"fmt"
	"strings"

	"github.com/juspay/hyperswitch-sub035/pkg/enums"
)

// PaymentMethod is the decrypted payment method staged on an attempt.
type PaymentMethod struct {
	Type         string `json:"type"`
	Token        string `json:"token"`
	Email        string `json:"email,omitempty"`
	Installments int    `json:"installments,omitempty"`
}

// Credentials are the decrypted merchant connector account details.
type Credentials map[string]string

// Get returns the trimmed value stored under key.
func (c Credentials) Get(key string) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c[key])
}

// RouterData is everything a connector needs for one call. Amounts are minor units.
type RouterData struct {
	Flow                   enums.PaymentFlow
	MerchantID             string
	PaymentID              string
	AttemptID              string
	MerchantConnectorID    string
	Amount                 int64
	Currency               string
	AmountToCapture        int64
	CaptureMethod          enums.CaptureMethod
	ConnectorTransactionID string
	CaptureSequence        int
	PaymentMethod          *PaymentMethod
	Credentials            Credentials
	IdempotencyKey         string
}

// Response is a connector's successful answer.
type Response struct {
	Status                 enums.AttemptStatus
	ConnectorTransactionID string
	ConnectorCaptureID     string
	AmountCaptured         int64
	AmountCapturable       int64
	RawStatus              string
}

// ErrorResponse is a normalized connector failure.
type ErrorResponse struct {
	Code       string
	Message    string
	Reason     string
	StatusCode int
	// AttemptStatus is stamped on the attempt; empty means the flow's failure status.
	AttemptStatus          enums.AttemptStatus
	ConnectorTransactionID string
}

func (e *ErrorResponse) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("connector error %s: %s", e.Code, e.Message)
}

// Connector is one external processor.
type Connector interface {
	Name() string
	Authorize(ctx context.Context, data RouterData) (*Response, error)
	Capture(ctx context.Context, data RouterData) (*Response, error)
	Void(ctx context.Context, data RouterData) (*Response, error)
	Sync(ctx context.Context, data RouterData) (*Response, error)
}

// Result carries exactly one of Response or Error.
type Result struct {
	Connector string
	Response  *Response
	Error     *ErrorResponse
}

func (r Result) Failed() bool {
	return r.Error != nil
}

// NotSupported is returned by connectors for flows they do not implement.
func NotSupported(connector string, flow enums.PaymentFlow) *ErrorResponse {
	return &ErrorResponse{
		Code:    "not_supported",
		Message: fmt.Sprintf("%s does not support %s", connector, flow),
	}
}
