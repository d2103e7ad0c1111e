package payments

import (
	"time"

	"github.com/juspay/hyperswitch-sub035/internal/operations"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
)

type paymentResponse struct {
	PaymentID              string            `json:"payment_id"`
	MerchantID             string            `json:"merchant_id"`
	ProfileID              string            `json:"profile_id"`
	Status                 string            `json:"status"`
	Amount                 int64             `json:"amount"`
	Currency               string            `json:"currency"`
	CaptureMethod          string            `json:"capture_method"`
	AmountCaptured         *int64            `json:"amount_captured,omitempty"`
	AmountCapturable       int64             `json:"amount_capturable"`
	AttemptCount           int               `json:"attempt_count"`
	ActiveAttemptID        *string           `json:"active_attempt_id,omitempty"`
	Connector              *string           `json:"connector,omitempty"`
	MerchantConnectorID    *string           `json:"merchant_connector_id,omitempty"`
	ConnectorTransactionID *string           `json:"connector_transaction_id,omitempty"`
	ErrorCode              *string           `json:"error_code,omitempty"`
	ErrorMessage           *string           `json:"error_message,omitempty"`
	CustomerID             *string           `json:"customer_id,omitempty"`
	Description            *string           `json:"description,omitempty"`
	ReturnURL              *string           `json:"return_url,omitempty"`
	Attempts               []attemptResponse `json:"attempts,omitempty"`
	Captures               []captureResponse `json:"captures,omitempty"`
	RecoveryScheduled      *bool             `json:"recovery_scheduled,omitempty"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
}

type attemptResponse struct {
	AttemptID              string    `json:"attempt_id"`
	Status                 string    `json:"status"`
	AttemptCount           int       `json:"attempt_count"`
	Amount                 int64     `json:"amount"`
	Connector              *string   `json:"connector,omitempty"`
	MerchantConnectorID    *string   `json:"merchant_connector_id,omitempty"`
	ConnectorTransactionID *string   `json:"connector_transaction_id,omitempty"`
	ErrorCode              *string   `json:"error_code,omitempty"`
	ErrorMessage           *string   `json:"error_message,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
}

type captureResponse struct {
	CaptureID          string  `json:"capture_id"`
	Status             string  `json:"status"`
	Amount             int64   `json:"amount"`
	Sequence           int     `json:"capture_sequence"`
	ConnectorCaptureID *string `json:"connector_capture_id,omitempty"`
	ErrorCode          *string `json:"error_code,omitempty"`
	ErrorMessage       *string `json:"error_message,omitempty"`
}

func newPaymentResponse(intent models.PaymentIntent, attempt *models.PaymentAttempt) paymentResponse {
	resp := paymentResponse{
		PaymentID:       intent.PaymentID,
		MerchantID:      intent.MerchantID,
		ProfileID:       intent.ProfileID,
		Status:          string(intent.Status),
		Amount:          intent.Amount,
		Currency:        intent.Currency,
		CaptureMethod:   string(intent.CaptureMethod),
		AmountCaptured:  intent.AmountCaptured,
		AttemptCount:    intent.AttemptCount,
		ActiveAttemptID: intent.ActiveAttemptID,
		CustomerID:      intent.CustomerID,
		Description:     intent.Description,
		ReturnURL:       intent.ReturnURL,
		CreatedAt:       intent.CreatedAt,
		UpdatedAt:       intent.UpdatedAt,
	}
	if attempt != nil && attempt.AttemptID != "" {
		resp.AmountCapturable = attempt.AmountCapturable
		resp.Connector = attempt.Connector
		resp.MerchantConnectorID = attempt.MerchantConnectorID
		resp.ConnectorTransactionID = attempt.ConnectorTransactionID
		resp.ErrorCode = attempt.ErrorCode
		resp.ErrorMessage = attempt.ErrorMessage
	}
	return resp
}

func newFlowResponse(data operations.PaymentData) paymentResponse {
	resp := newPaymentResponse(data.Intent, &data.Attempt)
	if data.Captures != nil {
		resp.Captures = newCaptureResponses(data.Captures.All())
	} else if data.Capture != nil {
		resp.Captures = newCaptureResponses([]models.Capture{*data.Capture})
	}
	return resp
}

func newViewResponse(view operations.PaymentView) paymentResponse {
	var active *models.PaymentAttempt
	for i := range view.Attempts {
		if view.Intent.ActiveAttemptID != nil && view.Attempts[i].AttemptID == *view.Intent.ActiveAttemptID {
			active = &view.Attempts[i]
		}
	}
	resp := newPaymentResponse(view.Intent, active)
	resp.Attempts = make([]attemptResponse, 0, len(view.Attempts))
	for _, a := range view.Attempts {
		resp.Attempts = append(resp.Attempts, attemptResponse{
			AttemptID:              a.AttemptID,
			Status:                 string(a.Status),
			AttemptCount:           a.AttemptCount,
			Amount:                 a.NetAmount,
			Connector:              a.Connector,
			MerchantConnectorID:    a.MerchantConnectorID,
			ConnectorTransactionID: a.ConnectorTransactionID,
			ErrorCode:              a.ErrorCode,
			ErrorMessage:           a.ErrorMessage,
			CreatedAt:              a.CreatedAt,
		})
	}
	resp.Captures = newCaptureResponses(view.Captures)
	return resp
}

func newCaptureResponses(captures []models.Capture) []captureResponse {
	if len(captures) == 0 {
		return nil
	}
	out := make([]captureResponse, 0, len(captures))
	for _, c := range captures {
		out = append(out, captureResponse{
			CaptureID:          c.CaptureID,
			Status:             string(c.Status),
			Amount:             c.Amount,
			Sequence:           c.CaptureSequence,
			ConnectorCaptureID: c.ConnectorCaptureID,
			ErrorCode:          c.ErrorCode,
			ErrorMessage:       c.ErrorMessage,
		})
	}
	return out
}
