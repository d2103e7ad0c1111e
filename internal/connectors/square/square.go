// Package square adapts the Square payments API to the connector interface.
package square

import (
	"context"
	"net/http"

	sq "github.com/square/square-go-sdk"

	"github.com/juspay/hyperswitch-sub035/internal/connectors"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	sqclient "github.com/juspay/hyperswitch-sub035/pkg/square"
)

const Name = "square"

// API is the subset of pkg/square.Client used here.
type API interface {
	CreatePayment(ctx context.Context, params sqclient.PaymentCreateParams) (*sq.Payment, error)
	CompletePayment(ctx context.Context, paymentID string) (*sq.Payment, error)
	CancelPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
}

type Connector struct {
	api API
}

func New(api API) *Connector {
	return &Connector{api: api}
}

func (c *Connector) Name() string { return Name }

func (c *Connector) Authorize(ctx context.Context, data connectors.RouterData) (*connectors.Response, error) {
	source := ""
	if data.PaymentMethod != nil {
		source = data.PaymentMethod.Token
	}
	if source == "" {
		return nil, &connectors.ErrorResponse{
			Code: "missing_source", Message: "payment method token is required", StatusCode: http.StatusBadRequest,
		}
	}
	payment, err := c.api.CreatePayment(ctx, sqclient.PaymentCreateParams{
		AmountMinor:    data.Amount,
		Currency:       data.Currency,
		LocationID:     data.Credentials.Get("location_id"),
		SourceID:       source,
		IdempotencyKey: data.IdempotencyKey,
		ReferenceID:    data.PaymentID,
		Autocomplete:   data.CaptureMethod == enums.CaptureMethodAutomatic,
	})
	if err != nil {
		return nil, errorResponse(err, enums.AttemptStatusAuthorizationFailed)
	}
	return response(payment), nil
}

func (c *Connector) Capture(ctx context.Context, data connectors.RouterData) (*connectors.Response, error) {
	if data.AmountToCapture > 0 && data.AmountToCapture != data.Amount {
		return nil, &connectors.ErrorResponse{
			Code: "partial_capture_unsupported", Message: "square completes the full authorized amount",
			StatusCode: http.StatusBadRequest, AttemptStatus: enums.AttemptStatusCaptureFailed,
		}
	}
	payment, err := c.api.CompletePayment(ctx, data.ConnectorTransactionID)
	if err != nil {
		return nil, errorResponse(err, enums.AttemptStatusCaptureFailed)
	}
	resp := response(payment)
	resp.ConnectorCaptureID = resp.ConnectorTransactionID
	return resp, nil
}

func (c *Connector) Void(ctx context.Context, data connectors.RouterData) (*connectors.Response, error) {
	payment, err := c.api.CancelPayment(ctx, data.ConnectorTransactionID)
	if err != nil {
		return nil, errorResponse(err, enums.AttemptStatusVoidFailed)
	}
	return response(payment), nil
}

func (c *Connector) Sync(ctx context.Context, data connectors.RouterData) (*connectors.Response, error) {
	payment, err := c.api.GetPayment(ctx, data.ConnectorTransactionID)
	if err != nil {
		return nil, errorResponse(err, "")
	}
	return response(payment), nil
}

// AttemptStatus maps a Square payment status onto an attempt status.
func AttemptStatus(status string) enums.AttemptStatus {
	switch status {
	case "APPROVED":
		return enums.AttemptStatusAuthorized
	case "COMPLETED":
		return enums.AttemptStatusCharged
	case "CANCELED":
		return enums.AttemptStatusVoided
	case "FAILED":
		return enums.AttemptStatusFailure
	default:
		return enums.AttemptStatusPending
	}
}

func response(payment *sq.Payment) *connectors.Response {
	if payment == nil {
		return &connectors.Response{Status: enums.AttemptStatusPending}
	}
	status := deref(payment.GetStatus())
	resp := &connectors.Response{
		Status:                 AttemptStatus(status),
		ConnectorTransactionID: deref(payment.GetID()),
		RawStatus:              status,
	}
	if money := payment.GetAmountMoney(); money != nil && money.Amount != nil {
		switch resp.Status {
		case enums.AttemptStatusCharged:
			resp.AmountCaptured = *money.Amount
		case enums.AttemptStatusAuthorized:
			resp.AmountCapturable = *money.Amount
		}
	}
	return resp
}

func errorResponse(err error, status enums.AttemptStatus) *connectors.ErrorResponse {
	out := &connectors.ErrorResponse{Code: "square_error", Message: err.Error(), AttemptStatus: status}
	if detail, ok := sqclient.ErrorDetail(err); ok {
		out.StatusCode = detail.StatusCode
		if detail.Code != "" {
			out.Code = detail.Code
		}
		if detail.Detail != "" {
			out.Message = detail.Detail
		}
		out.Reason = detail.Category
	}
	return out
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
