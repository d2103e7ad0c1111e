package payments

import (
	"net/http"
	"strings"

	"github.com/juspay/hyperswitch-sub035/api/validators"
	"github.com/juspay/hyperswitch-sub035/internal/connectors"
	"github.com/juspay/hyperswitch-sub035/internal/operations"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
)

type paymentMethodRequest struct {
	Type         string `json:"type" validate:"required,max=32"`
	Token        string `json:"token" validate:"required,max=255"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
	Installments int    `json:"installments,omitempty" validate:"omitempty,gte=1"`
}

func (p *paymentMethodRequest) toConnector() *connectors.PaymentMethod {
	if p == nil {
		return nil
	}
	return &connectors.PaymentMethod{
		Type:         strings.ToLower(strings.TrimSpace(p.Type)),
		Token:        strings.TrimSpace(p.Token),
		Email:        strings.TrimSpace(p.Email),
		Installments: p.Installments,
	}
}

type recurringDetailsRequest struct {
	Connector           string                `json:"connector" validate:"required"`
	MerchantConnectorID string                `json:"merchant_connector_id" validate:"required"`
	PaymentMethod       *paymentMethodRequest `json:"payment_method" validate:"required"`
}

type createPaymentRequest struct {
	PaymentID           string                   `json:"payment_id,omitempty" validate:"omitempty,max=64"`
	ProfileID           string                   `json:"profile_id,omitempty" validate:"omitempty,max=64"`
	Amount              int64                    `json:"amount" validate:"required,gt=0"`
	Currency            string                   `json:"currency" validate:"required,len=3"`
	CaptureMethod       string                   `json:"capture_method,omitempty" validate:"omitempty,oneof=automatic manual manual_multiple"`
	CustomerID          string                   `json:"customer_id,omitempty" validate:"omitempty,max=64"`
	Description         string                   `json:"description,omitempty" validate:"omitempty,max=255"`
	ReturnURL           string                   `json:"return_url,omitempty" validate:"omitempty,url"`
	Confirm             bool                     `json:"confirm,omitempty"`
	PaymentMethod       *paymentMethodRequest    `json:"payment_method,omitempty"`
	MerchantConnectorID string                   `json:"merchant_connector_id,omitempty"`
	RecurringDetails    *recurringDetailsRequest `json:"recurring_details,omitempty"`
}

func (c createPaymentRequest) params() operations.CreateIntentParams {
	params := operations.CreateIntentParams{
		PaymentID:     strings.TrimSpace(c.PaymentID),
		ProfileID:     strings.TrimSpace(c.ProfileID),
		Amount:        c.Amount,
		Currency:      validators.NormalizeCurrency(c.Currency),
		CaptureMethod: enums.CaptureMethod(c.CaptureMethod),
		CustomerID:    strings.TrimSpace(c.CustomerID),
		Description:   validators.SanitizeString(c.Description, 255),
		ReturnURL:     strings.TrimSpace(c.ReturnURL),
	}
	if rd := c.RecurringDetails; rd != nil {
		params.Recurring = &operations.RecurringDetails{
			Connector:           strings.TrimSpace(rd.Connector),
			MerchantConnectorID: strings.TrimSpace(rd.MerchantConnectorID),
			PaymentMethod:       rd.PaymentMethod.toConnector(),
		}
	}
	return params
}

type confirmPaymentRequest struct {
	PaymentMethod       *paymentMethodRequest `json:"payment_method,omitempty"`
	MerchantConnectorID string                `json:"merchant_connector_id,omitempty" validate:"omitempty,max=64"`
}

type capturePaymentRequest struct {
	AmountToCapture *int64 `json:"amount_to_capture,omitempty" validate:"omitempty,gt=0"`
}

type cancelPaymentRequest struct {
	CancellationReason string `json:"cancellation_reason,omitempty" validate:"omitempty,max=255"`
}

type recordAttemptRequest struct {
	Connector              string `json:"connector" validate:"required,max=64"`
	MerchantConnectorID    string `json:"merchant_connector_id,omitempty" validate:"omitempty,max=64"`
	Status                 string `json:"status" validate:"required"`
	Amount                 int64  `json:"amount" validate:"gte=0"`
	ConnectorTransactionID string `json:"connector_transaction_id,omitempty" validate:"omitempty,max=128"`
	ErrorCode              string `json:"error_code,omitempty" validate:"omitempty,max=64"`
	ErrorMessage           string `json:"error_message,omitempty" validate:"omitempty,max=255"`
}

func (r recordAttemptRequest) record() (*operations.AttemptRecord, error) {
	status, err := enums.ParseAttemptStatus(r.Status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid attempt status").WithDetails(map[string]string{"status": "is invalid"})
	}
	return &operations.AttemptRecord{
		Connector:              strings.TrimSpace(r.Connector),
		MerchantConnectorID:    strings.TrimSpace(r.MerchantConnectorID),
		Status:                 status,
		Amount:                 r.Amount,
		ConnectorTransactionID: strings.TrimSpace(r.ConnectorTransactionID),
		ErrorCode:              strings.TrimSpace(r.ErrorCode),
		ErrorMessage:           strings.TrimSpace(r.ErrorMessage),
	}, nil
}

// decodeOptionalBody accepts an empty body for flows whose fields are all optional.
func decodeOptionalBody(r *http.Request, dest any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return validators.DecodeJSONBody(r, dest)
}
