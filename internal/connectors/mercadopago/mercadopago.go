// Package mercadopago adapts the Mercado Pago payments API to the connector interface.
package mercadopago

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	mpconfig "github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/shopspring/decimal"

	"github.com/juspay/hyperswitch-sub035/internal/connectors"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
)

const Name = "mercadopago"

// PaymentAPI is the subset of the SDK payment client used here.
type PaymentAPI interface {
	Create(ctx context.Context, request payment.Request) (*payment.Response, error)
	Get(ctx context.Context, id int) (*payment.Response, error)
	Cancel(ctx context.Context, id int) (*payment.Response, error)
	Capture(ctx context.Context, id int) (*payment.Response, error)
	CaptureAmount(ctx context.Context, id int, amount float64) (*payment.Response, error)
}

// ClientFactory builds a payment client for one access token.
type ClientFactory func(accessToken string) (PaymentAPI, error)

// SDKClientFactory builds clients backed by the Mercado Pago SDK.
func SDKClientFactory(accessToken string) (PaymentAPI, error) {
	cfg, err := mpconfig.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("mercadopago config: %w", err)
	}
	return payment.NewClient(cfg), nil
}

// Connector resolves the access token per merchant connector account and
// falls back to the platform token.
type Connector struct {
	defaultToken string
	newClient    ClientFactory
}

func New(defaultToken string, factory ClientFactory) *Connector {
	if factory == nil {
		factory = SDKClientFactory
	}
	return &Connector{defaultToken: strings.TrimSpace(defaultToken), newClient: factory}
}

func (c *Connector) Name() string { return Name }

func (c *Connector) Authorize(ctx context.Context, data connectors.RouterData) (*connectors.Response, error) {
	client, err := c.client(data)
	if err != nil {
		return nil, err
	}
	if data.PaymentMethod == nil || data.PaymentMethod.Token == "" {
		return nil, &connectors.ErrorResponse{
			Code: "missing_token", Message: "card token is required", StatusCode: http.StatusBadRequest,
		}
	}
	amount, _ := connectors.ToMajor(data.Amount, data.Currency).Float64()
	installments := data.PaymentMethod.Installments
	if installments <= 0 {
		installments = 1
	}
	req := payment.Request{
		TransactionAmount: amount,
		Token:             data.PaymentMethod.Token,
		Installments:      installments,
		PaymentMethodID:   data.PaymentMethod.Type,
		ExternalReference: data.PaymentID,
		Capture:           data.CaptureMethod == enums.CaptureMethodAutomatic,
		Payer:             &payment.PayerRequest{Email: data.PaymentMethod.Email},
	}
	res, err := client.Create(ctx, req)
	if err != nil {
		return nil, sdkError(err, enums.AttemptStatusAuthorizationFailed)
	}
	return c.response(res, data.Currency)
}

func (c *Connector) Capture(ctx context.Context, data connectors.RouterData) (*connectors.Response, error) {
	client, err := c.client(data)
	if err != nil {
		return nil, err
	}
	id, err := paymentID(data.ConnectorTransactionID)
	if err != nil {
		return nil, err
	}
	var res *payment.Response
	if data.AmountToCapture > 0 && data.AmountToCapture != data.Amount {
		amount, _ := connectors.ToMajor(data.AmountToCapture, data.Currency).Float64()
		res, err = client.CaptureAmount(ctx, id, amount)
	} else {
		res, err = client.Capture(ctx, id)
	}
	if err != nil {
		return nil, sdkError(err, enums.AttemptStatusCaptureFailed)
	}
	resp, err := c.response(res, data.Currency)
	if err != nil {
		return nil, err
	}
	resp.ConnectorCaptureID = resp.ConnectorTransactionID
	return resp, nil
}

func (c *Connector) Void(ctx context.Context, data connectors.RouterData) (*connectors.Response, error) {
	client, err := c.client(data)
	if err != nil {
		return nil, err
	}
	id, err := paymentID(data.ConnectorTransactionID)
	if err != nil {
		return nil, err
	}
	res, err := client.Cancel(ctx, id)
	if err != nil {
		return nil, sdkError(err, enums.AttemptStatusVoidFailed)
	}
	return c.response(res, data.Currency)
}

func (c *Connector) Sync(ctx context.Context, data connectors.RouterData) (*connectors.Response, error) {
	client, err := c.client(data)
	if err != nil {
		return nil, err
	}
	id, err := paymentID(data.ConnectorTransactionID)
	if err != nil {
		return nil, err
	}
	res, err := client.Get(ctx, id)
	if err != nil {
		return nil, sdkError(err, "")
	}
	return c.response(res, data.Currency)
}

func (c *Connector) client(data connectors.RouterData) (PaymentAPI, error) {
	token := data.Credentials.Get("access_token")
	if token == "" {
		token = c.defaultToken
	}
	if token == "" {
		return nil, &connectors.ErrorResponse{
			Code: "missing_credentials", Message: "mercadopago access token is not configured", StatusCode: http.StatusUnauthorized,
		}
	}
	client, err := c.newClient(token)
	if err != nil {
		return nil, &connectors.ErrorResponse{Code: "config_error", Message: err.Error()}
	}
	return client, nil
}

// AttemptStatus maps a Mercado Pago payment status onto an attempt status.
func AttemptStatus(status string) enums.AttemptStatus {
	switch status {
	case "approved":
		return enums.AttemptStatusCharged
	case "authorized":
		return enums.AttemptStatusAuthorized
	case "cancelled":
		return enums.AttemptStatusVoided
	case "rejected":
		return enums.AttemptStatusAuthorizationFailed
	case "refunded", "charged_back":
		return enums.AttemptStatusCharged
	default:
		return enums.AttemptStatusPending
	}
}

func (c *Connector) response(res *payment.Response, currency string) (*connectors.Response, error) {
	if res == nil {
		return nil, &connectors.ErrorResponse{Code: "empty_response", Message: "mercadopago returned no payment"}
	}
	status := AttemptStatus(res.Status)
	txnID := strconv.Itoa(res.ID)
	if status == enums.AttemptStatusAuthorizationFailed {
		// Rejections arrive as a successful HTTP response.
		return nil, &connectors.ErrorResponse{
			Code:                   res.StatusDetail,
			Message:                "payment rejected",
			Reason:                 res.Status,
			StatusCode:             http.StatusOK,
			AttemptStatus:          status,
			ConnectorTransactionID: txnID,
		}
	}
	amount := connectors.ToMinor(decimal.NewFromFloat(res.TransactionAmount), currency)
	resp := &connectors.Response{
		Status:                 status,
		ConnectorTransactionID: txnID,
		RawStatus:              res.Status,
	}
	switch status {
	case enums.AttemptStatusCharged:
		resp.AmountCaptured = amount
	case enums.AttemptStatusAuthorized:
		resp.AmountCapturable = amount
	}
	return resp, nil
}

func paymentID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &connectors.ErrorResponse{
			Code: "invalid_transaction_id", Message: fmt.Sprintf("invalid mercadopago payment id %q", raw), StatusCode: http.StatusBadRequest,
		}
	}
	return id, nil
}

func sdkError(err error, status enums.AttemptStatus) *connectors.ErrorResponse {
	var resp *connectors.ErrorResponse
	if errors.As(err, &resp) {
		return resp
	}
	return &connectors.ErrorResponse{Code: "mercadopago_error", Message: err.Error(), AttemptStatus: status}
}
