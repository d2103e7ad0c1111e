package mercadopago

import (
	"context"
	"errors"
	"testing"

	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juspay/hyperswitch-sub035/internal/connectors"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
)

type fakePayments struct {
	requests     []payment.Request
	capturedWith []float64
	fullCaptures int
	res          *payment.Response
	err          error
}

func (f *fakePayments) Create(_ context.Context, r payment.Request) (*payment.Response, error) {
	f.requests = append(f.requests, r)
	return f.res, f.err
}
func (f *fakePayments) Get(context.Context, int) (*payment.Response, error)    { return f.res, f.err }
func (f *fakePayments) Cancel(context.Context, int) (*payment.Response, error) { return f.res, f.err }
func (f *fakePayments) Capture(context.Context, int) (*payment.Response, error) {
	f.fullCaptures++
	return f.res, f.err
}
func (f *fakePayments) CaptureAmount(_ context.Context, _ int, amount float64) (*payment.Response, error) {
	f.capturedWith = append(f.capturedWith, amount)
	return f.res, f.err
}

func newConnector(fake *fakePayments, tokens *[]string) *Connector {
	return New("platform-token", func(token string) (PaymentAPI, error) {
		*tokens = append(*tokens, token)
		return fake, nil
	})
}

func TestAuthorizeConvertsAmountAndUsesMerchantToken(t *testing.T) {
	fake := &fakePayments{res: &payment.Response{ID: 42, Status: "authorized", TransactionAmount: 12.5}}
	var tokens []string
	c := newConnector(fake, &tokens)

	resp, err := c.Authorize(context.Background(), connectors.RouterData{
		PaymentID: "pay_1", Amount: 1250, Currency: "BRL", CaptureMethod: enums.CaptureMethodManual,
		PaymentMethod: &connectors.PaymentMethod{Type: "visa", Token: "card_tok", Email: "a@b.c"},
		Credentials:   connectors.Credentials{"access_token": "merchant-token"},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.AttemptStatusAuthorized, resp.Status)
	assert.Equal(t, "42", resp.ConnectorTransactionID)
	assert.Equal(t, int64(1250), resp.AmountCapturable)
	assert.Equal(t, []string{"merchant-token"}, tokens)

	require.Len(t, fake.requests, 1)
	assert.InDelta(t, 12.5, fake.requests[0].TransactionAmount, 0.0001)
	assert.False(t, fake.requests[0].Capture)
	assert.Equal(t, 1, fake.requests[0].Installments)
}

func TestRejectedPaymentIsConnectorError(t *testing.T) {
	fake := &fakePayments{res: &payment.Response{ID: 7, Status: "rejected", StatusDetail: "cc_rejected_insufficient_amount"}}
	var tokens []string
	c := newConnector(fake, &tokens)

	_, err := c.Authorize(context.Background(), connectors.RouterData{
		Amount: 100, Currency: "ARS", PaymentMethod: &connectors.PaymentMethod{Token: "t"},
	})
	var resp *connectors.ErrorResponse
	require.True(t, errors.As(err, &resp))
	assert.Equal(t, "cc_rejected_insufficient_amount", resp.Code)
	assert.Equal(t, "7", resp.ConnectorTransactionID)
	assert.Equal(t, []string{"platform-token"}, tokens)
}

func TestCaptureChoosesPartialOrFull(t *testing.T) {
	fake := &fakePayments{res: &payment.Response{ID: 42, Status: "approved", TransactionAmount: 10}}
	var tokens []string
	c := newConnector(fake, &tokens)
	ctx := context.Background()

	_, err := c.Capture(ctx, connectors.RouterData{ConnectorTransactionID: "42", Amount: 1000, AmountToCapture: 400, Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, []float64{4}, fake.capturedWith)

	resp, err := c.Capture(ctx, connectors.RouterData{ConnectorTransactionID: "42", Amount: 1000, Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.fullCaptures)
	assert.Equal(t, enums.AttemptStatusCharged, resp.Status)
	assert.Equal(t, int64(1000), resp.AmountCaptured)

	_, err = c.Capture(ctx, connectors.RouterData{ConnectorTransactionID: "not-a-number"})
	require.Error(t, err)
}

func TestMissingCredentials(t *testing.T) {
	c := New("", func(string) (PaymentAPI, error) { return &fakePayments{}, nil })
	_, err := c.Sync(context.Background(), connectors.RouterData{ConnectorTransactionID: "1"})
	var resp *connectors.ErrorResponse
	require.True(t, errors.As(err, &resp))
	assert.Equal(t, "missing_credentials", resp.Code)
}
