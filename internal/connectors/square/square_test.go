package square

import (
	"context"
	"errors"
	"net/http"
	"testing"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juspay/hyperswitch-sub035/internal/connectors"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	sqclient "github.com/juspay/hyperswitch-sub035/pkg/square"
)

type fakeAPI struct {
	created  []sqclient.PaymentCreateParams
	payment  *sq.Payment
	err      error
	complete []string
}

func (f *fakeAPI) CreatePayment(_ context.Context, p sqclient.PaymentCreateParams) (*sq.Payment, error) {
	f.created = append(f.created, p)
	return f.payment, f.err
}

func (f *fakeAPI) CompletePayment(_ context.Context, id string) (*sq.Payment, error) {
	f.complete = append(f.complete, id)
	return f.payment, f.err
}

func (f *fakeAPI) CancelPayment(context.Context, string) (*sq.Payment, error) {
	return f.payment, f.err
}
func (f *fakeAPI) GetPayment(context.Context, string) (*sq.Payment, error) { return f.payment, f.err }

func sqPayment(id, status string, amount int64) *sq.Payment {
	return &sq.Payment{ID: &id, Status: &status, AmountMoney: &sq.Money{Amount: &amount}}
}

func TestAuthorizeManualLeavesPaymentApproved(t *testing.T) {
	api := &fakeAPI{payment: sqPayment("sq_1", "APPROVED", 1000)}
	c := New(api)

	resp, err := c.Authorize(context.Background(), connectors.RouterData{
		PaymentID: "pay_1", Amount: 1000, Currency: "USD", CaptureMethod: enums.CaptureMethodManual,
		PaymentMethod:  &connectors.PaymentMethod{Token: "cnon:card-nonce-ok"},
		Credentials:    connectors.Credentials{"location_id": "L1"},
		IdempotencyKey: "att_1",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.AttemptStatusAuthorized, resp.Status)
	assert.Equal(t, int64(1000), resp.AmountCapturable)
	require.Len(t, api.created, 1)
	assert.False(t, api.created[0].Autocomplete)
	assert.Equal(t, "L1", api.created[0].LocationID)
	assert.Equal(t, "att_1", api.created[0].IdempotencyKey)
}

func TestAuthorizeRequiresSource(t *testing.T) {
	c := New(&fakeAPI{})
	_, err := c.Authorize(context.Background(), connectors.RouterData{Amount: 1000})
	var resp *connectors.ErrorResponse
	require.True(t, errors.As(err, &resp))
	assert.Equal(t, "missing_source", resp.Code)
}

func TestDeclineCarriesSquareCode(t *testing.T) {
	payload := `{"errors":[{"category":"PAYMENT_METHOD_ERROR","code":"CARD_DECLINED","detail":"declined"}]}`
	api := &fakeAPI{err: sqcore.NewAPIError(http.StatusPaymentRequired, errors.New(payload))}
	c := New(api)

	_, err := c.Authorize(context.Background(), connectors.RouterData{
		Amount: 1000, PaymentMethod: &connectors.PaymentMethod{Token: "cnon:card-nonce-declined"},
	})
	var resp *connectors.ErrorResponse
	require.True(t, errors.As(err, &resp))
	assert.Equal(t, "CARD_DECLINED", resp.Code)
	assert.Equal(t, "declined", resp.Message)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, enums.AttemptStatusAuthorizationFailed, resp.AttemptStatus)
}

func TestCaptureRejectsPartialAmount(t *testing.T) {
	api := &fakeAPI{payment: sqPayment("sq_1", "COMPLETED", 1000)}
	c := New(api)

	_, err := c.Capture(context.Background(), connectors.RouterData{ConnectorTransactionID: "sq_1", Amount: 1000, AmountToCapture: 400})
	require.Error(t, err)
	assert.Empty(t, api.complete)

	resp, err := c.Capture(context.Background(), connectors.RouterData{ConnectorTransactionID: "sq_1", Amount: 1000, AmountToCapture: 1000})
	require.NoError(t, err)
	assert.Equal(t, enums.AttemptStatusCharged, resp.Status)
	assert.Equal(t, int64(1000), resp.AmountCaptured)
	assert.Equal(t, []string{"sq_1"}, api.complete)
}

func TestAttemptStatusMapping(t *testing.T) {
	assert.Equal(t, enums.AttemptStatusAuthorized, AttemptStatus("APPROVED"))
	assert.Equal(t, enums.AttemptStatusCharged, AttemptStatus("COMPLETED"))
	assert.Equal(t, enums.AttemptStatusVoided, AttemptStatus("CANCELED"))
	assert.Equal(t, enums.AttemptStatusFailure, AttemptStatus("FAILED"))
	assert.Equal(t, enums.AttemptStatusPending, AttemptStatus("PENDING"))
}
