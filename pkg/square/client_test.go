package square

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"

	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
)

func TestEnsureIdempotencyKey(t *testing.T) {
	c := &Client{}
	// Provided key should be used verbatim.
	if got := c.ensureIdempotencyKey("pref", "custom-key"); got != "custom-key" {
		t.Fatalf("expected provided key, got %q", got)
	}
	// Empty key should be generated and include prefix.
	if got := c.ensureIdempotencyKey("prefix", ""); !strings.HasPrefix(got, "prefix-") {
		t.Fatalf("generated idempotency key %q missing prefix", got)
	}
}

func TestRedact(t *testing.T) {
	c := &Client{}
	out := c.redact("source_id", "cnon:card-nonce-ok")
	if out != "[REDACTED]" {
		t.Fatalf("expected redacted value, got %v", out)
	}
	// Non-sensitive keys should be preserved.
	if v := c.redact("status", "ok"); v != "ok" {
		t.Fatalf("unexpected redaction for safe key")
	}
}

func TestDomainCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusUnauthorized, pkgerrors.CodeUnauthorized},
		{http.StatusForbidden, pkgerrors.CodeForbidden},
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusTooManyRequests, pkgerrors.CodeRateLimit},
		{http.StatusBadRequest, pkgerrors.CodeConnector},
		{http.StatusPaymentRequired, pkgerrors.CodeConnector},
		{http.StatusUnprocessableEntity, pkgerrors.CodeConnector},
		{http.StatusMethodNotAllowed, pkgerrors.CodeValidation},
		{http.StatusInternalServerError, pkgerrors.CodeDependency},
	}
	for _, tt := range tests {
		if got := domainCodeForStatus(tt.status); got != tt.code {
			t.Fatalf("status %d expected %s got %s", tt.status, tt.code, got)
		}
	}
}

func TestMapSquareError(t *testing.T) {
	c := &Client{}
	table := []struct {
		name     string
		status   int
		payload  string
		wantCode pkgerrors.Code
	}{
		{
			name:     "authentication error",
			status:   http.StatusUnauthorized,
			payload:  `{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED"}]}`,
			wantCode: pkgerrors.CodeUnauthorized,
		},
		{
			name:     "idempotency key reused",
			status:   http.StatusConflict,
			payload:  `{"errors":[{"category":"API_ERROR","code":"IDEMPOTENCY_KEY_REUSED"}]}`,
			wantCode: pkgerrors.CodeIdempotency,
		},
	}
	for _, tt := range table {
		err := sqcore.NewAPIError(tt.status, errors.New(tt.payload))
		mapped := c.mapSquareError(err, "operation")
		if mapped == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
		typed := pkgerrors.As(mapped)
		if typed == nil {
			t.Fatalf("%s: result is not pkgerror", tt.name)
		}
		if typed.Code() != tt.wantCode {
			t.Fatalf("%s: expected code %s, got %s", tt.name, tt.wantCode, typed.Code())
		}
	}
}

func TestExtractSquareErrors(t *testing.T) {
	payload := `{"errors":[{"category":"API_ERROR","code":"BAD_REQUEST","detail":"oops"}]}`
	apiErr := sqcore.NewAPIError(http.StatusBadRequest, errors.New(payload))
	got := extractSquareErrors(apiErr)
	if len(got) != 1 {
		t.Fatalf("expected 1 error, got %d", len(got))
	}
	if got[0].GetCode() != sq.ErrorCodeBadRequest {
		t.Fatalf("unexpected error code %s", got[0].GetCode())
	}
}

func TestErrorDetail(t *testing.T) {
	payload := `{"errors":[{"category":"PAYMENT_METHOD_ERROR","code":"CARD_DECLINED","detail":"Authorization error: 'CARD_DECLINED'"}]}`
	c := &Client{}
	err := c.mapSquareError(sqcore.NewAPIError(http.StatusPaymentRequired, errors.New(payload)), "create payment")

	detail, ok := ErrorDetail(err)
	if !ok {
		t.Fatal("expected square error detail")
	}
	if detail.StatusCode != http.StatusPaymentRequired || detail.Code != "CARD_DECLINED" {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if detail.Category != "PAYMENT_METHOD_ERROR" || detail.Detail == "" {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if _, ok := ErrorDetail(errors.New("plain")); ok {
		t.Fatal("plain errors carry no square detail")
	}
}

func TestPaymentRequestAutocomplete(t *testing.T) {
	req := PaymentCreateParams{AmountMinor: 500, Currency: "usd", SourceID: "cnon:ok"}.toSquareRequest("key")
	if req.Autocomplete == nil || *req.Autocomplete {
		t.Fatal("expected autocomplete=false to be sent explicitly")
	}
	if req.AmountMoney == nil || *req.AmountMoney.Amount != 500 || string(*req.AmountMoney.Currency) != "USD" {
		t.Fatalf("unexpected amount money %+v", req.AmountMoney)
	}
	if req.LocationID != nil {
		t.Fatal("empty location should be omitted")
	}
	if req.DelayAction == nil || *req.DelayAction != "CANCEL" {
		t.Fatal("manual capture should cancel on hold expiry")
	}
}

func TestPaymentRequestAutocompleteSkipsDelay(t *testing.T) {
	req := PaymentCreateParams{AmountMinor: 500, SourceID: "cnon:ok", Autocomplete: true, DelayDuration: "P1D"}.toSquareRequest("key")
	if req.DelayAction != nil || req.DelayDuration != nil {
		t.Fatal("autocompleted payments carry no delay")
	}
	if req.AmountMoney.Currency != nil {
		t.Fatal("empty currency should be left to the location default")
	}
}

func TestCallRejectsEmptyPayment(t *testing.T) {
	_, err := call(context.Background(), &Client{}, "get_payment", nil, func() (*sq.GetPaymentResponse, error) {
		return &sq.GetPaymentResponse{}, nil
	})
	if !pkgerrors.Is(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestCallMapsSDKFailure(t *testing.T) {
	_, err := call(context.Background(), &Client{}, "complete_payment", map[string]any{"payment_id": "p1"}, func() (*sq.CompletePaymentResponse, error) {
		return nil, sqcore.NewAPIError(http.StatusNotFound, errors.New(`{"errors":[]}`))
	})
	if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
