package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juspay/hyperswitch-sub035/internal/webhooks/incoming"
	"github.com/juspay/hyperswitch-sub035/pkg/config"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
)

type recordingService struct {
	applied []incoming.Notification
	err     error
}

func (s *recordingService) Apply(_ context.Context, n incoming.Notification) error {
	s.applied = append(s.applied, n)
	return s.err
}

type mapGuard struct {
	seen map[string]bool
}

func (g *mapGuard) CheckAndMark(_ context.Context, id string) (bool, error) {
	if g.seen[id] {
		return true, nil
	}
	g.seen[id] = true
	return false, nil
}

func (g *mapGuard) Forget(_ context.Context, id string) error {
	delete(g.seen, id)
	return nil
}

var squareCfg = config.SquareConfig{WebhookURL: "https://switch.example.com/api/v1/webhooks/square", WebhookSignatureKey: "sq-key"}

const squareBody = `{"event_id":"evt_1","type":"payment.updated","data":{"type":"payment","id":"sq_pay_1","object":{"payment":{"id":"sq_pay_1","status":"COMPLETED"}}}}`

func signSquare(body string) string {
	mac := hmac.New(sha256.New, []byte(squareCfg.WebhookSignatureKey))
	mac.Write([]byte(squareCfg.WebhookURL + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func postSquare(h http.Handler, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/square", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Square-Hmacsha256-Signature", signature)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "webhooks-test"})
}

func TestSquareWebhookAppliesOnce(t *testing.T) {
	svc := &recordingService{}
	guard := &mapGuard{seen: map[string]bool{}}
	h := SquareWebhook(svc, guard, squareCfg, testLogger())

	for i := 0; i < 2; i++ {
		resp := postSquare(h, squareBody, signSquare(squareBody))
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	}
	require.Len(t, svc.applied, 1)
	assert.Equal(t, "sq_pay_1", svc.applied[0].TransactionID)
	assert.True(t, guard.seen["square:evt_1"])
}

func TestSquareWebhookRejectsBadSignature(t *testing.T) {
	svc := &recordingService{}
	h := SquareWebhook(svc, &mapGuard{seen: map[string]bool{}}, squareCfg, testLogger())

	assert.Equal(t, http.StatusUnauthorized, postSquare(h, squareBody, "").Code)
	assert.Equal(t, http.StatusUnauthorized, postSquare(h, squareBody, signSquare(`{"tampered":true}`)).Code)
	assert.Empty(t, svc.applied)
}

func TestSquareWebhookForgetsEventOnFailure(t *testing.T) {
	svc := &recordingService{err: errors.New("connector down")}
	guard := &mapGuard{seen: map[string]bool{}}
	h := SquareWebhook(svc, guard, squareCfg, testLogger())

	resp := postSquare(h, squareBody, signSquare(squareBody))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.False(t, guard.seen["square:evt_1"])
}

func TestSquareWebhookIgnoresNonPaymentEvents(t *testing.T) {
	svc := &recordingService{}
	body := `{"event_id":"evt_9","type":"refund.created","data":{"id":"r1"}}`
	resp := postSquare(SquareWebhook(svc, &mapGuard{seen: map[string]bool{}}, squareCfg, testLogger()), body, signSquare(body))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, svc.applied)
}

func TestMercadoPagoWebhookVerifiesSignature(t *testing.T) {
	cfg := config.MercadoPagoConfig{WebhookSecret: "mp-secret"}
	body := `{"id":777,"type":"payment","action":"payment.updated","data":{"id":"123456"}}`
	manifest := "id:123456;request-id:req-9;ts:1704908010;"
	mac := hmac.New(sha256.New, []byte(cfg.WebhookSecret))
	mac.Write([]byte(manifest))
	signature := "ts=1704908010,v1=" + hex.EncodeToString(mac.Sum(nil))

	svc := &recordingService{}
	h := MercadoPagoWebhook(svc, &mapGuard{seen: map[string]bool{}}, cfg, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/mercadopago?data.id=123456&type=payment", strings.NewReader(body))
	req.Header.Set("X-Request-Id", "req-9")
	req.Header.Set("X-Signature", signature)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Len(t, svc.applied, 1)
	assert.Equal(t, "mercadopago", svc.applied[0].Connector)

	req = httptest.NewRequest(http.MethodPost, "/webhooks/mercadopago?data.id=123456", strings.NewReader(body))
	req.Header.Set("X-Request-Id", "req-9")
	req.Header.Set("X-Signature", "ts=1704908010,v1=deadbeef")
	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
