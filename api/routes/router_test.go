package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/juspay/hyperswitch-sub035/api/controllers"
	"github.com/juspay/hyperswitch-sub035/internal/operations"
	"github.com/juspay/hyperswitch-sub035/internal/webhooks/incoming"
	"github.com/juspay/hyperswitch-sub035/pkg/auth"
	"github.com/juspay/hyperswitch-sub035/pkg/config"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
	"github.com/juspay/hyperswitch-sub035/pkg/metrics"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubPayments struct {
	flows []enums.PaymentFlow
}

func (s *stubPayments) LoadMerchant(_ context.Context, merchantID, _ string) (operations.Merchant, error) {
	m := operations.Merchant{}
	m.Account.MerchantID = merchantID
	return m, nil
}

func (s *stubPayments) CreateIntent(_ context.Context, m operations.Merchant, params operations.CreateIntentParams) (*models.PaymentIntent, error) {
	return &models.PaymentIntent{PaymentID: "pay_1", MerchantID: m.ID(), Amount: params.Amount, Currency: params.Currency, Status: enums.IntentStatusRequiresPaymentMethod}, nil
}

func (s *stubPayments) Run(_ context.Context, flow enums.PaymentFlow, paymentID string, _ operations.Request, m operations.Merchant) (operations.PaymentData, error) {
	s.flows = append(s.flows, flow)
	return operations.PaymentData{Flow: flow, Merchant: m, Intent: models.PaymentIntent{PaymentID: paymentID, Status: enums.IntentStatusSucceeded}}, nil
}

func (s *stubPayments) Retrieve(_ context.Context, _ operations.Merchant, paymentID string) (operations.PaymentView, error) {
	return operations.PaymentView{Intent: models.PaymentIntent{PaymentID: paymentID}}, nil
}

type stubWebhooks struct{}

func (stubWebhooks) Apply(context.Context, incoming.Notification) error { return nil }

type memoryStore struct {
	values map[string]string
	counts map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memoryStore) RateLimitKey(scope string) string {
	return "rl:" + scope
}

type nopGuard struct{}

func (nopGuard) CheckAndMark(context.Context, string) (bool, error) { return false, nil }

func (nopGuard) Forget(context.Context, string) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60},
		HTTP: config.HTTPConfig{
			AllowedOrigins:  []string{"http://localhost:3000"},
			RateLimitWindow: time.Minute,
			RateLimit:       100,
		},
	}
}

func newTestRouter(cfg *config.Config, svc *stubPayments, pingers map[string]controllers.Pinger) (http.Handler, *memoryStore) {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	store := newMemoryStore()
	reg := prometheus.NewRegistry()
	metrics.NewPaymentMetrics(reg)
	return NewRouter(cfg, logg, Dependencies{
		Payments:     svc,
		Idempotency:  store,
		RateLimit:    store,
		Webhooks:     stubWebhooks{},
		WebhookGuard: nopGuard{},
		Pingers:      pingers,
		Metrics:      reg,
	}), store
}

func buildToken(t *testing.T, cfg *config.Config) string {
	t.Helper()
	token, err := auth.MintMerchantToken(cfg.JWT, time.Now(), auth.MerchantTokenPayload{MerchantID: "merchant_1", ProfileID: "prof_1"})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLive(t *testing.T) {
	router, _ := newTestRouter(testConfig(), &stubPayments{}, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestHealthReadyReportsFailedDependency(t *testing.T) {
	router, _ := newTestRouter(testConfig(), &stubPayments{}, map[string]controllers.Pinger{
		"db":    stubPinger{},
		"redis": stubPinger{err: errors.New("connection refused")},
	})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "redis") {
		t.Fatalf("expected failed dependency in body, got %s", resp.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(testConfig(), &stubPayments{}, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestPaymentsRejectMissingJWT(t *testing.T) {
	router, _ := newTestRouter(testConfig(), &stubPayments{}, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/payments/pay_1", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestCreatePaymentRequiresIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	router, _ := newTestRouter(cfg, &stubPayments{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(`{"amount":100,"currency":"USD"}`))
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without idempotency key got %d", resp.Code)
	}
}

func TestCaptureReplaysWithSameIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	svc := &stubPayments{}
	router, _ := newTestRouter(cfg, svc, nil)
	token := buildToken(t, cfg)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/pay_1/capture", strings.NewReader(`{"amount_to_capture":50}`))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "cap-1")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d: %s", i, resp.Code, resp.Body.String())
		}
	}
	if len(svc.flows) != 1 || svc.flows[0] != enums.PaymentFlowCapture {
		t.Fatalf("expected a single capture run, got %v", svc.flows)
	}
}

func TestRetrieveDoesNotNeedIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	router, _ := newTestRouter(cfg, &stubPayments{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/pay_1", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRateLimitAppliesPerMerchant(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.RateLimit = 1
	router, _ := newTestRouter(cfg, &stubPayments{}, nil)
	token := buildToken(t, cfg)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/pay_1", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected [200 429] got %v", codes)
	}
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(testConfig(), &stubPayments{}, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/payments", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
}

func TestConnectorWebhooksSkipMerchantAuth(t *testing.T) {
	router, _ := newTestRouter(testConfig(), &stubPayments{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mercadopago", strings.NewReader(`{"id":1,"type":"merchant_order","data":{"id":"9"}}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for ignored event got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/square", strings.NewReader(`{}`))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unsigned square event got %d", resp.Code)
	}
}
