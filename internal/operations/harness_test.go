package operations

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/juspay/hyperswitch-sub035/internal/connectors"
	"github.com/juspay/hyperswitch-sub035/internal/connectors/dummy"
	"github.com/juspay/hyperswitch-sub035/internal/gsm"
	"github.com/juspay/hyperswitch-sub035/internal/locking"
	"github.com/juspay/hyperswitch-sub035/internal/routing"
	"github.com/juspay/hyperswitch-sub035/internal/storage"
	"github.com/juspay/hyperswitch-sub035/internal/webhooks"
	"github.com/juspay/hyperswitch-sub035/pkg/config"
	"github.com/juspay/hyperswitch-sub035/pkg/db"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
	"github.com/juspay/hyperswitch-sub035/pkg/outbox"
	"github.com/juspay/hyperswitch-sub035/pkg/security"
)

const (
	testMerchant = "merchant_1"
	testProfile  = "profile_1"
)

type lockStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (s *lockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = value.(string)
	return true, nil
}

func (s *lockStore) SetNXMany(ctx context.Context, keys []string, value any, ttl time.Duration) ([]bool, error) {
	out := make([]bool, len(keys))
	for i, key := range keys {
		out[i], _ = s.SetNX(ctx, key, value, ttl)
	}
	return out, nil
}

func (s *lockStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (s *lockStore) MGet(_ context.Context, keys ...string) ([]string, []bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := make([]string, len(keys))
	present := make([]bool, len(keys))
	for i, key := range keys {
		values[i], present[i] = s.data[key]
	}
	return values, present, nil
}

func (s *lockStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

// approver accepts every authorization regardless of token.
type approver struct {
	name string
}

func (a approver) Name() string { return a.name }

func (a approver) Authorize(_ context.Context, data connectors.RouterData) (*connectors.Response, error) {
	status := enums.AttemptStatusAuthorized
	if data.CaptureMethod == enums.CaptureMethodAutomatic {
		status = enums.AttemptStatusCharged
	}
	return &connectors.Response{Status: status, ConnectorTransactionID: a.name + "_" + data.AttemptID}, nil
}

func (a approver) Capture(_ context.Context, data connectors.RouterData) (*connectors.Response, error) {
	return &connectors.Response{Status: enums.AttemptStatusCharged, ConnectorTransactionID: data.ConnectorTransactionID}, nil
}

func (a approver) Void(_ context.Context, data connectors.RouterData) (*connectors.Response, error) {
	return &connectors.Response{Status: enums.AttemptStatusVoided, ConnectorTransactionID: data.ConnectorTransactionID}, nil
}

func (a approver) Sync(context.Context, connectors.RouterData) (*connectors.Response, error) {
	return nil, &connectors.ErrorResponse{Code: "not_found", Message: "unknown", StatusCode: http.StatusNotFound}
}

type harness struct {
	client   *db.Client
	deps     *Dependencies
	pipeline *Pipeline
	merchant Merchant
	locks    *lockStore
	cipher   *security.Cipher
	configs  *storage.ConfigRepository
	gsmRules *storage.GSMRepository
	payments *storage.PaymentRepository
	captures *storage.CaptureRepository
	mcas     *storage.MerchantRepository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	client, err := db.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())))
	require.NoError(t, err)
	require.NoError(t, client.DB().AutoMigrate(models.All()...))
	t.Cleanup(func() { _ = client.Close() })

	logg := logger.New(logger.Options{ServiceName: "operations-test"})
	key, err := security.GenerateKey()
	require.NoError(t, err)
	master, err := security.NewCipher(key)
	require.NoError(t, err)
	merchantKey, err := security.GenerateKey()
	require.NoError(t, err)
	sealedKey, err := master.Seal(merchantKey)
	require.NoError(t, err)

	h := &harness{
		client:   client,
		locks:    &lockStore{data: map[string]string{}},
		cipher:   master,
		configs:  storage.NewConfigRepository(client),
		gsmRules: storage.NewGSMRepository(client),
		payments: storage.NewPaymentRepository(client),
		captures: storage.NewCaptureRepository(client),
		mcas:     storage.NewMerchantRepository(client),
	}
	require.NoError(t, h.mcas.InsertAccount(ctx, &models.MerchantAccount{MerchantID: testMerchant, StorageScheme: enums.StorageSchemePostgresOnly}))
	require.NoError(t, h.mcas.InsertProfile(ctx, &models.BusinessProfile{ProfileID: testProfile, MerchantID: testMerchant}))
	require.NoError(t, h.mcas.InsertKeyStore(ctx, &models.MerchantKeyStore{MerchantID: testMerchant, Key: sealedKey}))

	registry := connectors.NewRegistry()
	require.NoError(t, registry.Register(dummy.New()))
	require.NoError(t, registry.Register(approver{name: "backup"}))
	invoker, err := connectors.NewInvoker(registry, logg, nil)
	require.NoError(t, err)

	emitter, err := webhooks.NewEmitter(outbox.NewService(outbox.NewRepository(client), logg))
	require.NoError(t, err)

	locks, err := locking.NewManager(locking.ManagerParams{
		Store:  h.locks,
		Config: config.LockConfig{TTL: time.Minute, Delay: time.Millisecond, Retries: 1},
		Logger: logg,
	})
	require.NoError(t, err)

	engine, err := gsm.NewEngine(gsm.EngineParams{
		Rules:   h.gsmRules,
		Configs: h.configs,
		Config:  config.GSMConfig{DefaultEnabled: true},
		Logger:  logg,
	})
	require.NoError(t, err)

	h.deps = &Dependencies{
		Payments:  h.payments,
		Captures:  h.captures,
		Merchants: h.mcas,
		Router:    routing.NewRouter(h.mcas, nil, logg),
		Webhooks:  emitter,
		Cipher:    master,
		Logger:    logg,
	}
	h.pipeline, err = NewPipeline(PipelineParams{
		Deps:    h.deps,
		Locks:   locks,
		Invoker: invoker,
		GSM:     engine,
	})
	require.NoError(t, err)

	h.merchant, err = h.pipeline.LoadMerchant(ctx, testMerchant, testProfile)
	require.NoError(t, err)
	return h
}

// addConnector registers an enabled connector account with sealed credentials.
func (h *harness) addConnector(t *testing.T, id, name string, priority int) {
	t.Helper()
	mc, err := h.cipher.MerchantCipher(h.merchant.KeyStore.Key)
	require.NoError(t, err)
	details, err := mc.SealJSON(map[string]string{"api_key": "sk_" + id})
	require.NoError(t, err)
	require.NoError(t, h.mcas.InsertConnectorAccount(context.Background(), &models.MerchantConnectorAccount{
		MerchantConnectorID:     id,
		MerchantID:              testMerchant,
		ProfileID:               testProfile,
		ConnectorName:           name,
		ConnectorAccountDetails: details,
		Priority:                priority,
	}))
}

func (h *harness) createIntent(t *testing.T, amount int64, method enums.CaptureMethod) *models.PaymentIntent {
	t.Helper()
	intent, err := h.pipeline.CreateIntent(context.Background(), h.merchant, CreateIntentParams{
		Amount:        amount,
		Currency:      "usd",
		CaptureMethod: method,
	})
	require.NoError(t, err)
	return intent
}

func (h *harness) authorize(t *testing.T, paymentID, token string) PaymentData {
	t.Helper()
	data, err := h.pipeline.Run(context.Background(), enums.PaymentFlowAuthorize, paymentID, Request{
		PaymentMethod: &connectors.PaymentMethod{Type: "card", Token: token},
	}, h.merchant)
	require.NoError(t, err)
	return data
}

func (h *harness) outboxEvents(t *testing.T) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, h.client.DB().Order("created_at").Find(&rows).Error)
	return rows
}
