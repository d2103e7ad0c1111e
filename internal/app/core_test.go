package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/juspay/hyperswitch-sub035/pkg/config"
	"github.com/juspay/hyperswitch-sub035/pkg/db"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
	"github.com/juspay/hyperswitch-sub035/pkg/security"
)

type nopLockStore struct{}

func (nopLockStore) SetNX(context.Context, string, any, time.Duration) (bool, error) {
	return true, nil
}

func (nopLockStore) SetNXMany(_ context.Context, keys []string, _ any, _ time.Duration) ([]bool, error) {
	out := make([]bool, len(keys))
	for i := range out {
		out[i] = true
	}
	return out, nil
}

func (nopLockStore) Get(context.Context, string) (string, error) { return "", nil }

func (nopLockStore) MGet(_ context.Context, keys ...string) ([]string, []bool, error) {
	return make([]string, len(keys)), make([]bool, len(keys)), nil
}

func (nopLockStore) Del(context.Context, ...string) error { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	key, err := security.GenerateKey()
	require.NoError(t, err)
	return &config.Config{
		App:      config.AppConfig{Env: "test"},
		Lock:     config.LockConfig{TTL: time.Minute, Delay: time.Millisecond, Retries: 2},
		GSM:      config.GSMConfig{DefaultEnabled: true},
		PCR:      config.PCRConfig{StartAfter: time.Minute, Frequencies: "300:3,3600:3"},
		Security: config.SecurityConfig{PIIKey: base64.StdEncoding.EncodeToString(key)},
	}
}

func testDB(t *testing.T) *db.Client {
	t.Helper()
	client, err := db.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())))
	require.NoError(t, err)
	require.NoError(t, client.DB().AutoMigrate(models.All()...))
	return client
}

func TestNewCoreWiresPipelineAndRecovery(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "app-test"})
	cfg := testConfig(t)
	registry, err := NewConnectorRegistry(context.Background(), cfg, logg)
	require.NoError(t, err)

	core, err := NewCore(context.Background(), CoreParams{
		Config:     cfg,
		Logger:     logg,
		DB:         testDB(t),
		LockStore:  nopLockStore{},
		Registerer: prometheus.NewRegistry(),
		Connectors: registry,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = core.Close() })

	assert.NotNil(t, core.Pipeline)
	assert.NotNil(t, core.Recovery)
	assert.NotNil(t, core.Trackers)
	assert.NotNil(t, core.Metrics)
}

func TestNewCoreRejectsMissingPIIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.PIIKey = ""
	_, err := NewCore(context.Background(), CoreParams{
		Config:    cfg,
		Logger:    logger.New(logger.Options{ServiceName: "app-test"}),
		DB:        testDB(t),
		LockStore: nopLockStore{},
	})
	require.Error(t, err)
}

func TestConnectorRegistrySkipsUnconfiguredSquare(t *testing.T) {
	registry, err := NewConnectorRegistry(context.Background(), testConfig(t), logger.New(logger.Options{ServiceName: "app-test"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"dummy", "mercadopago"}, registry.Names())
}
