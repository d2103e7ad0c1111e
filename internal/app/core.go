// Package app assembles the payment core shared by the API and scheduler binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/juspay/hyperswitch-sub035/internal/connectors"
	"github.com/juspay/hyperswitch-sub035/internal/connectors/dummy"
	"github.com/juspay/hyperswitch-sub035/internal/connectors/mercadopago"
	squareconnector "github.com/juspay/hyperswitch-sub035/internal/connectors/square"
	"github.com/juspay/hyperswitch-sub035/internal/gsm"
	"github.com/juspay/hyperswitch-sub035/internal/locking"
	"github.com/juspay/hyperswitch-sub035/internal/operations"
	"github.com/juspay/hyperswitch-sub035/internal/pcr"
	"github.com/juspay/hyperswitch-sub035/internal/routing"
	"github.com/juspay/hyperswitch-sub035/internal/storage"
	"github.com/juspay/hyperswitch-sub035/internal/webhooks"
	"github.com/juspay/hyperswitch-sub035/pkg/config"
	"github.com/juspay/hyperswitch-sub035/pkg/db"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
	"github.com/juspay/hyperswitch-sub035/pkg/metrics"
	"github.com/juspay/hyperswitch-sub035/pkg/outbox"
	"github.com/juspay/hyperswitch-sub035/pkg/security"
	"github.com/juspay/hyperswitch-sub035/pkg/square"
)

type CoreParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         db.Provider
	LockStore  locking.Store
	Registerer prometheus.Registerer
	// Connectors overrides the connector set built from config.
	Connectors *connectors.Registry
}

// Core is the wired payment engine.
type Core struct {
	Pipeline *operations.Pipeline
	Recovery *pcr.Workflow
	Payments *storage.PaymentRepository
	Trackers *storage.ProcessTrackerRepository
	Locks    *locking.Manager
	Metrics  *metrics.PaymentMetrics

	scorer *routing.GRPCScorer
}

func NewCore(ctx context.Context, params CoreParams) (*Core, error) {
	cfg, logg := params.Config, params.Logger
	switch {
	case cfg == nil:
		return nil, errors.New("config required")
	case logg == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db provider required")
	case params.LockStore == nil:
		return nil, errors.New("lock store required")
	}

	var paymentMetrics *metrics.PaymentMetrics
	if params.Registerer != nil {
		paymentMetrics = metrics.NewPaymentMetrics(params.Registerer)
	}

	cipher, err := security.CipherFromConfig(cfg.Security)
	if err != nil {
		return nil, fmt.Errorf("pii cipher: %w", err)
	}

	registry := params.Connectors
	if registry == nil {
		if registry, err = NewConnectorRegistry(ctx, cfg, logg); err != nil {
			return nil, err
		}
	}
	invoker, err := connectors.NewInvoker(registry, logg, paymentMetrics)
	if err != nil {
		return nil, err
	}

	core := &Core{Metrics: paymentMetrics}

	merchants := storage.NewMerchantRepository(params.DB)
	configs := storage.NewConfigRepository(params.DB)
	payments := storage.NewPaymentRepository(params.DB)
	core.Payments = payments
	core.Trackers = storage.NewProcessTrackerRepository(params.DB)

	scorer, err := routing.NewGRPCScorer(cfg.Routing)
	if err != nil {
		return nil, err
	}
	var routingScorer routing.Scorer
	if scorer != nil {
		core.scorer = scorer
		routingScorer = scorer
	}

	emitter, err := webhooks.NewEmitter(outbox.NewService(outbox.NewRepository(params.DB), logg))
	if err != nil {
		return nil, err
	}

	locks, err := locking.NewManager(locking.ManagerParams{
		Store:   params.LockStore,
		Config:  cfg.Lock,
		Logger:  logg,
		Metrics: paymentMetrics,
	})
	if err != nil {
		return nil, err
	}
	core.Locks = locks

	engine, err := gsm.NewEngine(gsm.EngineParams{
		Rules:   storage.NewGSMRepository(params.DB),
		Configs: configs,
		Config:  cfg.GSM,
		Logger:  logg,
		Metrics: paymentMetrics,
	})
	if err != nil {
		return nil, err
	}

	deps := &operations.Dependencies{
		Payments:  payments,
		Captures:  storage.NewCaptureRepository(params.DB),
		Merchants: merchants,
		Router:    routing.NewRouter(merchants, routingScorer, logg),
		Webhooks:  emitter,
		Cipher:    cipher,
		Logger:    logg,
	}
	core.Pipeline, err = operations.NewPipeline(operations.PipelineParams{
		Deps:    deps,
		Locks:   locks,
		Invoker: invoker,
		GSM:     engine,
		Metrics: paymentMetrics,
	})
	if err != nil {
		_ = core.Close()
		return nil, err
	}

	curve, err := pcr.DefaultCurve(cfg.PCR)
	if err != nil {
		_ = core.Close()
		return nil, err
	}
	core.Recovery, err = pcr.NewWorkflow(pcr.WorkflowParams{
		Trackers: core.Trackers,
		Payments: payments,
		Executor: core.Pipeline,
		Webhooks: emitter,
		Curves:   pcr.NewCurveLoader(configs, curve, logg),
		Locks:    locks,
		Logger:   logg,
		Metrics:  paymentMetrics,
	})
	if err != nil {
		_ = core.Close()
		return nil, err
	}
	// The workflow runs flows through the pipeline, so it is attached last.
	deps.Recovery = core.Recovery
	return core, nil
}

// Close releases the scorer connection, if any.
func (c *Core) Close() error {
	if c == nil || c.scorer == nil {
		return nil
	}
	return c.scorer.Close()
}

// NewConnectorRegistry registers the sandbox connector plus every processor
// with credentials in config.
func NewConnectorRegistry(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*connectors.Registry, error) {
	registry := connectors.NewRegistry()
	if err := registry.Register(dummy.New()); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Square.AccessToken) != "" {
		client, err := square.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return nil, fmt.Errorf("square client: %w", err)
		}
		if err := registry.Register(squareconnector.New(client)); err != nil {
			return nil, err
		}
	}
	if err := registry.Register(mercadopago.New(cfg.MercadoPago.AccessToken, mercadopago.SDKClientFactory)); err != nil {
		return nil, err
	}
	logg.Info(logg.WithField(ctx, "connectors", registry.Names()), "connector registry ready")
	return registry, nil
}
