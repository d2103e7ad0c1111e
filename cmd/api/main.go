package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/juspay/hyperswitch-sub035/api/controllers"
	"github.com/juspay/hyperswitch-sub035/api/routes"
	"github.com/juspay/hyperswitch-sub035/internal/app"
	"github.com/juspay/hyperswitch-sub035/internal/webhooks/incoming"
	"github.com/juspay/hyperswitch-sub035/pkg/config"
	"github.com/juspay/hyperswitch-sub035/pkg/db"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
	"github.com/juspay/hyperswitch-sub035/pkg/migrate"
	"github.com/juspay/hyperswitch-sub035/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Env:         cfg.App.Env,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	dbSwitch, err := db.NewSwitch(dbClient, func(ctx context.Context) (*db.Client, error) {
		return db.New(ctx, cfg.DB, logg)
	}, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create database switch", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbSwitch.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbSwitch); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	core, err := app.NewCore(context.Background(), app.CoreParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbSwitch,
		LockStore:  redisClient,
		Registerer: registry,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to assemble payment core", err)
		os.Exit(1)
	}
	defer func() {
		if err := core.Close(); err != nil {
			logg.Error(context.Background(), "error closing payment core", err)
		}
	}()

	webhookService, err := incoming.NewService(incoming.ServiceParams{
		Payments: core.Payments,
		Executor: core.Pipeline,
		Locks:    core.Locks,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}
	webhookGuard, err := incoming.NewGuard(redisClient, cfg.HTTP.WebhookEventTTL, "connector-webhooks")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go dbSwitch.Watch(ctx, cfg.DB.HealthCheckInterval)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			Payments:     core.Pipeline,
			Idempotency:  redisClient,
			RateLimit:    redisClient,
			Webhooks:     webhookService,
			WebhookGuard: webhookGuard,
			Pingers: map[string]controllers.Pinger{
				"db":    dbSwitch,
				"redis": redisClient,
			},
			Metrics: registry,
		}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shutting down gracefully")
}
