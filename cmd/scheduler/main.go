package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/juspay/hyperswitch-sub035/internal/app"
	"github.com/juspay/hyperswitch-sub035/internal/pcr"
	"github.com/juspay/hyperswitch-sub035/internal/scheduler"
	"github.com/juspay/hyperswitch-sub035/pkg/config"
	"github.com/juspay/hyperswitch-sub035/pkg/db"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
	"github.com/juspay/hyperswitch-sub035/pkg/metrics"
	"github.com/juspay/hyperswitch-sub035/pkg/migrate"
	"github.com/juspay/hyperswitch-sub035/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "scheduler"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "scheduler"

	logg = logger.New(logger.Options{
		ServiceName: "scheduler",
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

	core, err := app.NewCore(context.Background(), app.CoreParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbSwitch,
		LockStore:  redisClient,
		Registerer: prometheus.DefaultRegisterer,
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

	lock, err := scheduler.NewRedisLock(redisClient, redisClient.SchedulerLockKey(cfg.App.Env), cfg.Scheduler.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler lock", err)
		os.Exit(1)
	}

	registry := scheduler.NewRegistry()
	registry.Register(pcr.Runner, core.Recovery)

	service, err := scheduler.NewService(scheduler.ServiceParams{
		Logger:   logg,
		Trackers: core.Trackers,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewTaskMetrics(prometheus.DefaultRegisterer),
		Config:   cfg.Scheduler,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go dbSwitch.Watch(ctx, cfg.DB.HealthCheckInterval)

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"runners":     registry.Runners(),
	})
	logg.Info(ctx, "starting scheduler")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "scheduler stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "scheduler shutting down gracefully")
}
