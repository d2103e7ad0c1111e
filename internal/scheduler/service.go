package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/juspay/hyperswitch-sub035/internal/storage"
	"github.com/juspay/hyperswitch-sub035/pkg/config"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
	"github.com/juspay/hyperswitch-sub035/pkg/metrics"
)

// Business statuses stamped on rows the scheduler parks in review.
const (
	BusinessStatusPermanentFailure = "SCHEDULER_PERMANENT_FAILURE"
	BusinessStatusRetriesExhausted = "SCHEDULER_RETRIES_EXHAUSTED"
)

// TrackerStore is the slice of the process tracker repository the scheduler needs.
type TrackerStore interface {
	FindDue(ctx context.Context, runner string, now time.Time, limit int) ([]models.ProcessTracker, error)
	FindStale(ctx context.Context, cutoff time.Time, limit int) ([]models.ProcessTracker, error)
	Update(ctx context.Context, id string, from []enums.ProcessTrackerStatus, upd storage.TrackerUpdate) (bool, error)
}

type ServiceParams struct {
	Logger   *logger.Logger
	Trackers TrackerStore
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.TaskMetrics
	Config   config.SchedulerConfig
}

// Service polls due process tracker rows, claims them and runs their
// runner's handler on a bounded worker pool.
type Service struct {
	logg     *logger.Logger
	trackers TrackerStore
	registry *Registry
	lock     Lock
	metrics  *metrics.TaskMetrics
	cfg      config.SchedulerConfig
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Trackers == nil {
		return nil, fmt.Errorf("tracker store required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	cfg := params.Config
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Minute
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	return &Service{
		logg:     params.Logger,
		trackers: params.Trackers,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// Run polls until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "scheduler cycle failed", err)
	}
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "scheduler context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				s.logg.Error(ctx, "scheduler cycle failed", err)
			}
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	claimed, err := s.produce(ctx)
	if len(claimed) > 0 {
		s.consume(ctx, claimed)
	}
	return err
}

// produce recovers stale rows and claims due ones while holding the
// producer lock. Handlers run after the lock is released.
func (s *Service) produce(ctx context.Context) (claimed []models.ProcessTracker, err error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if !locked {
		s.logg.Debug(ctx, "another scheduler instance is producing; skipping cycle")
		return nil, nil
	}
	defer func() {
		err = multierr.Append(err, s.lock.Release(ctx))
	}()

	err = s.recoverStale(ctx)
	due, claimErr := s.claimDue(ctx)
	return due, multierr.Append(err, claimErr)
}

func (s *Service) recoverStale(ctx context.Context) error {
	now := s.now().UTC()
	stale, err := s.trackers.FindStale(ctx, now.Add(-s.cfg.StaleAfter), s.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("find stale trackers: %w", err)
	}
	var errs error
	for _, row := range stale {
		pending := enums.ProcessTrackerStatusPending
		ok, err := s.trackers.Update(ctx, row.ID, []enums.ProcessTrackerStatus{enums.ProcessTrackerStatusProcessStarted}, storage.TrackerUpdate{
			Status:       &pending,
			ScheduleTime: &now,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("requeue stale tracker %s: %w", row.ID, err))
			continue
		}
		if ok {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"tracker_id": row.ID,
				"runner":     row.Runner,
			}), "stale tracker requeued")
		}
	}
	return errs
}

func (s *Service) claimDue(ctx context.Context) ([]models.ProcessTracker, error) {
	now := s.now().UTC()
	var (
		claimed []models.ProcessTracker
		errs    error
	)
	for _, runner := range s.registry.Runners() {
		remaining := s.cfg.BatchSize - len(claimed)
		if remaining <= 0 {
			break
		}
		due, err := s.trackers.FindDue(ctx, runner, now, remaining)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("find due %s trackers: %w", runner, err))
			continue
		}
		for _, row := range due {
			started := enums.ProcessTrackerStatusProcessStarted
			ok, err := s.trackers.Update(ctx, row.ID, []enums.ProcessTrackerStatus{
				enums.ProcessTrackerStatusNew,
				enums.ProcessTrackerStatusPending,
			}, storage.TrackerUpdate{Status: &started})
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("claim tracker %s: %w", row.ID, err))
				continue
			}
			if !ok {
				continue
			}
			row.Status = started
			claimed = append(claimed, row)
		}
	}
	return claimed, errs
}

func (s *Service) consume(ctx context.Context, rows []models.ProcessTracker) {
	workers := s.cfg.Workers
	if workers > len(rows) {
		workers = len(rows)
	}
	queue := make(chan models.ProcessTracker, len(rows))
	for _, row := range rows {
		queue <- row
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := range queue {
				s.runTask(ctx, row)
			}
		}()
	}
	wg.Wait()
}

func (s *Service) runTask(ctx context.Context, row models.ProcessTracker) {
	taskCtx := s.logg.WithFields(ctx, map[string]any{
		"event":      "scheduler.task",
		"tracker_id": row.ID,
		"runner":     row.Runner,
		"task":       row.Name,
		"retry":      row.RetryCount,
	})
	start := time.Now()
	err := s.invoke(taskCtx, row)
	duration := time.Since(start)
	s.metrics.ObserveDuration(row.Runner, duration)
	taskCtx = s.logg.WithField(taskCtx, "duration_ms", duration.Milliseconds())
	if err == nil {
		s.metrics.IncSuccess(row.Runner)
		s.logg.Info(taskCtx, "task completed")
		return
	}
	s.metrics.IncFailure(row.Runner)
	s.logg.Error(taskCtx, "task failed", err)
	if rerr := s.settleFailure(ctx, taskCtx, row, err); rerr != nil {
		s.logg.Error(taskCtx, "failed to settle task failure", rerr)
	}
}

func (s *Service) invoke(ctx context.Context, row models.ProcessTracker) (err error) {
	h, ok := s.registry.Handler(row.Runner)
	if !ok {
		return fmt.Errorf("no handler registered for runner %q", row.Runner)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return h.Process(ctx, row)
}

// settleFailure records a handler error on a row still in ProcessStarted.
// Permanent errors and rows out of failures go to Review; anything else is
// requeued, transient database errors on the next cycle.
func (s *Service) settleFailure(ctx, taskCtx context.Context, row models.ProcessTracker, taskErr error) error {
	failures := row.FailureCount + 1
	upd := storage.TrackerUpdate{FailureCount: &failures}
	var business string
	switch {
	case isPermanent(taskErr):
		business = BusinessStatusPermanentFailure
	case failures >= s.cfg.MaxFailures:
		business = BusinessStatusRetriesExhausted
	}

	if business != "" {
		review := enums.ProcessTrackerStatusReview
		upd.Status, upd.BusinessStatus = &review, &business
	} else {
		delay := s.cfg.RetryDelay
		if pkgerrors.IsTransientDB(taskErr) {
			delay = 0
		}
		pending := enums.ProcessTrackerStatusPending
		at := s.now().UTC().Add(delay)
		upd.Status, upd.ScheduleTime = &pending, &at
	}

	ok, err := s.trackers.Update(ctx, row.ID, []enums.ProcessTrackerStatus{enums.ProcessTrackerStatusProcessStarted}, upd)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	if ok && business != "" {
		s.metrics.IncReview(row.Runner)
		s.logg.Warn(s.logg.WithFields(taskCtx, map[string]any{
			"business_status": business,
			"failures":        failures,
		}), "task moved to review")
	}
	return nil
}

// isPermanent reports errors that another run of the same row cannot fix.
func isPermanent(err error) bool {
	return pkgerrors.Is(err, pkgerrors.CodeValidation) ||
		pkgerrors.Is(err, pkgerrors.CodeNotFound) ||
		pkgerrors.Is(err, pkgerrors.CodeStateConflict)
}
