package db

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/juspay/hyperswitch-sub035/pkg/logger"
)

// Opener builds a fresh client, typically against the current primary.
type Opener func(ctx context.Context) (*Client, error)

// Switch publishes the active pool through an atomic pointer. Readers load the
// pointer on every call, so a failover swap never blocks in-flight queries.
type Switch struct {
	current atomic.Pointer[Client]
	open    Opener
	logg    *logger.Logger
}

func NewSwitch(initial *Client, open Opener, logg *logger.Logger) (*Switch, error) {
	if initial == nil {
		return nil, errors.New("initial db client is required")
	}
	s := &Switch{open: open, logg: logg}
	s.current.Store(initial)
	return s, nil
}

// Client returns the pool currently in use.
func (s *Switch) Client() *Client {
	return s.current.Load()
}

// DB returns the GORM handle of the active pool.
func (s *Switch) DB() *gorm.DB {
	return s.current.Load().DB()
}

func (s *Switch) Ping(ctx context.Context) error {
	return s.current.Load().Ping(ctx)
}

func (s *Switch) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.current.Load().WithTx(ctx, fn)
}

// Swap installs next as the active pool and returns the previous one.
func (s *Switch) Swap(next *Client) *Client {
	if next == nil {
		return nil
	}
	return s.current.Swap(next)
}

// Recover opens a new pool and swaps it in, closing the old one.
func (s *Switch) Recover(ctx context.Context) error {
	if s.open == nil {
		return errors.New("db switch has no opener")
	}
	next, err := s.open(ctx)
	if err != nil {
		return err
	}
	if err := next.Ping(ctx); err != nil {
		_ = next.Close()
		return err
	}
	prev := s.Swap(next)
	if prev != nil && prev != next {
		if err := prev.Close(); err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "closing replaced db pool failed")
		}
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "event", "db.pool_swapped"), "database pool replaced")
	}
	return nil
}

// Watch pings the active pool every interval and recovers when it stops answering.
func (s *Switch) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				continue
			}
			if err := s.Recover(ctx); err != nil && s.logg != nil {
				s.logg.Error(ctx, "database pool recovery failed", err)
			}
		}
	}
}

func (s *Switch) Close() error {
	return s.current.Load().Close()
}
