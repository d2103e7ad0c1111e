package locking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juspay/hyperswitch-sub035/pkg/config"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
	"github.com/juspay/hyperswitch-sub035/pkg/metrics"
)

const (
	defaultTTL     = 100 * time.Second
	defaultDelay   = 50 * time.Millisecond
	defaultRetries = 20
)

// Store is the subset of the redis client the manager needs.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	SetNXMany(ctx context.Context, keys []string, value any, ttl time.Duration) ([]bool, error)
	MGet(ctx context.Context, keys ...string) ([]string, []bool, error)
	Del(ctx context.Context, keys ...string) error
}

type ManagerParams struct {
	Store   Store
	Config  config.LockConfig
	Logger  *logger.Logger
	Metrics *metrics.PaymentMetrics
}

// Manager grants per-resource mutual exclusion across API instances.
type Manager struct {
	store   Store
	ttl     time.Duration
	delay   time.Duration
	retries uint32
	logg    *logger.Logger
	metrics *metrics.PaymentMetrics
	sleep   func(context.Context, time.Duration) error
}

func NewManager(params ManagerParams) (*Manager, error) {
	if params.Store == nil {
		return nil, errors.New("lock store required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	m := &Manager{
		store:   params.Store,
		ttl:     params.Config.TTL,
		delay:   params.Config.Delay,
		retries: params.Config.Retries,
		logg:    params.Logger,
		metrics: params.Metrics,
		sleep:   sleepCtx,
	}
	if m.ttl <= 0 {
		m.ttl = defaultTTL
	}
	if m.delay <= 0 {
		m.delay = defaultDelay
	}
	if m.retries == 0 {
		m.retries = defaultRetries
	}
	return m, nil
}

// Lease is the result of a successful Acquire. Leases for no-op actions hold nothing.
type Lease struct {
	manager    *Manager
	kind       ActionKind
	keys       []string
	owner      string
	merchantID string
}

// Held reports whether the lease owns any key.
func (l *Lease) Held() bool {
	return l != nil && len(l.keys) > 0
}

// Keys returns the keys owned by this lease.
func (l *Lease) Keys() []string {
	if l == nil {
		return nil
	}
	out := make([]string, len(l.keys))
	copy(out, l.keys)
	return out
}

// Acquire performs action on behalf of requestID. Exhausting the retry budget
// yields a RESOURCE_BUSY error and leaves no key owned by requestID.
func (m *Manager) Acquire(ctx context.Context, action Action, merchantID, requestID string) (*Lease, error) {
	lease := &Lease{manager: m, kind: action.Kind, owner: requestID, merchantID: merchantID}
	if !action.Holds() {
		m.metrics.LockOutcome(string(action.Kind), "skipped")
		return lease, nil
	}
	if requestID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "lock owner is required")
	}
	keys := action.keys(merchantID)
	if len(keys) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "lock action has no inputs")
	}

	attempts := action.retries(m.retries)
	if attempts == 0 {
		attempts = 1
	}

	ctx = m.logg.WithFields(ctx, map[string]any{
		"event":       "lock.acquire",
		"lock_action": string(action.Kind),
		"lock_keys":   keys,
	})

	held := make(map[string]bool, len(keys))
	for attempt := uint32(1); attempt <= attempts; attempt++ {
		acquired, err := m.tryAcquire(ctx, keys, requestID, held)
		if err != nil {
			m.relinquish(ctx, heldKeys(keys, held), requestID)
			m.metrics.LockOutcome(string(action.Kind), "error")
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "acquire api lock")
		}
		if acquired {
			lease.keys = keys
			m.metrics.LockOutcome(string(action.Kind), "acquired")
			m.logg.Debug(ctx, "api lock acquired")
			return lease, nil
		}
		if attempt == attempts {
			break
		}
		if err := m.sleep(ctx, m.delay); err != nil {
			m.relinquish(ctx, heldKeys(keys, held), requestID)
			return nil, err
		}
	}

	m.relinquish(ctx, heldKeys(keys, held), requestID)
	m.metrics.LockOutcome(string(action.Kind), "busy")
	m.logg.Warn(ctx, "api lock retries exhausted")
	return nil, pkgerrors.New(pkgerrors.CodeResourceBusy, "resource is busy, please retry")
}

// tryAcquire claims the keys not yet in held. A key joins held only when this
// Acquire call wrote it, so a key that already carried owner before the call
// stays busy and one request id never takes the same lock twice.
func (m *Manager) tryAcquire(ctx context.Context, keys []string, owner string, held map[string]bool) (bool, error) {
	pending := make([]string, 0, len(keys))
	for _, key := range keys {
		if !held[key] {
			pending = append(pending, key)
		}
	}
	created, err := m.setNX(ctx, pending, owner)
	if err != nil {
		// The write may have landed before the reply was lost.
		values, present, readErr := m.store.MGet(ctx, pending...)
		if readErr != nil {
			return false, err
		}
		created = make([]bool, len(pending))
		for i := range pending {
			created[i] = present[i] && values[i] == owner
		}
	}
	for i, key := range pending {
		if created[i] {
			held[key] = true
		}
	}
	return len(held) == len(keys), nil
}

func (m *Manager) setNX(ctx context.Context, keys []string, owner string) ([]bool, error) {
	if len(keys) == 1 {
		ok, err := m.store.SetNX(ctx, keys[0], owner, m.ttl)
		return []bool{ok}, err
	}
	return m.store.SetNXMany(ctx, keys, owner, m.ttl)
}

func heldKeys(keys []string, held map[string]bool) []string {
	out := make([]string, 0, len(held))
	for _, key := range keys {
		if held[key] {
			out = append(out, key)
		}
	}
	return out
}

// relinquish drops the keys a failed acquisition wrote, skipping any that
// expired and were taken by another request in the meantime.
func (m *Manager) relinquish(ctx context.Context, keys []string, owner string) {
	if len(keys) == 0 {
		return
	}
	values, present, err := m.store.MGet(ctx, keys...)
	if err != nil {
		m.logg.Error(ctx, "read lock owners during cleanup failed", err)
		return
	}
	owned := make([]string, 0, len(keys))
	for i, key := range keys {
		if present[i] && values[i] == owner {
			owned = append(owned, key)
		}
	}
	if len(owned) == 0 {
		return
	}
	if err := m.store.Del(ctx, owned...); err != nil {
		m.logg.Error(ctx, "release partially acquired locks failed", err)
	}
}

// Release deletes the lease's keys after verifying every one of them is still
// owned by the lease. On any mismatch nothing is deleted.
func (l *Lease) Release(ctx context.Context) error {
	if !l.Held() {
		return nil
	}
	m := l.manager
	ctx = m.logg.WithFields(ctx, map[string]any{
		"event":       "lock.release",
		"lock_action": string(l.kind),
		"lock_keys":   l.keys,
	})

	values, present, err := m.store.MGet(ctx, l.keys...)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read lock owner")
	}
	for i, key := range l.keys {
		if !present[i] || values[i] != l.owner {
			m.metrics.LockOutcome(string(l.kind), "release_mismatch")
			return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("lock %s is not owned by this request", key))
		}
	}
	if err := m.store.Del(ctx, l.keys...); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete api lock")
	}
	m.metrics.LockOutcome(string(l.kind), "released")
	l.keys = nil
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
