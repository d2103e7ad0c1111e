package locking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juspay/hyperswitch-sub035/pkg/config"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}}
}

func (s *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = value.(string)
	return true, nil
}

func (s *memoryStore) SetNXMany(ctx context.Context, keys []string, value any, ttl time.Duration) ([]bool, error) {
	out := make([]bool, len(keys))
	for i, key := range keys {
		ok, _ := s.SetNX(ctx, key, value, ttl)
		out[i] = ok
	}
	return out, nil
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (s *memoryStore) MGet(_ context.Context, keys ...string) ([]string, []bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := make([]string, len(keys))
	present := make([]bool, len(keys))
	for i, key := range keys {
		values[i], present[i] = s.data[key]
	}
	return values, present, nil
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *memoryStore) set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

func (s *memoryStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

// lossyStore writes the key and then reports a transport error, once.
type lossyStore struct {
	*memoryStore
	lost bool
}

func (s *lossyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, err := s.memoryStore.SetNX(ctx, key, value, ttl); err != nil {
		return false, err
	}
	if !s.lost {
		s.lost = true
		return false, errors.New("read tcp: connection reset by peer")
	}
	return false, nil
}

func newTestManager(t *testing.T, store Store, retries uint32) *Manager {
	t.Helper()
	m, err := NewManager(ManagerParams{
		Store:  store,
		Config: config.LockConfig{TTL: time.Minute, Delay: time.Millisecond, Retries: retries},
		Logger: logger.New(logger.Options{ServiceName: "locking-test"}),
	})
	require.NoError(t, err)
	m.sleep = func(context.Context, time.Duration) error { return nil }
	return m
}

func paymentInput(id string) Input {
	return Input{UniqueLockingKey: id, APIIdentifier: "payments"}
}

func TestInputKeyFor(t *testing.T) {
	assert.Equal(t, "merchant_1_payments_pay_123", paymentInput("pay_123").KeyFor("merchant_1"))
}

func TestHoldAndRelease(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(t, store, 3)
	ctx := context.Background()

	lease, err := m.Acquire(ctx, Hold(paymentInput("pay_1")), "m1", "req-1")
	require.NoError(t, err)
	require.True(t, lease.Held())
	assert.True(t, store.has("m1_payments_pay_1"))

	require.NoError(t, lease.Release(ctx))
	assert.False(t, store.has("m1_payments_pay_1"))
}

func TestHoldExhaustsRetriesWithResourceBusy(t *testing.T) {
	store := newMemoryStore()
	store.set("m1_payments_pay_1", "other-request")
	m := newTestManager(t, store, 3)

	_, err := m.Acquire(context.Background(), Hold(paymentInput("pay_1")), "m1", "req-1")
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeResourceBusy))
	v, _ := store.Get(context.Background(), "m1_payments_pay_1")
	assert.Equal(t, "other-request", v)
}

func TestOverrideRetriesBoundsAttempts(t *testing.T) {
	store := newMemoryStore()
	store.set("m1_payments_pay_1", "other-request")
	m := newTestManager(t, store, 20)
	sleeps := 0
	m.sleep = func(context.Context, time.Duration) error { sleeps++; return nil }

	override := uint32(2)
	input := paymentInput("pay_1")
	input.OverrideLockRetries = &override
	_, err := m.Acquire(context.Background(), Hold(input), "m1", "req-1")
	require.Error(t, err)
	assert.Equal(t, 1, sleeps)
}

func TestHoldSucceedsAfterHolderReleases(t *testing.T) {
	store := newMemoryStore()
	store.set("m1_payments_pay_1", "other-request")
	m := newTestManager(t, store, 5)
	m.sleep = func(context.Context, time.Duration) error {
		_ = store.Del(context.Background(), "m1_payments_pay_1")
		return nil
	}

	lease, err := m.Acquire(context.Background(), Hold(paymentInput("pay_1")), "m1", "req-1")
	require.NoError(t, err)
	assert.True(t, lease.Held())
}

func TestReleaseSafetyDoesNotDeleteForeignOwner(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(t, store, 1)
	ctx := context.Background()

	lease, err := m.Acquire(ctx, Hold(paymentInput("pay_1")), "m1", "req-1")
	require.NoError(t, err)

	// TTL expiry handed the key to another request.
	store.set("m1_payments_pay_1", "req-2")

	err = lease.Release(ctx)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInternal))
	v, _ := store.Get(ctx, "m1_payments_pay_1")
	assert.Equal(t, "req-2", v)
}

func TestReleaseOfExpiredKeyIsAnError(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(t, store, 1)
	ctx := context.Background()

	lease, err := m.Acquire(ctx, Hold(paymentInput("pay_1")), "m1", "req-1")
	require.NoError(t, err)
	require.NoError(t, store.Del(ctx, "m1_payments_pay_1"))

	require.Error(t, lease.Release(ctx))
}

func TestHoldIsNotReentrant(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(t, store, 2)
	ctx := context.Background()

	lease, err := m.Acquire(ctx, Hold(paymentInput("pay_1")), "m1", "req-1")
	require.NoError(t, err)

	_, err = m.Acquire(ctx, Hold(paymentInput("pay_1")), "m1", "req-1")
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeResourceBusy))
	assert.True(t, store.has("m1_payments_pay_1"), "a busy retry must not drop the holder's key")

	require.NoError(t, lease.Release(ctx))
	assert.False(t, store.has("m1_payments_pay_1"))
}

func TestHoldClaimsKeyWrittenBeforeTransportError(t *testing.T) {
	store := &lossyStore{memoryStore: newMemoryStore()}
	m := newTestManager(t, store, 1)
	ctx := context.Background()

	lease, err := m.Acquire(ctx, Hold(paymentInput("pay_1")), "m1", "req-1")
	require.NoError(t, err)
	assert.True(t, lease.Held())
	require.NoError(t, lease.Release(ctx))
	assert.False(t, store.has("m1_payments_pay_1"))
}

func TestHoldMultipleAllOrNothing(t *testing.T) {
	store := newMemoryStore()
	store.set("m1_payments_pay_2", "other-request")
	m := newTestManager(t, store, 3)
	ctx := context.Background()

	_, err := m.Acquire(ctx, HoldMultiple(paymentInput("pay_1"), paymentInput("pay_2"), paymentInput("pay_3")), "m1", "req-1")
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeResourceBusy))
	assert.False(t, store.has("m1_payments_pay_1"), "partially acquired key must be released")
	assert.False(t, store.has("m1_payments_pay_3"), "partially acquired key must be released")
	v, _ := store.Get(ctx, "m1_payments_pay_2")
	assert.Equal(t, "other-request", v)
}

func TestHoldMultipleAcquiresAndReleasesAll(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(t, store, 3)
	ctx := context.Background()

	lease, err := m.Acquire(ctx, HoldMultiple(paymentInput("pay_1"), paymentInput("pay_2")), "m1", "req-1")
	require.NoError(t, err)
	assert.Len(t, lease.Keys(), 2)

	require.NoError(t, lease.Release(ctx))
	assert.False(t, store.has("m1_payments_pay_1"))
	assert.False(t, store.has("m1_payments_pay_2"))
}

func TestHoldMultipleReleaseVerifiesEveryKeyFirst(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(t, store, 3)
	ctx := context.Background()

	lease, err := m.Acquire(ctx, HoldMultiple(paymentInput("pay_1"), paymentInput("pay_2")), "m1", "req-1")
	require.NoError(t, err)
	store.set("m1_payments_pay_2", "req-2")

	require.Error(t, lease.Release(ctx))
	assert.True(t, store.has("m1_payments_pay_1"), "no key may be deleted when any owner mismatches")
}

func TestNoOpActionsAcquireNothing(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(t, store, 1)
	ctx := context.Background()

	for _, action := range []Action{QueueWithOk(), Drop(), NotApplicable()} {
		lease, err := m.Acquire(ctx, action, "m1", "req-1")
		require.NoError(t, err)
		assert.False(t, lease.Held())
		require.NoError(t, lease.Release(ctx))
	}
	assert.Empty(t, store.data)
}

func TestMutualExclusionUnderContention(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(t, store, 1000)
	m.sleep = func(context.Context, time.Duration) error { time.Sleep(100 * time.Microsecond); return nil }
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			owner := "req-" + string(rune('a'+id))
			lease, err := m.Acquire(ctx, Hold(paymentInput("pay_1")), "m1", owner)
			if err != nil {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(200 * time.Microsecond)
			atomic.AddInt32(&inside, -1)
			_ = lease.Release(ctx)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}
