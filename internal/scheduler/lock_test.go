package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kv map[string]string

func (m kv) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m[key]; ok {
		return false, nil
	}
	m[key] = value.(string)
	return true, nil
}

func (m kv) Get(_ context.Context, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m kv) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m, k)
	}
	return nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	store := kv{}
	ctx := context.Background()
	a, err := NewRedisLock(store, "scheduler:lock", 0)
	require.NoError(t, err)
	b, err := NewRedisLock(store, "scheduler:lock", 0)
	require.NoError(t, err)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Release(ctx))
	assert.Contains(t, store, "scheduler:lock")
	require.NoError(t, a.Release(ctx))
	assert.NotContains(t, store, "scheduler:lock")
}

func TestRedisLockLeavesForeignOwner(t *testing.T) {
	store := kv{}
	ctx := context.Background()
	l, err := NewRedisLock(store, "scheduler:lock", time.Second)
	require.NoError(t, err)
	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	store["scheduler:lock"] = "someone-else"
	require.NoError(t, l.Release(ctx))
	assert.Equal(t, "someone-else", store["scheduler:lock"])
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "k", 0)
	assert.Error(t, err)
	_, err = NewRedisLock(kv{}, "", 0)
	assert.Error(t, err)
}

func TestRedisLockOwnerCarriesWorkerID(t *testing.T) {
	t.Setenv("SWITCH_WORKER_ID", "scheduler-7")
	store := kv{}
	l, err := NewRedisLock(store, "scheduler:lock", time.Second)
	require.NoError(t, err)
	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(store["scheduler:lock"], "scheduler-7:"))
}
