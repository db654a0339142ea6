package locking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client
}

func TestInMemoryLockAcquireRelease(t *testing.T) {
	mu := &sync.Mutex{}
	lock := NewInMemoryLock(mu)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// Re-acquiring while already owned is idempotent.
	ok, err = lock.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, lock.Release(ctx))
}

func TestInMemoryLockBlocksOtherOwner(t *testing.T) {
	mu := &sync.Mutex{}
	first := NewInMemoryLock(mu)
	second := NewInMemoryLock(mu)
	ctx := context.Background()

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "a second lock over the same mutex must not acquire while the first holds it")

	require.NoError(t, first.Release(ctx))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAcquireWithRetrySucceedsOnceUnblocked(t *testing.T) {
	mu := &sync.Mutex{}
	holder := NewInMemoryLock(mu)
	waiter := NewInMemoryLock(mu)
	ctx := context.Background()

	ok, err := holder.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	go func() {
		time.Sleep(3 * BusyRetryInterval)
		_ = holder.Release(ctx)
	}()

	require.NoError(t, AcquireWithRetry(ctx, waiter))
}

func TestAcquireWithRetryRespectsContextCancellation(t *testing.T) {
	mu := &sync.Mutex{}
	holder := NewInMemoryLock(mu)
	waiter := NewInMemoryLock(mu)
	ctx, cancel := context.WithTimeout(context.Background(), 2*BusyRetryInterval)
	defer cancel()

	ok, err := holder.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	err = AcquireWithRetry(ctx, waiter)
	require.Error(t, err)
}

func TestRedisLockAcquireReleaseRoundTrip(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	lock := NewRedisLock(client, "search-index", time.Minute)
	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	other := NewRedisLock(client, "search-index", time.Minute)
	ok, err = other.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "a second RedisLock over the same key must not acquire while held")

	require.NoError(t, lock.Release(ctx))

	ok, err = other.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockReleaseOnlyRemovesOwnValue(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	owner := NewRedisLock(client, "search-index", time.Minute)
	ok, err := owner.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	intruder := NewRedisLock(client, "search-index", time.Minute)
	require.NoError(t, intruder.Release(ctx)) // no-op: intruder never held it

	stillOwned, err := NewRedisLock(client, "search-index", time.Minute).Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, stillOwned, "release from a non-owner must not clear the lock")
}
