package locks

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisClient(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available:", err)
	}
	client.FlushDB(ctx)
	return client
}

func TestTournamentKey(t *testing.T) {
	assert.Equal(t, "lock:tournament:42", TournamentKey(42))
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	client := setupRedisClient(t)
	defer client.Close()

	locker := NewRedisLocker(client, 5*time.Second)
	locker.retries = 1
	ctx := context.Background()

	lock, err := locker.Acquire(ctx, TournamentKey(1))
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, TournamentKey(1))
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	require.NoError(t, lock.Release(ctx))
	assert.ErrorIs(t, lock.Release(ctx), ErrLockNotHeld)

	again, err := locker.Acquire(ctx, TournamentKey(1))
	require.NoError(t, err)
	defer again.Release(ctx)
}

func TestRedisLocker_ReleaseDoesNotStealForeignLock(t *testing.T) {
	client := setupRedisClient(t)
	defer client.Close()

	locker := NewRedisLocker(client, 100*time.Millisecond)
	locker.retries = 1
	ctx := context.Background()

	first, err := locker.Acquire(ctx, TournamentKey(2))
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)

	second, err := locker.Acquire(ctx, TournamentKey(2))
	require.NoError(t, err)

	assert.ErrorIs(t, first.Release(ctx), ErrLockNotHeld)
	assert.NoError(t, second.Release(ctx))
}

func TestNoopLocker(t *testing.T) {
	lock, err := NoopLocker{}.Acquire(context.Background(), TournamentKey(3))
	require.NoError(t, err)
	assert.NoError(t, lock.Release(context.Background()))
}
