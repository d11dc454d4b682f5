package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("tournament is locked by another operation")
	ErrLockNotHeld     = errors.New("lock not held")
)

// Locker guards a key across API instances. Release must be called with the value Acquire returned.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lock, error)
}

type Lock interface {
	Release(ctx context.Context) error
}

// TournamentKey names the advisory lock of a tournament.
func TournamentKey(tournamentID int) string {
	return fmt.Sprintf("lock:tournament:%d", tournamentID)
}

// Lua: удаляем ключ только если он всё ещё наш.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

type RedisLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retries       int
	retryInterval time.Duration
}

// NewRedisLocker retries a busy lock a few times before giving up.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:        client,
		ttl:           ttl,
		retries:       5,
		retryInterval: 100 * time.Millisecond,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (Lock, error) {
	value := uuid.NewString()
	for i := 0; i < l.retries; i++ {
		ok, err := l.client.SetNX(ctx, key, value, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return &redisLock{client: l.client, key: key, value: value}, nil
		}
		if i < l.retries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(l.retryInterval):
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrLockNotAcquired, key)
}

type redisLock struct {
	client *redis.Client
	key    string
	value  string
}

func (l *redisLock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// NoopLocker is used when Redis is not configured; the row lock still serializes writers.
type NoopLocker struct{}

func (NoopLocker) Acquire(ctx context.Context, key string) (Lock, error) {
	return noopLock{}, nil
}

type noopLock struct{}

func (noopLock) Release(ctx context.Context) error { return nil }
