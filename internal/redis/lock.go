package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("allocation lock not acquired")
)

const lockRetryInterval = 50 * time.Millisecond

// Locker serialises allocations for one calendar day across API instances.
// fn is only called once the lock is held; if it is never called the caller
// decides whether to proceed unlocked.
type Locker interface {
	WithDayLock(ctx context.Context, day string, fn func(ctx context.Context) error) error
}

type redisDayLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisDayLocker creates a locker that uses a per day Redis key. It polls
// for up to wait before giving up with ErrLockNotAcquired.
func NewRedisDayLocker(client *redis.Client, ttl, wait time.Duration) Locker {
	return &redisDayLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
	}
}

func dayKey(day string) string {
	return fmt.Sprintf("lock:alloc:%s", day)
}

func (l *redisDayLocker) WithDayLock(ctx context.Context, day string, fn func(ctx context.Context) error) error {
	key := dayKey(day)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// The request context may already be done; release on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = l.release(releaseCtx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisDayLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire allocation lock: %w", err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisDayLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release allocation lock: %w", err)
	}
	return nil
}

// NoopLocker runs fn directly. Used when Redis is not configured.
type NoopLocker struct{}

func (NoopLocker) WithDayLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
