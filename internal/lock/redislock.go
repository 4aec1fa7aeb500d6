package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cartkit:lock:"

var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

// Locker serialises cart read-modify-write cycles across processes with a Redis lease.
type Locker struct {
	Client       redis.UniversalClient
	RetryBackoff time.Duration
}

// WithLock runs fn while holding the lease on key. The lease is released when fn
// returns, error or not. Waiting stops when ctx is done.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.Client == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	full := keyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.Client.SetNX(ctx, full, token, ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			defer l.release(full, token)
			return fn(ctx)
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	// an expired lease needs no release, so failures are dropped
	_ = releaseScript.Run(ctx, l.Client, []string{key}, token).Err()
}
