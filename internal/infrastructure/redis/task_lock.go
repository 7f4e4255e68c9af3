package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	taskLockPrefix   = "reminder:lock:"
	lockPollInterval = 25 * time.Millisecond
)

var (
	errLockHeld = errors.New("lock held")
	errLockLost = errors.New("lock expired before release")
)

// deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TaskLocker is a lifecycle.Locker shared by every replica through Redis
type TaskLocker struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// NewTaskLocker creates a new Redis task locker. The ttl bounds how long a crashed holder blocks the key.
func NewTaskLocker(client *redis.Client, ttl time.Duration, log *slog.Logger) *TaskLocker {
	return &TaskLocker{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

// Lock polls SET NX until the key is free or ctx is done
func (l *TaskLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := taskLockPrefix + key
	token := uuid.NewString()

	acquire := func() error {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to acquire lock: %w", err))
		}
		if !ok {
			return errLockHeld
		}
		return nil
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(lockPollInterval), ctx)
	if err := backoff.Retry(acquire, policy); err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}

	return func() {
		if err := l.release(redisKey, token); err != nil {
			l.log.Warn("failed to release task lock", "key", key, "error", err)
		}
	}, nil
}

// release deletes the key if it still holds token. errLockLost means the ttl ran out while held.
func (l *TaskLocker) release(redisKey, token string) error {
	// the caller's ctx may already be cancelled; release on a fresh one
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	deleted, err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if deleted == 0 {
		return errLockLost
	}
	return nil
}
