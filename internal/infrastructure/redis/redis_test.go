package redis

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reminder-service/internal/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client, err := NewRedisClient(&config.RedisConfig{Addr: addr, DialTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { Close(client) })
	return client
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTaskLocker_ReleaseReportsExpiredLock(t *testing.T) {
	client := newTestClient(t)
	locker := NewTaskLocker(client, 5*time.Second, discardLogger())
	redisKey := taskLockPrefix + "task:" + uuid.NewString()

	require.NoError(t, client.Set(context.Background(), redisKey, "mine", time.Minute).Err())
	require.NoError(t, locker.release(redisKey, "mine"))

	// another holder took over after our ttl ran out
	require.NoError(t, client.Set(context.Background(), redisKey, "theirs", time.Minute).Err())
	assert.ErrorIs(t, locker.release(redisKey, "mine"), errLockLost)

	held, err := client.Get(context.Background(), redisKey).Result()
	require.NoError(t, err)
	assert.Equal(t, "theirs", held)
}

func TestTaskLocker_MutualExclusion(t *testing.T) {
	client := newTestClient(t)
	locker := NewTaskLocker(client, 5*time.Second, discardLogger())
	key := "task:" + uuid.NewString()

	var (
		wg      sync.WaitGroup
		holders int32
		maxSeen int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), key)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&holders, 1)
			if n > atomic.LoadInt32(&maxSeen) {
				atomic.StoreInt32(&maxSeen, n)
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&holders, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen)
}

func TestTaskLocker_ContextCancelled(t *testing.T) {
	client := newTestClient(t)
	locker := NewTaskLocker(client, 5*time.Second, discardLogger())
	key := "task:" + uuid.NewString()

	unlock, err := locker.Lock(context.Background(), key)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, key)
	assert.Error(t, err)
}

func TestCallbackDeduplicator(t *testing.T) {
	client := newTestClient(t)
	dedup := NewCallbackDeduplicator(client, time.Minute)
	key := uuid.NewString()

	first, err := dedup.FirstSeen(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := dedup.FirstSeen(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, again)
}
