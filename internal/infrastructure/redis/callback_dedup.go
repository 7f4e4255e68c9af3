package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const callbackDedupPrefix = "reminder:callback:"

// CallbackDeduplicator remembers delivered callback ids in Redis
type CallbackDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCallbackDeduplicator creates a new Redis callback deduplicator
func NewCallbackDeduplicator(client *redis.Client, ttl time.Duration) *CallbackDeduplicator {
	return &CallbackDeduplicator{
		client: client,
		ttl:    ttl,
	}
}

// FirstSeen returns true the first time key is stored within the ttl
func (d *CallbackDeduplicator) FirstSeen(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, callbackDedupPrefix+key, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to store callback id: %w", err)
	}
	return ok, nil
}
