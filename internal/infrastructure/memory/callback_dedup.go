package memory

import (
	"context"
	"sync"
	"time"
)

// CallbackDeduplicator remembers delivered callback ids in process memory
type CallbackDeduplicator struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

// NewCallbackDeduplicator creates a deduplicator that forgets ids after ttl
func NewCallbackDeduplicator(ttl time.Duration, now func() time.Time) *CallbackDeduplicator {
	if now == nil {
		now = time.Now
	}
	return &CallbackDeduplicator{
		ttl:  ttl,
		now:  now,
		seen: make(map[string]time.Time),
	}
}

// FirstSeen returns true the first time key is seen within the ttl
func (d *CallbackDeduplicator) FirstSeen(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, expires := range d.seen {
		if !now.Before(expires) {
			delete(d.seen, k)
		}
	}

	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = now.Add(d.ttl)
	return true, nil
}
