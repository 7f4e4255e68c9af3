package cron

import (
	"sync"
	"time"
)

// Timers runs one-shot callbacks at a given time, e.g. the re-send after a snooze.
// Pending callbacks live only in memory; the timeout sweep covers anything lost on restart.
type Timers struct {
	mu      sync.Mutex
	pending map[*time.Timer]struct{}
	stopped bool
}

// NewTimers creates an empty timer set
func NewTimers() *Timers {
	return &Timers{pending: make(map[*time.Timer]struct{})}
}

// Schedule runs fn once at. A time in the past runs it right away.
func (t *Timers) Schedule(at time.Time, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(time.Until(at), func() {
		t.mu.Lock()
		delete(t.pending, timer)
		t.mu.Unlock()
		fn()
	})
	t.pending[timer] = struct{}{}
}

// Pending returns the number of callbacks not yet run
func (t *Timers) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Stop cancels every pending callback and rejects new ones
func (t *Timers) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	for timer := range t.pending {
		timer.Stop()
	}
	t.pending = make(map[*time.Timer]struct{})
}
