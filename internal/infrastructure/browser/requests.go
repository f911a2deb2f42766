package browser

import (
	"sync"
	"time"
)

// requestTracker counts in-flight network requests reported by the tab.
type requestTracker struct {
	mu           sync.Mutex
	now          func() time.Time
	pending      map[string]struct{}
	lastActivity time.Time
}

func newRequestTracker(now func() time.Time) *requestTracker {
	return &requestTracker{
		now:          now,
		pending:      make(map[string]struct{}),
		lastActivity: now(),
	}
}

func (t *requestTracker) started(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[id] = struct{}{}
	t.lastActivity = t.now()
}

func (t *requestTracker) finished(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, id)
	t.lastActivity = t.now()
}

func (t *requestTracker) inFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// idleFor reports how long the network has been quiet; zero while busy.
func (t *requestTracker) idleFor() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pending) > 0 {
		return 0
	}
	return t.now().Sub(t.lastActivity)
}
