package coalesce

import (
	"sync"
	"time"
)

// Throttle bounds how often run executes.
//
// A Trigger runs immediately when the previous run is at least interval old.
// Otherwise a single deferred run is scheduled interval later, re-armed on every
// further Trigger, so a burst costs at most one immediate and one settled run.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	run      func()
	deferred *Debouncer
	now      func() time.Time
}

// NewThrottle creates a Throttle around run.
func NewThrottle(interval time.Duration, run func()) *Throttle {
	t := &Throttle{interval: interval, run: run, now: time.Now}
	t.deferred = NewDebouncer(interval, t.fireDeferred)
	return t
}

// Trigger requests an execution.
func (t *Throttle) Trigger() {
	t.mu.Lock()
	now := t.now()
	if t.last.IsZero() || now.Sub(t.last) >= t.interval {
		t.last = now
		t.mu.Unlock()
		t.deferred.Cancel()
		t.run()
		return
	}
	t.mu.Unlock()
	t.deferred.Trigger()
}

// Cancel drops a pending deferred execution.
func (t *Throttle) Cancel() {
	t.deferred.Cancel()
}

func (t *Throttle) fireDeferred() {
	t.mu.Lock()
	t.last = t.now()
	t.mu.Unlock()
	t.run()
}
