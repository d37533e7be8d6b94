package client

import (
	"sync"
	"time"
)

// Throttle calls fn at most once per interval. The first call in a quiet
// period runs immediately; calls inside the interval are coalesced and the
// latest value is delivered when the interval ends.
type Throttle[T any] struct {
	interval time.Duration
	fn       func(T)

	mu         sync.Mutex
	last       time.Time
	pending    T
	hasPending bool
	timer      *time.Timer
	stopped    bool
}

func NewThrottle[T any](interval time.Duration, fn func(T)) *Throttle[T] {
	return &Throttle[T]{interval: interval, fn: fn}
}

func (t *Throttle[T]) Call(v T) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	elapsed := time.Since(t.last)
	if elapsed >= t.interval && t.timer == nil {
		t.last = time.Now()
		t.mu.Unlock()
		t.fn(v)
		return
	}
	t.pending, t.hasPending = v, true
	if t.timer == nil {
		t.timer = time.AfterFunc(t.interval-elapsed, t.fire)
	}
	t.mu.Unlock()
}

func (t *Throttle[T]) fire() {
	t.mu.Lock()
	t.timer = nil
	if !t.hasPending || t.stopped {
		t.mu.Unlock()
		return
	}
	v := t.pending
	var zero T
	t.pending, t.hasPending = zero, false
	t.last = time.Now()
	t.mu.Unlock()
	t.fn(v)
}

// Stop drops any pending value. Later calls are ignored.
func (t *Throttle[T]) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.hasPending = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
