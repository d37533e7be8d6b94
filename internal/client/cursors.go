package client

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/gosuda/boardsync/internal/protocol"
)

const (
	DefaultCursorSmoothing = 0.35
	DefaultCursorGrace     = 2 * time.Second
	// DefaultCursorFrame is the flush interval of Run, about one display frame.
	DefaultCursorFrame = 16 * time.Millisecond
)

// RemoteCursor is the displayed position of another user's pointer.
type RemoteCursor struct {
	UserID string
	Name   string
	Color  string
	X, Y   float64

	targetX, targetY float64
}

// CursorTracker buffers incoming cursor updates and folds them in once per
// frame, easing each cursor toward its latest target. A cursor lingers for a
// grace period after its user leaves so it fades rather than vanishing.
type CursorTracker struct {
	mu        sync.Mutex
	smoothing float64
	grace     time.Duration
	now       func() time.Time

	pending map[string]protocol.CursorUpdate
	cursors map[string]*RemoteCursor
	leaving map[string]time.Time
}

type CursorOption func(*CursorTracker)

// WithSmoothing sets the fraction of the remaining distance covered per
// flush. 1 disables easing.
func WithSmoothing(f float64) CursorOption {
	return func(t *CursorTracker) {
		if f > 0 && f <= 1 {
			t.smoothing = f
		}
	}
}

func WithGrace(d time.Duration) CursorOption {
	return func(t *CursorTracker) { t.grace = d }
}

func WithCursorClock(now func() time.Time) CursorOption {
	return func(t *CursorTracker) { t.now = now }
}

func NewCursorTracker(opts ...CursorOption) *CursorTracker {
	t := &CursorTracker{
		smoothing: DefaultCursorSmoothing,
		grace:     DefaultCursorGrace,
		now:       time.Now,
		pending:   make(map[string]protocol.CursorUpdate),
		cursors:   make(map[string]*RemoteCursor),
		leaving:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Push buffers u until the next Flush. Only the latest update per user is
// kept.
func (t *CursorTracker) Push(u protocol.CursorUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[u.UserID] = u
}

// PresenceLeft schedules the user's cursor for removal after the grace
// period. The deadline is kept until the user joins again, so a cursor frame
// that arrives after the leave expires with it.
func (t *CursorTracker) PresenceLeft(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.leaving[userID] = t.now().Add(t.grace)
}

// PresenceJoined cancels a pending removal.
func (t *CursorTracker) PresenceJoined(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.leaving, userID)
}

// Clear drops every cursor, for example when the connection is lost.
func (t *CursorTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.pending)
	clear(t.cursors)
	clear(t.leaving)
}

// Flush applies buffered updates, advances easing by one step and expires
// cursors whose grace period is over.
func (t *CursorTracker) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for id, u := range t.pending {
		if deadline, left := t.leaving[id]; left && !now.Before(deadline) {
			continue
		}
		c, ok := t.cursors[id]
		if !ok {
			// First sighting jumps straight to the target.
			c = &RemoteCursor{UserID: id, X: u.X, Y: u.Y}
			t.cursors[id] = c
		}
		c.targetX, c.targetY = u.X, u.Y
		if u.Name != "" {
			c.Name = u.Name
		}
		if u.Color != "" {
			c.Color = u.Color
		}
	}
	clear(t.pending)

	for _, c := range t.cursors {
		c.X += (c.targetX - c.X) * t.smoothing
		c.Y += (c.targetY - c.Y) * t.smoothing
	}

	for id, deadline := range t.leaving {
		if !now.Before(deadline) {
			delete(t.cursors, id)
		}
	}
}

// Run flushes every interval until ctx ends.
func (t *CursorTracker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCursorFrame
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Flush()
		}
	}
}

// Snapshot returns the displayed cursors sorted by user id.
func (t *CursorTracker) Snapshot() []RemoteCursor {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]RemoteCursor, 0, len(t.cursors))
	for _, c := range t.cursors {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b RemoteCursor) int { return cmp.Compare(a.UserID, b.UserID) })
	return out
}
