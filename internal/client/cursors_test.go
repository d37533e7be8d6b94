package client_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/client"
	"github.com/gosuda/boardsync/internal/protocol"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTracker() (*client.CursorTracker, *fakeClock) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	tr := client.NewCursorTracker(
		client.WithSmoothing(0.5),
		client.WithGrace(2*time.Second),
		client.WithCursorClock(clk.Now),
	)
	return tr, clk
}

func TestCursorTracker_Easing(t *testing.T) {
	t.Parallel()

	tr, _ := newTracker()
	tr.Push(protocol.CursorUpdate{UserID: "bob", X: 0, Y: 0, Name: "Bob", Color: "#fff"})
	assert.Empty(t, tr.Snapshot(), "updates apply on flush")

	tr.Flush()
	snap := tr.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "Bob", snap[0].Name)
	assert.InDelta(t, 0, snap[0].X, 0)

	tr.Push(protocol.CursorUpdate{UserID: "bob", X: 50, Y: 10})
	tr.Push(protocol.CursorUpdate{UserID: "bob", X: 100, Y: 20})
	tr.Flush()
	snap = tr.Snapshot()
	assert.InDelta(t, 50, snap[0].X, 1e-9, "only the latest target is used")
	assert.InDelta(t, 10, snap[0].Y, 1e-9)
	assert.Equal(t, "Bob", snap[0].Name, "empty name keeps the previous one")

	tr.Flush()
	assert.InDelta(t, 75, tr.Snapshot()[0].X, 1e-9)
}

func TestCursorTracker_GracePeriod(t *testing.T) {
	t.Parallel()

	tr, clk := newTracker()
	tr.Push(protocol.CursorUpdate{UserID: "bob", X: 1, Y: 1})
	tr.Push(protocol.CursorUpdate{UserID: "carol", X: 2, Y: 2})
	tr.Flush()

	tr.PresenceLeft("bob")
	clk.Advance(time.Second)
	tr.Flush()
	assert.Len(t, tr.Snapshot(), 2, "cursor lingers during grace")

	clk.Advance(time.Second)
	tr.Flush()
	snap := tr.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "carol", snap[0].UserID)
}

func TestCursorTracker_RejoinCancelsRemoval(t *testing.T) {
	t.Parallel()

	tr, clk := newTracker()
	tr.Push(protocol.CursorUpdate{UserID: "bob", X: 1, Y: 1})
	tr.Flush()

	tr.PresenceLeft("bob")
	tr.PresenceJoined("bob")
	clk.Advance(5 * time.Second)
	tr.Flush()
	assert.Len(t, tr.Snapshot(), 1)

	tr.Clear()
	assert.Empty(t, tr.Snapshot())
}

func TestCursorTracker_FrameAfterLeave(t *testing.T) {
	t.Parallel()

	tr, clk := newTracker()
	tr.PresenceLeft("bob")
	tr.Push(protocol.CursorUpdate{UserID: "bob", X: 5, Y: 5})
	tr.Flush()
	assert.Len(t, tr.Snapshot(), 1, "late frame shows during grace")

	clk.Advance(time.Hour)
	tr.Flush()
	assert.Empty(t, tr.Snapshot(), "late frame expires with the leave")

	tr.Push(protocol.CursorUpdate{UserID: "bob", X: 6, Y: 6})
	tr.Flush()
	assert.Empty(t, tr.Snapshot(), "frames after the deadline are dropped")

	tr.PresenceJoined("bob")
	tr.Push(protocol.CursorUpdate{UserID: "bob", X: 7, Y: 7})
	tr.Flush()
	require.Len(t, tr.Snapshot(), 1)
	assert.InDelta(t, 7, tr.Snapshot()[0].X, 0)
}
