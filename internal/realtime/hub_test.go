package realtime_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/auth"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/protocol"
	"github.com/gosuda/boardsync/internal/realtime"
	"github.com/gosuda/boardsync/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// tokenIsUser treats the bearer token as the user id.
var tokenIsUser = auth.VerifierFunc(func(_ context.Context, tok string) (*domain.Identity, error) {
	return &domain.Identity{UserID: tok, SessionID: "s-" + tok}, nil
})

func newHubServer(t *testing.T, store domain.StorageAdapter, relay realtime.Relay) (*realtime.Hub, string) {
	t.Helper()

	engine := realtime.NewEngine(store, realtime.NewRoomRegistry(), realtime.NewPresenceTracker(), zerolog.Nop())
	hub := realtime.NewHub(engine, relay, realtime.DefaultHubConfig(), zerolog.Nop())

	srv := httptest.NewServer(middleware.Auth(tokenIsUser)(http.HandlerFunc(hub.ServeWS)))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, url, user string) *wsClient {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer " + user}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(event string, data any) {
	c.t.Helper()

	frame, err := protocol.Encode(event, data)
	require.NoError(c.t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(c.t, c.conn.Write(ctx, websocket.MessageText, frame))
}

func (c *wsClient) next() protocol.Envelope {
	c.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, frame, err := c.conn.Read(ctx)
	require.NoError(c.t, err)
	env, err := protocol.Decode(frame)
	require.NoError(c.t, err)
	return env
}

// waitFor skips ahead to the next message carrying event and decodes it
// into v.
func (c *wsClient) waitFor(event string, v any) {
	c.t.Helper()

	for {
		env := c.next()
		if env.Event != event {
			continue
		}
		if v != nil {
			require.NoError(c.t, json.Unmarshal(env.Data, v))
		}
		return
	}
}

func (c *wsClient) join(boardID, name string) protocol.BoardLoad {
	c.t.Helper()

	c.send(protocol.EventBoardJoin, map[string]any{"boardId": boardID, "displayName": name})
	var load protocol.BoardLoad
	c.waitFor(protocol.EventBoardLoad, &load)
	c.waitFor(protocol.EventPresenceList, nil)
	return load
}

func stickyPayload(boardID, id string, height float64) map[string]any {
	obj := map[string]any{
		"type": "sticky_note", "x": 100, "y": 100, "width": 200, "height": height,
		"color": "#fef08a", "content": "",
	}
	if id != "" {
		obj["id"] = id
	}
	return map[string]any{"boardId": boardID, "object": obj}
}

// ---------------------------------------------------------------------------
// End-to-end
// ---------------------------------------------------------------------------

func TestHub_RejectsAnonymous(t *testing.T) {
	t.Parallel()

	engine := realtime.NewEngine(newMockStore(), realtime.NewRoomRegistry(), realtime.NewPresenceTracker(), zerolog.Nop())
	hub := realtime.NewHub(engine, nil, realtime.HubConfig{}, zerolog.Nop())

	rec := httptest.NewRecorder()
	hub.ServeWS(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHub_StickyNoteSession(t *testing.T) {
	t.Parallel()

	_, url := newHubServer(t, newMockStore(), nil)
	const noteID = "3f2c1a9e-8b7d-4c6e-9f10-2a3b4c5d6e7f"

	alice := dial(t, url, "alice")
	load := alice.join("b1", "Alice")
	assert.Empty(t, load.Objects)
	assert.Equal(t, domain.DefaultBoardTitle, load.Board.Title)

	bob := dial(t, url, "bob")
	bobLoad := bob.join("b1", "Bob")
	assert.Len(t, bobLoad.Users, 2)

	var joinedMsg protocol.PresenceJoin
	alice.waitFor(protocol.EventPresenceJoin, &joinedMsg)
	assert.Equal(t, "bob", joinedMsg.User.UserID)
	assert.Equal(t, "Bob", joinedMsg.User.Name)

	alice.send(protocol.EventObjectCreate, stickyPayload("b1", noteID, 200))

	for _, c := range []*wsClient{alice, bob} {
		var created protocol.ObjectCreated
		c.waitFor(protocol.EventObjectCreated, &created)
		assert.Equal(t, noteID, created.Object.ID)
		assert.Equal(t, "alice", created.Object.CreatedBy)
	}

	bob.send(protocol.EventObjectMove, map[string]any{"boardId": "b1", "objectId": noteID, "x": 150, "y": 150})

	for _, c := range []*wsClient{alice, bob} {
		var upd protocol.ObjectUpdated
		c.waitFor(protocol.EventObjectUpdated, &upd)
		assert.Equal(t, noteID, upd.ObjectID)
		assert.Equal(t, "bob", upd.UpdatedBy)
		require.NotNil(t, upd.Delta.X)
		assert.InDelta(t, 150, *upd.Delta.X, 0)
	}

	bob.send(protocol.EventCursorMove, map[string]any{"x": 7, "y": 8})
	var cur protocol.CursorUpdate
	alice.waitFor(protocol.EventCursorUpdate, &cur)
	assert.Equal(t, "bob", cur.UserID)
	assert.Equal(t, "Bob", cur.Name)
	assert.Equal(t, domain.ColorForUser("bob"), cur.Color)

	carol := dial(t, url, "carol")
	late := carol.join("b1", "")
	require.Len(t, late.Objects, 1)
	assert.InDelta(t, 150, late.Objects[0].X, 0)
	assert.InDelta(t, 150, late.Objects[0].Y, 0)
	assert.Len(t, late.Users, 3)
}

func TestHub_InvalidPayloadIsDropped(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	_, url := newHubServer(t, store, nil)

	alice := dial(t, url, "alice")
	alice.join("b1", "")

	alice.send(protocol.EventObjectCreate, stickyPayload("b1", "", 0))
	alice.send(protocol.EventObjectCreate, stickyPayload("b1", "not-a-uuid", 200))
	alice.send("object:explode", map[string]any{"boardId": "b1"})
	alice.send(protocol.EventObjectCreate, stickyPayload("b1", "", 1))

	env := alice.next()
	require.Equal(t, protocol.EventObjectCreated, env.Event)
	var created protocol.ObjectCreated
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.InDelta(t, 1, created.Object.Height, 0)
	assert.Equal(t, 1, store.createCount())
}

func TestHub_RoomIsolation(t *testing.T) {
	t.Parallel()

	_, url := newHubServer(t, newMockStore(), nil)

	alice := dial(t, url, "alice")
	alice.join("b1", "")
	bob := dial(t, url, "bob")
	bob.join("b2", "")

	alice.send(protocol.EventObjectCreate, stickyPayload("b1", "", 100))
	alice.send(protocol.EventCursorMove, map[string]any{"x": 1, "y": 1})
	alice.waitFor(protocol.EventObjectCreated, nil)

	bob.send(protocol.EventObjectCreate, stickyPayload("b2", "", 100))

	env := bob.next()
	require.Equal(t, protocol.EventObjectCreated, env.Event)
	var created protocol.ObjectCreated
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "b2", created.Object.BoardID)
}

func TestHub_MutationWithoutJoinIsDropped(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	_, url := newHubServer(t, store, nil)

	mallory := dial(t, url, "mallory")
	mallory.send(protocol.EventObjectCreate, stickyPayload("b1", "", 100))
	load := mallory.join("b1", "")

	assert.Empty(t, load.Objects)
	assert.Zero(t, store.createCount())
}

func TestHub_PresenceLeaveOnDisconnect(t *testing.T) {
	t.Parallel()

	hub, url := newHubServer(t, newMockStore(), nil)

	alice := dial(t, url, "alice")
	alice.join("b1", "")
	bob := dial(t, url, "bob")
	bob.join("b1", "")
	alice.waitFor(protocol.EventPresenceJoin, nil)

	require.NoError(t, bob.conn.Close(websocket.StatusNormalClosure, "bye"))

	var left protocol.PresenceLeave
	alice.waitFor(protocol.EventPresenceLeave, &left)
	assert.Equal(t, "bob", left.UserID)

	assert.Eventually(t, func() bool { return hub.SessionCount() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestHub_ShutdownClosesSessions(t *testing.T) {
	t.Parallel()

	hub, url := newHubServer(t, newMockStore(), nil)

	alice := dial(t, url, "alice")
	alice.join("b1", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The close handshake needs the client to be reading.
	errc := make(chan error, 1)
	go func() {
		_, _, err := alice.conn.Read(ctx)
		errc <- err
	}()
	require.NoError(t, hub.Shutdown(ctx))

	err := <-errc
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
	assert.Zero(t, hub.SessionCount())
}

// ---------------------------------------------------------------------------
// Relay
// ---------------------------------------------------------------------------

// memoryRelay is an in-process stand-in for Redis PubSub.
type memoryRelay struct {
	mu    sync.Mutex
	subs  []memorySub
	ready chan struct{}
	want  int
}

type memorySub struct {
	pattern string
	ch      chan []byte
}

func newMemoryRelay(subscribers int) *memoryRelay {
	return &memoryRelay{ready: make(chan struct{}), want: subscribers}
}

func (r *memoryRelay) Publish(_ context.Context, channel string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if ok, _ := path.Match(s.pattern, channel); ok {
			s.ch <- payload
		}
	}
	return nil
}

func (r *memoryRelay) PSubscribe(_ context.Context, pattern string) (<-chan []byte, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan []byte, 64)
	r.subs = append(r.subs, memorySub{pattern: pattern, ch: ch})
	if len(r.subs) == r.want {
		close(r.ready)
	}
	return ch, func() {}, nil
}

func TestHub_RelayBridgesNodes(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	relay := newMemoryRelay(2)
	hubA, urlA := newHubServer(t, store, relay)
	hubB, urlB := newHubServer(t, store, relay)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hubA.Run(ctx) }()
	go func() { _ = hubB.Run(ctx) }()

	select {
	case <-relay.ready:
	case <-time.After(5 * time.Second):
		t.Fatal("relay subscriptions not ready")
	}

	alice := dial(t, urlA, "alice")
	alice.join("b1", "")
	bob := dial(t, urlB, "bob")
	bob.join("b1", "")

	// Announced across the relay.
	alice.waitFor(protocol.EventPresenceJoin, nil)

	alice.send(protocol.EventObjectCreate, stickyPayload("b1", "", 100))

	var mine, theirs protocol.ObjectCreated
	alice.waitFor(protocol.EventObjectCreated, &mine)
	bob.waitFor(protocol.EventObjectCreated, &theirs)
	assert.Equal(t, mine.Object.ID, theirs.Object.ID)

	// Node A must not receive its own broadcast twice.
	bob.send(protocol.EventObjectDelete, map[string]any{"boardId": "b1", "objectId": mine.Object.ID})
	env := alice.next()
	assert.Equal(t, protocol.EventObjectDeleted, env.Event)
}
