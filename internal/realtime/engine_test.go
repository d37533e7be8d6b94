package realtime_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/protocol"
	"github.com/gosuda/boardsync/internal/realtime"
)

var fixedNow = time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)

func newEngine(store domain.StorageAdapter) *realtime.Engine {
	return realtime.NewEngine(store, realtime.NewRoomRegistry(), realtime.NewPresenceTracker(), zerolog.Nop(),
		realtime.WithClock(func() time.Time { return fixedNow }),
		realtime.WithIDGenerator(func() string { return "server-id" }),
	)
}

func peer(conn, user string) realtime.Peer {
	return realtime.Peer{ConnID: conn, User: domain.Identity{UserID: user, SessionID: "s-" + conn}}
}

func ptr[T any](v T) *T { return &v }

func joined(t *testing.T, e *realtime.Engine, p realtime.Peer, boardID string) {
	t.Helper()
	out := e.Handle(context.Background(), p, protocol.JoinBoard{BoardID: boardID})
	require.NotEmpty(t, out)
}

func events(ds []realtime.Delivery) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Event)
	}
	return out
}

func stickyCmd(boardID, id string) protocol.CreateObject {
	o := &domain.BoardObject{ID: id, BoardID: boardID, Type: domain.ObjectTypeStickyNote, X: 10, Y: 20, Width: 200, Height: 200, CreatedBy: "spoofed"}
	o.Normalize()
	return protocol.CreateObject{BoardID: boardID, Object: o}
}

// ---------------------------------------------------------------------------
// Join / leave / presence
// ---------------------------------------------------------------------------

func TestEngine_JoinSendsSnapshotAndPresence(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.boards["b1"] = &domain.Board{ID: "b1", Title: "Retro", OwnerID: "alice"}
	store.findObjectsByBoardFunc = func(_ context.Context, _ string) ([]*domain.BoardObject, error) {
		return []*domain.BoardObject{{ID: "top", ZIndex: 9}, {ID: "base", ZIndex: 0}, {ID: "mid", ZIndex: 4}}, nil
	}
	e := newEngine(store)

	out := e.Handle(context.Background(), peer("c1", "alice"), protocol.JoinBoard{BoardID: "b1", DisplayName: "Alice"})
	require.Equal(t, []string{protocol.EventBoardLoad, protocol.EventPresenceList, protocol.EventPresenceJoin}, events(out))

	load := out[0].Payload.(protocol.BoardLoad)
	assert.Equal(t, "c1", out[0].ConnID)
	assert.Equal(t, "Retro", load.Board.Title)
	require.Len(t, load.Objects, 3)
	assert.Equal(t, []string{"base", "mid", "top"}, []string{load.Objects[0].ID, load.Objects[1].ID, load.Objects[2].ID})
	require.Len(t, load.Users, 1)
	assert.Equal(t, "Alice", load.Users[0].Name)

	assert.Equal(t, "c1", out[1].ConnID)

	join := out[2]
	assert.Empty(t, join.ConnID)
	assert.Equal(t, "board:b1", join.Room)
	assert.Equal(t, "c1", join.Except)
	assert.Equal(t, "alice", join.Payload.(protocol.PresenceJoin).User.UserID)

	t.Run("second tab of the same user is not announced", func(t *testing.T) {
		out := e.Handle(context.Background(), peer("c2", "alice"), protocol.JoinBoard{BoardID: "b1"})
		assert.Equal(t, []string{protocol.EventBoardLoad, protocol.EventPresenceList}, events(out))
	})

	t.Run("another user sees the roster", func(t *testing.T) {
		out := e.Handle(context.Background(), peer("c3", "bob"), protocol.JoinBoard{BoardID: "b1"})
		list := out[1].Payload.(protocol.PresenceList)
		require.Len(t, list.Users, 2)
		assert.Equal(t, "alice", list.Users[0].UserID)
		assert.Equal(t, "bob", list.Users[1].UserID)
	})
}

func TestEngine_JoinNeverFailsOnStorage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		boardErr error
	}{
		{"missing board", domain.ErrNotFound},
		{"broken store", errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newMockStore()
			store.findBoardByIDFunc = func(_ context.Context, _ string) (*domain.Board, error) { return nil, tt.boardErr }
			store.findObjectsByBoardFunc = func(_ context.Context, _ string) ([]*domain.BoardObject, error) {
				return nil, errors.New("boom")
			}
			e := newEngine(store)

			out := e.Handle(context.Background(), peer("c1", "u1"), protocol.JoinBoard{BoardID: "lost"})
			require.NotEmpty(t, out)

			load := out[0].Payload.(protocol.BoardLoad)
			assert.Equal(t, "lost", load.Board.ID)
			assert.Equal(t, domain.DefaultBoardTitle, load.Board.Title)
			assert.Equal(t, fixedNow, load.Board.CreatedAt)
			assert.NotNil(t, load.Objects)
			assert.Empty(t, load.Objects)
		})
	}
}

func TestEngine_LeaveAndDisconnect(t *testing.T) {
	t.Parallel()

	e := newEngine(newMockStore())
	alice, bob := peer("c1", "alice"), peer("c2", "bob")
	joined(t, e, alice, "b1")
	joined(t, e, alice, "b2")
	joined(t, e, bob, "b1")

	t.Run("explicit leave announces once", func(t *testing.T) {
		out := e.Handle(context.Background(), alice, protocol.LeaveBoard{BoardID: "b2"})
		require.Len(t, out, 1)
		assert.Equal(t, protocol.EventPresenceLeave, out[0].Event)
		assert.Equal(t, "board:b2", out[0].Room)

		assert.Empty(t, e.Handle(context.Background(), alice, protocol.LeaveBoard{BoardID: "b2"}))
	})

	t.Run("disconnect cleans every room", func(t *testing.T) {
		out := e.Disconnect(alice)
		require.Len(t, out, 1)
		assert.Equal(t, "board:b1", out[0].Room)
		assert.Equal(t, protocol.PresenceLeave{UserID: "alice"}, out[0].Payload)

		assert.Empty(t, e.Rooms().RoomsOf("c1"))
		users := e.Presence().Users("board:b1")
		require.Len(t, users, 1)
		assert.Equal(t, "bob", users[0].UserID)

		assert.Empty(t, e.Disconnect(alice))
	})
}

// ---------------------------------------------------------------------------
// Object sync
// ---------------------------------------------------------------------------

func TestEngine_CreateObject(t *testing.T) {
	t.Parallel()

	t.Run("client id honored and identity stamped", func(t *testing.T) {
		t.Parallel()

		store := newMockStore()
		e := newEngine(store)
		alice := peer("c1", "alice")
		joined(t, e, alice, "b1")

		out := e.Handle(context.Background(), alice, stickyCmd("b1", "client-uuid"))
		require.Len(t, out, 1)
		assert.Equal(t, protocol.EventObjectCreated, out[0].Event)
		assert.Equal(t, "board:b1", out[0].Room)
		assert.Empty(t, out[0].Except, "sender receives the echo")

		obj := out[0].Payload.(protocol.ObjectCreated).Object
		assert.Equal(t, "client-uuid", obj.ID)
		assert.Equal(t, "alice", obj.CreatedBy)
		assert.Equal(t, fixedNow, obj.UpdatedAt)
		assert.Equal(t, "b1", obj.BoardID)
	})

	t.Run("server mints id", func(t *testing.T) {
		t.Parallel()

		e := newEngine(newMockStore())
		alice := peer("c1", "alice")
		joined(t, e, alice, "b1")

		out := e.Handle(context.Background(), alice, stickyCmd("b1", ""))
		require.Len(t, out, 1)
		assert.Equal(t, "server-id", out[0].Payload.(protocol.ObjectCreated).Object.ID)
	})

	t.Run("non member is dropped before persistence", func(t *testing.T) {
		t.Parallel()

		store := newMockStore()
		e := newEngine(store)

		out := e.Handle(context.Background(), peer("c1", "alice"), stickyCmd("b1", ""))
		assert.Empty(t, out)
		assert.Zero(t, store.createCount())
	})

	t.Run("persistence failure goes to the sender only", func(t *testing.T) {
		t.Parallel()

		store := newMockStore()
		store.createObjectFunc = func(_ context.Context, _ *domain.BoardObject) (*domain.BoardObject, error) {
			return nil, errors.New("disk full")
		}
		e := newEngine(store)
		alice := peer("c1", "alice")
		joined(t, e, alice, "b1")

		out := e.Handle(context.Background(), alice, stickyCmd("b1", ""))
		require.Len(t, out, 1)
		assert.Equal(t, protocol.EventError, out[0].Event)
		assert.Equal(t, "c1", out[0].ConnID)
		assert.Equal(t, protocol.ErrorPayload{Message: "Failed to create object", Code: protocol.ErrorCodePersistence}, out[0].Payload)
	})
}

func TestEngine_MoveAndUpdate(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	e := newEngine(store)
	alice := peer("c1", "alice")
	joined(t, e, alice, "b1")
	e.Handle(context.Background(), alice, stickyCmd("b1", "o1"))

	t.Run("move", func(t *testing.T) {
		out := e.Handle(context.Background(), alice, protocol.MoveObject{BoardID: "b1", ObjectID: "o1", X: 150, Y: 150})
		require.Len(t, out, 1)
		assert.Equal(t, protocol.EventObjectUpdated, out[0].Event)

		upd := out[0].Payload.(protocol.ObjectUpdated)
		assert.Equal(t, "o1", upd.ObjectID)
		assert.Equal(t, "alice", upd.UpdatedBy)
		assert.Equal(t, domain.MoveDelta(150, 150), upd.Delta)
		assert.False(t, upd.UpdatedAt.IsZero())
	})

	t.Run("update", func(t *testing.T) {
		d := domain.ObjectDelta{Color: ptr("#ff0000"), Content: ptr("hi")}
		out := e.Handle(context.Background(), alice, protocol.UpdateObject{BoardID: "b1", ObjectID: "o1", Delta: d})
		require.Len(t, out, 1)
		assert.Equal(t, d, out[0].Payload.(protocol.ObjectUpdated).Delta)
	})

	t.Run("missing target is a silent no-op", func(t *testing.T) {
		out := e.Handle(context.Background(), alice, protocol.MoveObject{BoardID: "b1", ObjectID: "gone", X: 1, Y: 1})
		assert.Empty(t, out)
	})
}

func TestEngine_UpdateFailureMessages(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.updateObjectFunc = func(_ context.Context, _, _ string, _ domain.ObjectDelta) (*domain.BoardObject, error) {
		return nil, errors.New("timeout")
	}
	store.deleteObjectFunc = func(_ context.Context, _, _ string) error { return errors.New("timeout") }
	e := newEngine(store)
	alice := peer("c1", "alice")
	joined(t, e, alice, "b1")

	tests := []struct {
		cmd  protocol.Command
		want string
	}{
		{protocol.MoveObject{BoardID: "b1", ObjectID: "o1"}, "Failed to move object"},
		{protocol.UpdateObject{BoardID: "b1", ObjectID: "o1", Delta: domain.ObjectDelta{Width: ptr(2.0)}}, "Failed to update object"},
		{protocol.DeleteObject{BoardID: "b1", ObjectID: "o1"}, "Failed to delete object"},
	}
	for _, tt := range tests {
		out := e.Handle(context.Background(), alice, tt.cmd)
		require.Len(t, out, 1, tt.cmd.Event())
		assert.Equal(t, "c1", out[0].ConnID)
		assert.Equal(t, tt.want, out[0].Payload.(protocol.ErrorPayload).Message)
	}
}

func TestEngine_UpdateWithNilResultIsNoOp(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.updateObjectFunc = func(_ context.Context, _, _ string, _ domain.ObjectDelta) (*domain.BoardObject, error) {
		return nil, nil
	}
	e := newEngine(store)
	alice := peer("c1", "alice")
	joined(t, e, alice, "b1")

	tests := []protocol.Command{
		protocol.MoveObject{BoardID: "b1", ObjectID: "o1", X: 1, Y: 1},
		protocol.UpdateObject{BoardID: "b1", ObjectID: "o1", Delta: domain.ObjectDelta{Color: ptr("#000000")}},
	}
	for _, cmd := range tests {
		assert.Empty(t, e.Handle(context.Background(), alice, cmd), cmd.Event())
	}
}

func TestEngine_DeleteObject(t *testing.T) {
	t.Parallel()

	e := newEngine(newMockStore())
	alice := peer("c1", "alice")
	joined(t, e, alice, "b1")
	e.Handle(context.Background(), alice, stickyCmd("b1", "o1"))

	out := e.Handle(context.Background(), alice, protocol.DeleteObject{BoardID: "b1", ObjectID: "o1"})
	require.Len(t, out, 1)
	assert.Equal(t, protocol.ObjectDeleted{ObjectID: "o1", DeletedBy: "alice"}, out[0].Payload)

	assert.Empty(t, e.Handle(context.Background(), alice, protocol.DeleteObject{BoardID: "b1", ObjectID: "o1"}))
}

func TestEngine_LateJoinerSeesSurvivors(t *testing.T) {
	t.Parallel()

	e := newEngine(newMockStore())
	alice := peer("c1", "alice")
	joined(t, e, alice, "b1")
	e.Handle(context.Background(), alice, stickyCmd("b1", "keep"))
	e.Handle(context.Background(), alice, stickyCmd("b1", "drop"))
	e.Handle(context.Background(), alice, protocol.DeleteObject{BoardID: "b1", ObjectID: "drop"})

	out := e.Handle(context.Background(), peer("c9", "carol"), protocol.JoinBoard{BoardID: "b1"})
	objs := out[0].Payload.(protocol.BoardLoad).Objects
	require.Len(t, objs, 1)
	assert.Equal(t, "keep", objs[0].ID)
}

// ---------------------------------------------------------------------------
// Cursor
// ---------------------------------------------------------------------------

func TestEngine_MoveCursor(t *testing.T) {
	t.Parallel()

	e := newEngine(newMockStore())
	alice := peer("c1", "alice")
	joined(t, e, alice, "b1")
	joined(t, e, alice, "b2")

	out := e.Handle(context.Background(), alice, protocol.MoveCursor{X: 5, Y: 6})
	require.Len(t, out, 2)
	for i, room := range []string{"board:b1", "board:b2"} {
		assert.Equal(t, protocol.EventCursorUpdate, out[i].Event)
		assert.Equal(t, room, out[i].Room)
		assert.Equal(t, "c1", out[i].Except)

		upd := out[i].Payload.(protocol.CursorUpdate)
		assert.Equal(t, "alice", upd.UserID)
		assert.Equal(t, "alice", upd.Name)
		assert.Equal(t, domain.ColorForUser("alice"), upd.Color)
	}

	u, ok := e.Presence().Lookup("board:b1", "alice")
	require.True(t, ok)
	assert.Equal(t, &domain.Cursor{X: 5, Y: 6}, u.Cursor)

	t.Run("explicit name wins", func(t *testing.T) {
		out := e.Handle(context.Background(), alice, protocol.MoveCursor{X: 1, Y: 1, Name: "Al", Color: "#000000"})
		upd := out[0].Payload.(protocol.CursorUpdate)
		assert.Equal(t, "Al", upd.Name)
		assert.Equal(t, "#000000", upd.Color)
	})

	t.Run("no rooms no relay", func(t *testing.T) {
		assert.Empty(t, e.Handle(context.Background(), peer("c2", "bob"), protocol.MoveCursor{X: 1, Y: 1}))
	})
}

func TestEngine_RequiresIdentity(t *testing.T) {
	t.Parallel()

	e := newEngine(newMockStore())
	out := e.Handle(context.Background(), realtime.Peer{ConnID: "c1"}, protocol.JoinBoard{BoardID: "b1"})
	assert.Empty(t, out)
	assert.Empty(t, e.Rooms().RoomsOf("c1"))
}
