package realtime

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/protocol"
)

// Peer is the connection a command arrived on together with its verified
// identity.
type Peer struct {
	ConnID string
	User   domain.Identity
}

// Delivery is one outbound message. When ConnID is set it goes to that
// connection only; otherwise it goes to every member of Room except Except.
type Delivery struct {
	ConnID  string
	Room    string
	Except  string
	Event   string
	Payload any
}

func direct(connID, event string, payload any) Delivery {
	return Delivery{ConnID: connID, Event: event, Payload: payload}
}

func broadcast(room, except, event string, payload any) Delivery {
	return Delivery{Room: room, Except: except, Event: event, Payload: payload}
}

// Engine applies validated commands to room and presence state and the
// store, and returns the messages that result. It holds no transport and is
// safe for concurrent use.
type Engine struct {
	store    domain.StorageAdapter
	rooms    *RoomRegistry
	presence *PresenceTracker
	logger   zerolog.Logger
	now      func() time.Time
	newID    func() string
}

type EngineOption func(*Engine)

// WithClock replaces the time source used for updatedAt and lastSeen.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator replaces the generator for server-minted object ids.
func WithIDGenerator(fn func() string) EngineOption {
	return func(e *Engine) { e.newID = fn }
}

func NewEngine(store domain.StorageAdapter, rooms *RoomRegistry, presence *PresenceTracker, logger zerolog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		rooms:    rooms,
		presence: presence,
		logger:   logger.With().Str("component", "engine").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Rooms() *RoomRegistry       { return e.rooms }
func (e *Engine) Presence() *PresenceTracker { return e.presence }

// Handle runs one command for peer.
func (e *Engine) Handle(ctx context.Context, p Peer, cmd protocol.Command) []Delivery {
	if p.User.UserID == "" {
		e.logger.Warn().Str("conn_id", p.ConnID).Str("event", cmd.Event()).Msg("command without identity dropped")
		return nil
	}

	switch c := cmd.(type) {
	case protocol.JoinBoard:
		return e.join(ctx, p, c)
	case protocol.LeaveBoard:
		return e.leave(p, c)
	case protocol.MoveCursor:
		return e.moveCursor(p, c)
	case protocol.CreateObject:
		return e.createObject(ctx, p, c)
	case protocol.MoveObject:
		return e.updateObject(ctx, p, protocol.EventObjectMove, c.BoardID, c.ObjectID, domain.MoveDelta(c.X, c.Y), "Failed to move object")
	case protocol.UpdateObject:
		return e.updateObject(ctx, p, protocol.EventObjectUpdate, c.BoardID, c.ObjectID, c.Delta, "Failed to update object")
	case protocol.DeleteObject:
		return e.deleteObject(ctx, p, c)
	default:
		e.logger.Warn().Str("event", cmd.Event()).Msg("unhandled command")
		return nil
	}
}

// Disconnect removes p from every room it joined and announces the users
// that are no longer present.
func (e *Engine) Disconnect(p Peer) []Delivery {
	var out []Delivery
	for _, room := range e.rooms.LeaveAll(p.ConnID) {
		if e.presence.Leave(room, p.ConnID, p.User.UserID) {
			out = append(out, broadcast(room, "", protocol.EventPresenceLeave, protocol.PresenceLeave{UserID: p.User.UserID}))
		}
	}
	return out
}

func (e *Engine) join(ctx context.Context, p Peer, c protocol.JoinBoard) []Delivery {
	room := protocol.RoomName(c.BoardID)
	e.rooms.Join(room, p.ConnID)
	user, fresh := e.presence.Join(room, p.ConnID, p.User.UserID, c.DisplayName, c.AvatarURL, e.now())

	board := e.loadBoard(ctx, c.BoardID)
	objects := e.loadObjects(ctx, c.BoardID)
	users := e.presence.Users(room)

	e.logger.Info().
		Str("conn_id", p.ConnID).
		Str("user_id", p.User.UserID).
		Str("room", room).
		Int("objects", len(objects)).
		Msg("joined room")

	out := []Delivery{
		direct(p.ConnID, protocol.EventBoardLoad, protocol.BoardLoad{Board: board, Objects: objects, Users: users}),
		direct(p.ConnID, protocol.EventPresenceList, protocol.PresenceList{Users: users}),
	}
	if fresh {
		out = append(out, broadcast(room, p.ConnID, protocol.EventPresenceJoin, protocol.PresenceJoin{User: user}))
	}
	return out
}

// loadBoard never fails: a missing or unreadable board yields the fallback
// summary so the join still completes.
func (e *Engine) loadBoard(ctx context.Context, boardID string) *domain.Board {
	b, err := e.store.FindBoardByID(ctx, boardID)
	if err == nil && b != nil {
		return b
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		e.logger.Error().Err(err).Str("board_id", boardID).Msg("load board for snapshot")
	}
	return domain.FallbackBoard(boardID, e.now())
}

func (e *Engine) loadObjects(ctx context.Context, boardID string) []*domain.BoardObject {
	objs, err := e.store.FindObjectsByBoard(ctx, boardID)
	if err != nil {
		e.logger.Error().Err(err).Str("board_id", boardID).Msg("load objects for snapshot")
		return []*domain.BoardObject{}
	}
	if objs == nil {
		objs = []*domain.BoardObject{}
	}
	slices.SortStableFunc(objs, func(a, b *domain.BoardObject) int {
		return cmp.Compare(a.ZIndex, b.ZIndex)
	})
	return objs
}

func (e *Engine) leave(p Peer, c protocol.LeaveBoard) []Delivery {
	room := protocol.RoomName(c.BoardID)
	if !e.rooms.Leave(room, p.ConnID) {
		return nil
	}
	e.logger.Info().Str("conn_id", p.ConnID).Str("room", room).Msg("left room")
	if !e.presence.Leave(room, p.ConnID, p.User.UserID) {
		return nil
	}
	return []Delivery{broadcast(room, p.ConnID, protocol.EventPresenceLeave, protocol.PresenceLeave{UserID: p.User.UserID})}
}

// member reports whether p may mutate boardID, logging the drop otherwise.
func (e *Engine) member(p Peer, event, boardID string) (string, bool) {
	room := protocol.RoomName(boardID)
	if e.rooms.IsMember(room, p.ConnID) {
		return room, true
	}
	e.logger.Warn().
		Str("conn_id", p.ConnID).
		Str("event", event).
		Str("room", room).
		Msg("command for a room the connection has not joined dropped")
	return "", false
}

func (e *Engine) fail(p Peer, message string) []Delivery {
	return []Delivery{direct(p.ConnID, protocol.EventError, protocol.ErrorPayload{
		Message: message,
		Code:    protocol.ErrorCodePersistence,
	})}
}
