package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/protocol"
)

// CursorInterval spaces outgoing cursor:move events, about 30 per second.
const CursorInterval = 33 * time.Millisecond

// Board binds local board state to a Conn. Mutations are applied to Objects
// first and then sent; the server's echo reconciles them. Server events do
// not all name their board, so use one Board per Conn.
type Board struct {
	ID      string
	Objects *ObjectStore
	Users   *Roster
	Cursors *CursorTracker

	conn   *Conn
	self   domain.UserPresence
	logger zerolog.Logger
	cursor *Throttle[protocol.MoveCursor]

	mu      sync.RWMutex
	meta    *domain.Board
	loaded  chan struct{}
	onError func(protocol.ErrorPayload)
}

// NewBoard wires a board to conn. name is the display name announced on
// join; the cursor color is derived from userID the same way the server
// derives presence colors.
func NewBoard(conn *Conn, boardID, userID, name string) *Board {
	b := &Board{
		ID:      boardID,
		Objects: NewObjectStore(),
		Users:   NewRoster(),
		Cursors: NewCursorTracker(),
		conn:    conn,
		self:    domain.UserPresence{UserID: userID, Name: name, Color: domain.ColorForUser(userID)},
		logger:  conn.logger.With().Str("board_id", boardID).Logger(),
		loaded:  make(chan struct{}),
	}
	b.cursor = NewThrottle(CursorInterval, func(m protocol.MoveCursor) {
		if err := conn.Emit(context.Background(), protocol.EventCursorMove, m); err != nil {
			b.logger.Debug().Err(err).Msg("cursor emit")
		}
	})

	conn.On(protocol.EventBoardLoad, b.onBoardLoad)
	conn.On(protocol.EventPresenceList, decodeInto(b, func(p protocol.PresenceList) { b.Users.Replace(p.Users) }))
	conn.On(protocol.EventPresenceJoin, decodeInto(b, func(p protocol.PresenceJoin) {
		if p.User == nil {
			return
		}
		b.Users.Add(p.User)
		b.Cursors.PresenceJoined(p.User.UserID)
	}))
	conn.On(protocol.EventPresenceLeave, decodeInto(b, func(p protocol.PresenceLeave) {
		b.Users.Remove(p.UserID)
		b.Cursors.PresenceLeft(p.UserID)
	}))
	conn.On(protocol.EventCursorUpdate, decodeInto(b, func(p protocol.CursorUpdate) {
		if p.UserID != userID {
			b.Cursors.Push(p)
		}
	}))
	conn.On(protocol.EventObjectCreated, decodeInto(b, func(p protocol.ObjectCreated) {
		if p.Object != nil && p.Object.BoardID == boardID {
			b.Objects.ApplyCreated(p.Object)
		}
	}))
	conn.On(protocol.EventObjectUpdated, decodeInto(b, func(p protocol.ObjectUpdated) {
		b.Objects.ApplyUpdated(p.ObjectID, p.Delta, p.UpdatedAt)
	}))
	conn.On(protocol.EventObjectDeleted, decodeInto(b, func(p protocol.ObjectDeleted) {
		b.Objects.ApplyDeleted(p.ObjectID)
	}))
	conn.On(protocol.EventError, decodeInto(b, func(p protocol.ErrorPayload) {
		b.logger.Warn().Str("code", p.Code).Str("message", p.Message).Msg("server error")
		b.mu.RLock()
		fn := b.onError
		b.mu.RUnlock()
		if fn != nil {
			fn(p)
		}
	}))
	conn.OnState(func(s State) {
		if s != StateConnected {
			// Presence is rebuilt from the next board:load.
			b.Users.Clear()
			b.Cursors.Clear()
		}
	})

	return b
}

func decodeInto[T any](b *Board, apply func(T)) Handler {
	return func(data json.RawMessage) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			b.logger.Warn().Err(err).Msg("undecodable payload dropped")
			return
		}
		apply(v)
	}
}

func (b *Board) onBoardLoad(data json.RawMessage) {
	var p protocol.BoardLoad
	if err := json.Unmarshal(data, &p); err != nil {
		b.logger.Warn().Err(err).Msg("undecodable board:load dropped")
		return
	}
	if p.Board != nil && p.Board.ID != b.ID {
		return
	}
	b.Objects.Replace(p.Objects)
	b.Users.Replace(p.Users)

	b.mu.Lock()
	b.meta = p.Board
	select {
	case <-b.loaded:
	default:
		close(b.loaded)
	}
	b.mu.Unlock()
}

// OnError registers fn for server error events.
func (b *Board) OnError(fn func(protocol.ErrorPayload)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Meta returns the board summary from the latest snapshot, or nil.
func (b *Board) Meta() *domain.Board {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.meta == nil {
		return nil
	}
	c := *b.meta
	return &c
}

// Loaded is closed when the first snapshot has arrived.
func (b *Board) Loaded() <-chan struct{} { return b.loaded }

func (b *Board) Join(ctx context.Context) error {
	return b.conn.Join(ctx, protocol.JoinBoard{BoardID: b.ID, DisplayName: b.self.Name})
}

func (b *Board) Leave(ctx context.Context) error {
	b.cursor.Stop()
	return b.conn.Leave(ctx, b.ID)
}

// CreateObject inserts o locally under a fresh client id and sends it. The
// returned copy carries the id the server will echo.
func (b *Board) CreateObject(ctx context.Context, o *domain.BoardObject) (*domain.BoardObject, error) {
	obj := o.Clone()
	if obj.ID == "" {
		obj.ID = uuid.NewString()
	}
	obj.BoardID = b.ID
	obj.CreatedBy = b.self.UserID
	obj.UpdatedAt = time.Now().UTC()
	obj.Normalize()

	b.Objects.AddLocal(obj)
	if err := b.conn.Emit(ctx, protocol.EventObjectCreate, protocol.CreateObject{BoardID: b.ID, Object: obj}); err != nil {
		return obj, err
	}
	return obj, nil
}

func (b *Board) MoveObject(ctx context.Context, id string, x, y float64) error {
	b.Objects.PatchLocal(id, domain.MoveDelta(x, y))
	return b.conn.Emit(ctx, protocol.EventObjectMove, protocol.MoveObject{BoardID: b.ID, ObjectID: id, X: x, Y: y})
}

// UpdateObject patches locally and sends d. An empty delta is not sent.
func (b *Board) UpdateObject(ctx context.Context, id string, d domain.ObjectDelta) error {
	if d.IsEmpty() {
		return nil
	}
	b.Objects.PatchLocal(id, d)
	return b.conn.Emit(ctx, protocol.EventObjectUpdate, protocol.UpdateObject{BoardID: b.ID, ObjectID: id, Delta: d})
}

func (b *Board) DeleteObject(ctx context.Context, id string) error {
	b.Objects.RemoveLocal(id)
	return b.conn.Emit(ctx, protocol.EventObjectDelete, protocol.DeleteObject{BoardID: b.ID, ObjectID: id})
}

// MoveCursor reports the local pointer. Calls are throttled to
// CursorInterval with the latest position winning.
func (b *Board) MoveCursor(x, y float64) {
	b.cursor.Call(protocol.MoveCursor{X: x, Y: y, Name: b.self.Name, Color: b.self.Color})
}
