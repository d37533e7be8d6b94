package realtime

import (
	"github.com/gosuda/boardsync/internal/protocol"
)

// moveCursor relays the position to the other members of every room the
// connection has joined. Name and color default to the presence record.
func (e *Engine) moveCursor(p Peer, c protocol.MoveCursor) []Delivery {
	rooms := e.rooms.RoomsOf(p.ConnID)
	if len(rooms) == 0 {
		return nil
	}

	now := e.now()
	out := make([]Delivery, 0, len(rooms))
	for _, room := range rooms {
		upd := protocol.CursorUpdate{UserID: p.User.UserID, X: c.X, Y: c.Y, Name: c.Name, Color: c.Color}
		if user, ok := e.presence.TouchCursor(room, p.User.UserID, c.X, c.Y, now); ok {
			if upd.Name == "" {
				upd.Name = user.Name
			}
			if upd.Color == "" {
				upd.Color = user.Color
			}
		}
		out = append(out, broadcast(room, p.ConnID, protocol.EventCursorUpdate, upd))
	}
	return out
}
