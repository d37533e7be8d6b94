package realtime

import (
	"context"
	"errors"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/protocol"
)

func (e *Engine) createObject(ctx context.Context, p Peer, c protocol.CreateObject) []Delivery {
	room, ok := e.member(p, protocol.EventObjectCreate, c.BoardID)
	if !ok {
		return nil
	}

	obj := c.Object.Clone()
	if obj.ID == "" {
		obj.ID = e.newID()
	}
	obj.BoardID = c.BoardID
	obj.CreatedBy = p.User.UserID
	obj.UpdatedAt = e.now()
	obj.Normalize()

	saved, err := e.store.CreateObject(ctx, obj)
	if err != nil {
		e.logger.Error().Err(err).
			Str("board_id", c.BoardID).
			Str("object_id", obj.ID).
			Str("user_id", p.User.UserID).
			Msg("create object")
		return e.fail(p, "Failed to create object")
	}

	return []Delivery{broadcast(room, "", protocol.EventObjectCreated, protocol.ObjectCreated{Object: saved})}
}

// updateObject persists d and broadcasts it. A target missing from the board,
// reported as ErrNotFound or a nil object, is a soft no-op since a concurrent
// delete may have won.
func (e *Engine) updateObject(ctx context.Context, p Peer, event, boardID, objectID string, d domain.ObjectDelta, failMsg string) []Delivery {
	room, ok := e.member(p, event, boardID)
	if !ok {
		return nil
	}

	saved, err := e.store.UpdateObject(ctx, boardID, objectID, d)
	switch {
	case errors.Is(err, domain.ErrNotFound), err == nil && saved == nil:
		e.logger.Debug().Str("board_id", boardID).Str("object_id", objectID).Msg("update of missing object ignored")
		return nil
	case err != nil:
		e.logger.Error().Err(err).
			Str("board_id", boardID).
			Str("object_id", objectID).
			Str("user_id", p.User.UserID).
			Msg("update object")
		return e.fail(p, failMsg)
	}

	return []Delivery{broadcast(room, "", protocol.EventObjectUpdated, protocol.ObjectUpdated{
		ObjectID:  objectID,
		Delta:     d,
		UpdatedBy: p.User.UserID,
		UpdatedAt: saved.UpdatedAt,
	})}
}

func (e *Engine) deleteObject(ctx context.Context, p Peer, c protocol.DeleteObject) []Delivery {
	room, ok := e.member(p, protocol.EventObjectDelete, c.BoardID)
	if !ok {
		return nil
	}

	err := e.store.DeleteObject(ctx, c.BoardID, c.ObjectID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		e.logger.Debug().Str("board_id", c.BoardID).Str("object_id", c.ObjectID).Msg("delete of missing object ignored")
		return nil
	case err != nil:
		e.logger.Error().Err(err).
			Str("board_id", c.BoardID).
			Str("object_id", c.ObjectID).
			Str("user_id", p.User.UserID).
			Msg("delete object")
		return e.fail(p, "Failed to delete object")
	}

	return []Delivery{broadcast(room, "", protocol.EventObjectDeleted, protocol.ObjectDeleted{
		ObjectID:  c.ObjectID,
		DeletedBy: p.User.UserID,
	})}
}
