package protocol

import (
	"time"

	"github.com/gosuda/boardsync/internal/domain"
)

// ErrorCodePersistence marks an error event caused by a failed storage write.
const ErrorCodePersistence = "PERSISTENCE_FAILED"

// BoardLoad is the snapshot sent to a session right after it joins a board.
// Objects are ordered by zIndex ascending.
type BoardLoad struct {
	Board   *domain.Board          `json:"board"`
	Objects []*domain.BoardObject  `json:"objects"`
	Users   []*domain.UserPresence `json:"users"`
}

type PresenceJoin struct {
	User *domain.UserPresence `json:"user"`
}

type PresenceList struct {
	Users []*domain.UserPresence `json:"users"`
}

type PresenceLeave struct {
	UserID string `json:"userId"`
}

type CursorUpdate struct {
	UserID string  `json:"userId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Name   string  `json:"name,omitempty"`
	Color  string  `json:"color,omitempty"`
}

type ObjectCreated struct {
	Object *domain.BoardObject `json:"object"`
}

// ObjectUpdated carries the accepted delta together with the writer and the
// server-assigned timestamp of the write.
type ObjectUpdated struct {
	ObjectID  string             `json:"objectId"`
	Delta     domain.ObjectDelta `json:"delta"`
	UpdatedBy string             `json:"updatedBy"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

type ObjectDeleted struct {
	ObjectID  string `json:"objectId"`
	DeletedBy string `json:"deletedBy"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
