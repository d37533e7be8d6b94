package domain

import (
	"context"
	"slices"
	"time"
)

// DefaultBoardTitle is used for boards created without a title and for the
// fallback summary returned when a joined board cannot be loaded.
const DefaultBoardTitle = "Untitled Board"

type Board struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	OwnerID       string    `json:"ownerId"`
	Collaborators []string  `json:"collaborators"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// CanAccess reports whether userID owns the board or collaborates on it.
func (b *Board) CanAccess(userID string) bool {
	if userID == "" {
		return false
	}
	return b.OwnerID == userID || slices.Contains(b.Collaborators, userID)
}

// FallbackBoard is the summary sent in a snapshot when the persisted board
// is missing or unreadable. Joining never fails on storage.
func FallbackBoard(id string, now time.Time) *Board {
	return &Board{
		ID:            id,
		Title:         DefaultBoardTitle,
		Collaborators: []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// BoardUpdate is a partial board patch. Nil fields are left unchanged.
type BoardUpdate struct {
	Title         *string
	Collaborators *[]string
}

type BoardRepository interface {
	CreateBoard(ctx context.Context, b *Board) (*Board, error)
	FindBoardByID(ctx context.Context, id string) (*Board, error)
	FindBoardsByUser(ctx context.Context, userID string) ([]*Board, error)
	UpdateBoard(ctx context.Context, id string, u BoardUpdate) (*Board, error)
	DeleteBoard(ctx context.Context, id string) error
}

// ObjectRepository persists board objects. Updates and deletes are scoped to
// a board; a target that does not exist on that board yields ErrNotFound.
type ObjectRepository interface {
	FindObjectsByBoard(ctx context.Context, boardID string) ([]*BoardObject, error)
	CreateObject(ctx context.Context, o *BoardObject) (*BoardObject, error)
	UpdateObject(ctx context.Context, boardID, id string, d ObjectDelta) (*BoardObject, error)
	DeleteObject(ctx context.Context, boardID, id string) error
}

// StorageAdapter is the durable store consumed by the sync engine and the
// board API. *postgres.Store and *sqlite.Store satisfy it.
type StorageAdapter interface {
	BoardRepository
	ObjectRepository
}
