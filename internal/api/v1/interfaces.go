package v1

import (
	"context"

	"github.com/gosuda/boardsync/internal/domain"
)

// BoardStore abstracts the storage the board routes need for handler testing.
// *postgres.Store and *sqlite.Store satisfy this interface.
type BoardStore interface {
	domain.BoardRepository
	FindObjectsByBoard(ctx context.Context, boardID string) ([]*domain.BoardObject, error)
}
