package v1_test

import (
	"context"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers: inject the caller identity into context for DoCtx
// ---------------------------------------------------------------------------

func userCtx(userID string) context.Context {
	return middleware.WithIdentity(context.Background(), &domain.Identity{UserID: userID, SessionID: "sess-" + userID})
}

// ---------------------------------------------------------------------------
// Mock BoardStore
// ---------------------------------------------------------------------------

type mockBoardStore struct {
	createBoardFunc        func(ctx context.Context, b *domain.Board) (*domain.Board, error)
	findBoardByIDFunc      func(ctx context.Context, id string) (*domain.Board, error)
	findBoardsByUserFunc   func(ctx context.Context, userID string) ([]*domain.Board, error)
	updateBoardFunc        func(ctx context.Context, id string, u domain.BoardUpdate) (*domain.Board, error)
	deleteBoardFunc        func(ctx context.Context, id string) error
	findObjectsByBoardFunc func(ctx context.Context, boardID string) ([]*domain.BoardObject, error)
}

func (m *mockBoardStore) CreateBoard(ctx context.Context, b *domain.Board) (*domain.Board, error) {
	return m.createBoardFunc(ctx, b)
}

func (m *mockBoardStore) FindBoardByID(ctx context.Context, id string) (*domain.Board, error) {
	return m.findBoardByIDFunc(ctx, id)
}

func (m *mockBoardStore) FindBoardsByUser(ctx context.Context, userID string) ([]*domain.Board, error) {
	return m.findBoardsByUserFunc(ctx, userID)
}

func (m *mockBoardStore) UpdateBoard(ctx context.Context, id string, u domain.BoardUpdate) (*domain.Board, error) {
	return m.updateBoardFunc(ctx, id, u)
}

func (m *mockBoardStore) DeleteBoard(ctx context.Context, id string) error {
	return m.deleteBoardFunc(ctx, id)
}

func (m *mockBoardStore) FindObjectsByBoard(ctx context.Context, boardID string) ([]*domain.BoardObject, error) {
	return m.findObjectsByBoardFunc(ctx, boardID)
}

// boardFinder returns a findBoardByIDFunc serving a single board.
func boardFinder(b *domain.Board) func(context.Context, string) (*domain.Board, error) {
	return func(_ context.Context, id string) (*domain.Board, error) {
		if id != b.ID {
			return nil, domain.ErrNotFound
		}
		c := *b
		return &c, nil
	}
}
