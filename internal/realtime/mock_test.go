package realtime_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gosuda/boardsync/internal/domain"
)

// ---------------------------------------------------------------------------
// Mock StorageAdapter
// ---------------------------------------------------------------------------

// mockStore routes every call through an optional func field. Unset fields
// fall back to an in-memory map so end-to-end tests get real persistence.
type mockStore struct {
	findBoardByIDFunc      func(ctx context.Context, id string) (*domain.Board, error)
	findObjectsByBoardFunc func(ctx context.Context, boardID string) ([]*domain.BoardObject, error)
	createObjectFunc       func(ctx context.Context, o *domain.BoardObject) (*domain.BoardObject, error)
	updateObjectFunc       func(ctx context.Context, boardID, id string, d domain.ObjectDelta) (*domain.BoardObject, error)
	deleteObjectFunc       func(ctx context.Context, boardID, id string) error

	mu      sync.Mutex
	boards  map[string]*domain.Board
	objects map[string]*domain.BoardObject
	creates int
}

func newMockStore() *mockStore {
	return &mockStore{
		boards:  make(map[string]*domain.Board),
		objects: make(map[string]*domain.BoardObject),
	}
}

func (m *mockStore) createCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates
}

func (m *mockStore) CreateBoard(_ context.Context, b *domain.Board) (*domain.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *b
	m.boards[b.ID] = &c
	return &c, nil
}

func (m *mockStore) FindBoardByID(ctx context.Context, id string) (*domain.Board, error) {
	if m.findBoardByIDFunc != nil {
		return m.findBoardByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boards[id]
	if !ok {
		return nil, fmt.Errorf("mock: %w", domain.ErrNotFound)
	}
	c := *b
	return &c, nil
}

func (m *mockStore) FindBoardsByUser(_ context.Context, _ string) ([]*domain.Board, error) {
	panic("not implemented")
}

func (m *mockStore) UpdateBoard(_ context.Context, _ string, _ domain.BoardUpdate) (*domain.Board, error) {
	panic("not implemented")
}

func (m *mockStore) DeleteBoard(_ context.Context, _ string) error { panic("not implemented") }

func (m *mockStore) FindObjectsByBoard(ctx context.Context, boardID string) ([]*domain.BoardObject, error) {
	if m.findObjectsByBoardFunc != nil {
		return m.findObjectsByBoardFunc(ctx, boardID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.BoardObject
	for _, o := range m.objects {
		if o.BoardID == boardID {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) CreateObject(ctx context.Context, o *domain.BoardObject) (*domain.BoardObject, error) {
	m.mu.Lock()
	m.creates++
	m.mu.Unlock()
	if m.createObjectFunc != nil {
		return m.createObjectFunc(ctx, o)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.objects[o.ID]; dup {
		return nil, fmt.Errorf("mock: %w", domain.ErrConflict)
	}
	m.objects[o.ID] = o.Clone()
	return o.Clone(), nil
}

func (m *mockStore) UpdateObject(ctx context.Context, boardID, id string, d domain.ObjectDelta) (*domain.BoardObject, error) {
	if m.updateObjectFunc != nil {
		return m.updateObjectFunc(ctx, boardID, id, d)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[id]
	if !ok || o.BoardID != boardID {
		return nil, fmt.Errorf("mock: %w", domain.ErrNotFound)
	}
	d.ApplyTo(o)
	o.UpdatedAt = time.Now().UTC()
	return o.Clone(), nil
}

func (m *mockStore) DeleteObject(ctx context.Context, boardID, id string) error {
	if m.deleteObjectFunc != nil {
		return m.deleteObjectFunc(ctx, boardID, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[id]
	if !ok || o.BoardID != boardID {
		return fmt.Errorf("mock: %w", domain.ErrNotFound)
	}
	delete(m.objects, id)
	return nil
}
