// Package client is the Go side of the board protocol: a reconnecting
// websocket connection and the local state a client keeps for one board.
package client

import (
	"sync"
	"time"

	"github.com/gosuda/boardsync/internal/domain"
)

// ObjectStore is the client's copy of a board's objects. Local optimistic
// mutations and remote authoritative events are applied the same way, keyed
// by object id; the later write wins and the server's echo always arrives
// after the local write it confirms.
type ObjectStore struct {
	mu      sync.RWMutex
	order   []string
	objects map[string]*domain.BoardObject
}

func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string]*domain.BoardObject)}
}

// Replace discards everything and loads a snapshot.
func (s *ObjectStore) Replace(objs []*domain.BoardObject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = make([]string, 0, len(objs))
	s.objects = make(map[string]*domain.BoardObject, len(objs))
	for _, o := range objs {
		s.upsert(o)
	}
}

// AddLocal inserts an object created on this client before the server has
// confirmed it.
func (s *ObjectStore) AddLocal(o *domain.BoardObject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsert(o)
}

// ApplyCreated reconciles an object:created echo. An object already present
// under the same id, typically our own optimistic insert, is replaced in
// place so it neither duplicates nor changes paint order.
func (s *ObjectStore) ApplyCreated(o *domain.BoardObject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsert(o)
}

// PatchLocal applies an optimistic delta. It reports false when the object
// is unknown.
func (s *ObjectStore) PatchLocal(id string, d domain.ObjectDelta) bool {
	return s.patch(id, d, time.Time{})
}

// ApplyUpdated applies a remote delta and the server's updatedAt, when set.
// Updates for unknown objects are ignored; the object was deleted or arrives
// in the next snapshot.
func (s *ObjectStore) ApplyUpdated(id string, d domain.ObjectDelta, updatedAt time.Time) bool {
	return s.patch(id, d, updatedAt)
}

func (s *ObjectStore) RemoveLocal(id string) bool { return s.remove(id) }

func (s *ObjectStore) ApplyDeleted(id string) bool { return s.remove(id) }

func (s *ObjectStore) Get(id string) (*domain.BoardObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[id]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

// All returns copies of every object in insertion order.
func (s *ObjectStore) All() []*domain.BoardObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.BoardObject, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.objects[id].Clone())
	}
	return out
}

func (s *ObjectStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// upsert stores a copy of o. Nil entries are skipped.
func (s *ObjectStore) upsert(o *domain.BoardObject) {
	if o == nil {
		return
	}
	o = o.Clone()
	if _, ok := s.objects[o.ID]; !ok {
		s.order = append(s.order, o.ID)
	}
	s.objects[o.ID] = o
}

func (s *ObjectStore) patch(id string, d domain.ObjectDelta, updatedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[id]
	if !ok {
		return false
	}
	d.ApplyTo(o)
	if !updatedAt.IsZero() {
		o.UpdatedAt = updatedAt
	}
	return true
}

func (s *ObjectStore) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[id]; !ok {
		return false
	}
	delete(s.objects, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}
