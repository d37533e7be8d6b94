package client

import (
	"cmp"
	"slices"
	"sync"

	"github.com/gosuda/boardsync/internal/domain"
)

// Roster is the client's view of who is present on the board.
type Roster struct {
	mu    sync.RWMutex
	users map[string]*domain.UserPresence
}

func NewRoster() *Roster {
	return &Roster{users: make(map[string]*domain.UserPresence)}
}

// Replace loads a presence:list or board:load roster.
func (r *Roster) Replace(users []*domain.UserPresence) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = make(map[string]*domain.UserPresence, len(users))
	for _, u := range users {
		if u == nil {
			continue
		}
		c := *u
		r.users[u.UserID] = &c
	}
}

func (r *Roster) Add(u *domain.UserPresence) {
	if u == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *u
	r.users[u.UserID] = &c
}

func (r *Roster) Remove(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return false
	}
	delete(r.users, userID)
	return true
}

func (r *Roster) Clear() { r.Replace(nil) }

func (r *Roster) Get(userID string) (domain.UserPresence, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok {
		return domain.UserPresence{}, false
	}
	return *u, true
}

// List returns the roster sorted by user id.
func (r *Roster) List() []domain.UserPresence {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.UserPresence, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	slices.SortFunc(out, func(a, b domain.UserPresence) int { return cmp.Compare(a.UserID, b.UserID) })
	return out
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
