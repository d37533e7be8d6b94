package realtime

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/gosuda/boardsync/internal/domain"
)

// DisplayName returns name, or a short form of userID when name is empty.
func DisplayName(userID, name string) string {
	if name != "" {
		return name
	}
	if userID == "" {
		return "Anonymous"
	}
	r := []rune(userID)
	if len(r) > 12 {
		r = r[:12]
	}
	return string(r)
}

type presenceEntry struct {
	user     domain.UserPresence
	sessions map[string]struct{}
}

// PresenceTracker holds the roster of each room. A user stays present while
// at least one of their connections is in the room.
type PresenceTracker struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*presenceEntry // room -> user id -> entry
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{rooms: make(map[string]map[string]*presenceEntry)}
}

// Join records connID as a session of userID in room. It returns a copy of
// the presence record and whether the user just became present.
func (p *PresenceTracker) Join(room, connID, userID, name, avatar string, now time.Time) (*domain.UserPresence, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	users, ok := p.rooms[room]
	if !ok {
		users = make(map[string]*presenceEntry)
		p.rooms[room] = users
	}

	e, ok := users[userID]
	fresh := !ok
	if fresh {
		e = &presenceEntry{
			user: domain.UserPresence{
				UserID: userID,
				Name:   DisplayName(userID, name),
				Avatar: avatar,
				Color:  domain.ColorForUser(userID),
			},
			sessions: make(map[string]struct{}),
		}
		users[userID] = e
	} else {
		if name != "" {
			e.user.Name = name
		}
		if avatar != "" {
			e.user.Avatar = avatar
		}
	}
	e.sessions[connID] = struct{}{}
	e.user.LastSeen = now
	return clonePresence(&e.user), fresh
}

// Leave drops connID from userID's sessions in room. It reports whether the
// user is now absent from the room.
func (p *PresenceTracker) Leave(room, connID, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	users, ok := p.rooms[room]
	if !ok {
		return false
	}
	e, ok := users[userID]
	if !ok {
		return false
	}
	if _, ok := e.sessions[connID]; !ok {
		return false
	}
	delete(e.sessions, connID)
	if len(e.sessions) > 0 {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(p.rooms, room)
	}
	return true
}

// Users returns the roster of room ordered by user id.
func (p *PresenceTracker) Users(room string) []*domain.UserPresence {
	p.mu.RLock()
	defer p.mu.RUnlock()

	users := p.rooms[room]
	out := make([]*domain.UserPresence, 0, len(users))
	for _, e := range users {
		out = append(out, clonePresence(&e.user))
	}
	slices.SortFunc(out, func(a, b *domain.UserPresence) int {
		return cmp.Compare(a.UserID, b.UserID)
	})
	return out
}

func (p *PresenceTracker) Lookup(room, userID string) (*domain.UserPresence, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, ok := p.rooms[room][userID]
	if !ok {
		return nil, false
	}
	return clonePresence(&e.user), true
}

// TouchCursor stores the latest cursor of userID in room and returns the
// updated record.
func (p *PresenceTracker) TouchCursor(room, userID string, x, y float64, now time.Time) (*domain.UserPresence, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.rooms[room][userID]
	if !ok {
		return nil, false
	}
	e.user.Cursor = &domain.Cursor{X: x, Y: y}
	e.user.LastSeen = now
	return clonePresence(&e.user), true
}

func clonePresence(u *domain.UserPresence) *domain.UserPresence {
	c := *u
	if u.Cursor != nil {
		cur := *u.Cursor
		c.Cursor = &cur
	}
	return &c
}
