// Package realtime is the server half of board sync: room membership,
// presence, cursor relay and object mutation broadcast over websockets.
package realtime

import (
	"slices"
	"sync"
)

// RoomRegistry keeps the room to connection relation in both directions so
// a disconnect can clean up every room its connection had joined.
type RoomRegistry struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{} // room -> conn ids
	rooms   map[string]map[string]struct{} // conn id -> rooms
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		members: make(map[string]map[string]struct{}),
		rooms:   make(map[string]map[string]struct{}),
	}
}

// Join adds connID to room. It reports whether the connection was not
// already a member.
func (r *RoomRegistry) Join(room, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[room]
	if !ok {
		m = make(map[string]struct{})
		r.members[room] = m
	}
	if _, dup := m[connID]; dup {
		return false
	}
	m[connID] = struct{}{}

	rs, ok := r.rooms[connID]
	if !ok {
		rs = make(map[string]struct{})
		r.rooms[connID] = rs
	}
	rs[room] = struct{}{}
	return true
}

// Leave removes connID from room. Empty rooms are dropped. It reports
// whether the connection was a member.
func (r *RoomRegistry) Leave(room, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(room, connID)
}

func (r *RoomRegistry) leaveLocked(room, connID string) bool {
	m, ok := r.members[room]
	if !ok {
		return false
	}
	if _, ok := m[connID]; !ok {
		return false
	}
	delete(m, connID)
	if len(m) == 0 {
		delete(r.members, room)
	}
	if rs, ok := r.rooms[connID]; ok {
		delete(rs, room)
		if len(rs) == 0 {
			delete(r.rooms, connID)
		}
	}
	return true
}

// LeaveAll removes connID from every room and returns the rooms it left.
func (r *RoomRegistry) LeaveAll(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	left := sortedKeys(r.rooms[connID])
	for _, room := range left {
		r.leaveLocked(room, connID)
	}
	return left
}

// RoomsOf returns the rooms connID has joined, sorted.
func (r *RoomRegistry) RoomsOf(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.rooms[connID])
}

// Members returns the connections in room, sorted.
func (r *RoomRegistry) Members(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.members[room])
}

func (r *RoomRegistry) IsMember(room, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[room][connID]
	return ok
}

// Len returns the number of non-empty rooms.
func (r *RoomRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
