// Package room tracks which real-time connections belong to which named room.
//
// A room exists implicitly as soon as any connection joins it and is pruned
// as soon as its last member leaves. Rooms are identified purely by name;
// there is no creation or validation step.
package room

import (
	"sync"
)

// Registry maps room names to connection membership sets.
//
// The registry holds connection IDs only; it never owns the connections
// themselves. The transport layer is responsible for calling LeaveAll when
// a connection closes.
//
// All methods are safe for concurrent use from multiple goroutines.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{} // room name -> set of connection IDs
}

// NewRegistry creates an empty room registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[string]struct{}),
	}
}

// Join adds a connection to the membership set of a room, creating the
// room implicitly if absent. Joining a room already joined is a no-op,
// as is joining with an empty room name.
func (r *Registry) Join(connID, roomName string) {
	if connID == "" || roomName == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomName]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[roomName] = members
	}
	members[connID] = struct{}{}
}

// Leave removes a connection from a single room's membership set.
// Leaving a room the connection never joined is a no-op. The room is
// pruned once its last member leaves.
func (r *Registry) Leave(connID, roomName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomName]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, roomName)
	}
}

// LeaveAll removes a connection from every room it has joined.
// Called by the transport layer on disconnect.
func (r *Registry) LeaveAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, members := range r.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, name)
		}
	}
}

// Members returns a snapshot of the connection IDs currently in a room.
// The returned slice is owned by the caller; later membership changes do
// not affect it.
func (r *Registry) Members(roomName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomName]
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// OthersIn returns a snapshot of the room's members excluding one
// connection, typically the sender of a room-scoped message.
func (r *Registry) OthersIn(roomName, exceptID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomName]
	out := make([]string, 0, len(members))
	for id := range members {
		if id != exceptID {
			out = append(out, id)
		}
	}
	return out
}

// Rooms returns the names of every room a connection is currently a member of.
func (r *Registry) Rooms(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for name, members := range r.rooms {
		if _, ok := members[connID]; ok {
			out = append(out, name)
		}
	}
	return out
}

// MemberCount returns the number of connections currently in a room.
func (r *Registry) MemberCount(roomName string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomName])
}

// RoomCount returns the number of rooms with at least one member.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
