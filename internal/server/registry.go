package server

import (
	"fmt"
	"sync"

	"github.com/npezzotti/go-meet/internal/stats"
)

// Registry maps room ids to live rooms. Lock order is always registry then
// room.
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	maxChat int
	stats   stats.StatsProvider
}

func NewRegistry(maxChatHistory int, su stats.StatsProvider) *Registry {
	return &Registry{
		rooms:   make(map[string]*Room),
		maxChat: maxChatHistory,
		stats:   su,
	}
}

// GetOrCreate returns the live room for id, creating it exactly once if
// there is none.
func (reg *Registry) GetOrCreate(id string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if r, ok := reg.rooms[id]; ok && !r.isClosed() {
		return r
	}

	r := newRoom(id, reg.maxChat)
	reg.rooms[id] = r
	reg.incr(metricActiveRooms)
	return r
}

// Remove deletes the room iff it currently has no participants. The closed
// flag makes any session still holding the old pointer resolve again.
func (reg *Registry) Remove(id string) bool {
	return reg.remove(id, nil)
}

// remove only reclaims want when it is non-nil, so a stale leaver never
// closes a room created after its own was reclaimed.
func (reg *Registry) remove(id string, want *Room) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[id]
	if !ok || (want != nil && r != want) {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.members) > 0 {
		return false
	}

	r.closed = true
	delete(reg.rooms, id)
	reg.decr(metricActiveRooms)
	return true
}

func (reg *Registry) Lookup(id string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	return r, nil
}

func (reg *Registry) Exists(id string) bool {
	_, err := reg.Lookup(id)
	return err == nil
}

// ParticipantCount is zero for unknown rooms.
func (reg *Registry) ParticipantCount(id string) int {
	r, err := reg.Lookup(id)
	if err != nil {
		return 0
	}
	return r.Len()
}

func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	return len(reg.rooms)
}

func (reg *Registry) incr(name string) {
	if reg.stats != nil {
		reg.stats.Incr(name)
	}
}

func (reg *Registry) decr(name string) {
	if reg.stats != nil {
		reg.stats.Decr(name)
	}
}
