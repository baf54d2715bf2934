package runtime

import (
	"sync"

	"problem-map/contract"
	"problem-map/domain/event"
)

type Set map[string]struct{}

var _ contract.IRegistry = (*Registry)(nil)

// Registry tracks which connected participant listens to which room.
// A participant may sit in several rooms (the map and any number of chats)
// behind a single sink.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]contract.EventSink // map participant -> Sink
	roomMembers map[event.Room]Set            // map room to participants
	memberships map[string]map[event.Room]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[string]contract.EventSink),
		roomMembers: make(map[event.Room]Set),
		memberships: make(map[string]map[event.Room]struct{}),
	}
}

// GetSinksForRoom retrieves all active communication channels for a specific room.
// It performs a two-step lookup:
// 1. Identifies participant IDs associated with the room via roomMembers.
// 2. Resolves those IDs into actual EventSinks using the sessions map.
//
// Returns nil if the room doesn't exist or has no members.
func (r *Registry) GetSinksForRoom(room event.Room) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[room]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for participantID := range members {
		if sink, exists := r.sessions[participantID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// Subscribe registers a participant's active connection and assigns them to a room.
// If the room does not yet exist in the registry, it is initialized on the fly.
func (r *Registry) Subscribe(participantID string, room event.Room, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[participantID] = sink

	if _, ok := r.roomMembers[room]; !ok {
		r.roomMembers[room] = make(Set)
	}
	r.roomMembers[room][participantID] = struct{}{}

	if _, ok := r.memberships[participantID]; !ok {
		r.memberships[participantID] = make(map[event.Room]struct{})
	}
	r.memberships[participantID][room] = struct{}{}
}

// Unsubscribe removes a participant from one room. The session is dropped with
// its last room, and no empty sets are left behind.
func (r *Registry) Unsubscribe(participantID string, room event.Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeMember(participantID, room)
}

// Leave removes a participant from every room, typically on disconnect.
func (r *Registry) Leave(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for room := range r.memberships[participantID] {
		r.removeMember(participantID, room)
	}
	delete(r.sessions, participantID)
}

// Rooms reports how many rooms have at least one member.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.roomMembers)
}

// removeMember must be called with the lock held.
func (r *Registry) removeMember(participantID string, room event.Room) {
	if members, ok := r.roomMembers[room]; ok {
		delete(members, participantID)
		// If no one is left in the room, remove the room entry entirely
		if len(members) == 0 {
			delete(r.roomMembers, room)
		}
	}
	if rooms, ok := r.memberships[participantID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.memberships, participantID)
			delete(r.sessions, participantID)
		}
	}
}
