package registry

import (
	"context"
	"sync"

	id "presence/pkg/domain"
	"presence/pkg/platform/sentinel"
)

// InMemoryRegistry is a seedable adapter implementing both the room and
// person registries. Deployments with an external directory replace it; tests
// and the single-binary mode seed it directly.
type InMemoryRegistry struct {
	mu           sync.RWMutex
	rooms        map[id.RoomID]Room
	byEnrollment map[string]Person
	byNationalID map[string]Person
	byScanned    map[string]Person
}

// NewInMemoryRegistry constructs an empty registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		rooms:        make(map[id.RoomID]Room),
		byEnrollment: make(map[string]Person),
		byNationalID: make(map[string]Person),
		byScanned:    make(map[string]Person),
	}
}

// PutRoom adds or replaces a room.
func (r *InMemoryRegistry) PutRoom(room Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room.ID] = room
}

// PutPerson adds or replaces a person and indexes their credentials.
func (r *InMemoryRegistry) PutPerson(p Person) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.EnrollmentCode != "" {
		r.byEnrollment[p.EnrollmentCode] = p
	}
	if p.NationalID != "" {
		r.byNationalID[p.NationalID] = p
	}
	if p.ScannedCode != "" {
		r.byScanned[p.ScannedCode] = p
	}
}

// Room implements RoomRegistry.
func (r *InMemoryRegistry) Room(_ context.Context, roomID id.RoomID) (Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return Room{}, sentinel.ErrNotFound
	}
	return room, nil
}

// FindByEnrollment implements PersonRegistry.
func (r *InMemoryRegistry) FindByEnrollment(_ context.Context, code string) (Person, error) {
	return r.lookup(r.byEnrollment, code)
}

// FindByNationalID implements PersonRegistry.
func (r *InMemoryRegistry) FindByNationalID(_ context.Context, code string) (Person, error) {
	return r.lookup(r.byNationalID, code)
}

// FindByScannedCode implements PersonRegistry.
func (r *InMemoryRegistry) FindByScannedCode(_ context.Context, token string) (Person, error) {
	return r.lookup(r.byScanned, token)
}

func (r *InMemoryRegistry) lookup(index map[string]Person, key string) (Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := index[key]
	if !ok || !p.Active {
		return Person{}, sentinel.ErrNotFound
	}
	return p, nil
}
