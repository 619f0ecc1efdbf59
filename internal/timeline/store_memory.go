package timeline

import (
	"context"
	"sync"
	"time"

	id "presence/pkg/domain"
)

type scopeKey struct {
	scope Scope
	id    string
}

// InMemoryStore keeps rollups in nested maps. Suitable for tests and
// single-instance deployments.
type InMemoryStore struct {
	mu     sync.RWMutex
	counts map[scopeKey]map[string]int
}

// NewInMemoryStore creates an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{counts: make(map[scopeKey]map[string]int)}
}

// Record implements Store.
func (s *InMemoryStore) Record(_ context.Context, roomID id.RoomID, personID id.PersonID, date time.Time) error {
	day := Day(date).Format(DateLayout)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.increment(scopeKey{ScopeRoom, roomID.String()}, day)
	s.increment(scopeKey{ScopePerson, personID.String()}, day)
	return nil
}

func (s *InMemoryStore) increment(key scopeKey, day string) {
	days := s.counts[key]
	if days == nil {
		days = make(map[string]int)
		s.counts[key] = days
	}
	days[day]++
}

// Query implements Store.
func (s *InMemoryStore) Query(_ context.Context, scope Scope, scopeID string, from, to time.Time) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return zeroFill(s.counts[scopeKey{scope, scopeID}], from, to), nil
}
