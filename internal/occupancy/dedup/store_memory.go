package dedup

import (
	"context"
	"sync"
	"time"

	id "presence/pkg/domain"
)

// InMemoryStore is a map-backed dedup set with lazy expiry. Suitable for
// the in-process bus and for tests; distributed consumer groups need the
// redis store.
type InMemoryStore struct {
	mu   sync.Mutex
	seen map[id.EventID]time.Time
}

// NewInMemoryStore creates an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{seen: make(map[id.EventID]time.Time)}
}

// Seen implements Store.
func (s *InMemoryStore) Seen(_ context.Context, eventID id.EventID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.seen[eventID]
	return ok && expiry.After(time.Now()), nil
}

// Mark implements Store.
func (s *InMemoryStore) Mark(_ context.Context, eventID id.EventID, ttl time.Duration) error {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[eventID] = now.Add(ttl)

	// Lazy sweep: evict a few expired entries per call instead of running
	// a background timer.
	swept := 0
	for evID, expiry := range s.seen {
		if !expiry.After(now) {
			delete(s.seen, evID)
		}
		if swept++; swept >= 64 {
			break
		}
	}
	return nil
}
