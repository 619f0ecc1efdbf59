package idempotency

import (
	"context"
	"sync"
	"time"

	"presence/pkg/requestcontext"
)

type memoryEntry struct {
	outcome   []byte
	completed bool
	expiresAt time.Time
}

// InMemoryStore keeps idempotency records in a map with lazy expiry:
// expired entries are dropped when their key is next touched, and a
// background sweep is unnecessary at this retention scale.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]*memoryEntry)}
}

// GetOrReserve implements Store.
func (s *InMemoryStore) GetOrReserve(ctx context.Context, key string, ttl time.Duration) (*Record, bool, error) {
	now := requestcontext.Now(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if ok && now.After(entry.expiresAt) {
		delete(s.entries, key)
		ok = false
	}
	if ok {
		if entry.completed {
			return &Record{Key: key, Outcome: entry.outcome, ExpiresAt: entry.expiresAt}, false, nil
		}
		// Orphaned reservation from a crashed command; re-own it.
		return nil, true, nil
	}
	s.entries[key] = &memoryEntry{expiresAt: now.Add(ttl)}
	return nil, true, nil
}

// Complete implements Store.
func (s *InMemoryStore) Complete(_ context.Context, key string, outcome []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		// Reservation expired mid-command; nothing to record against.
		return nil
	}
	entry.outcome = outcome
	entry.completed = true
	return nil
}

// Release implements Store.
func (s *InMemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if ok && !entry.completed {
		delete(s.entries, key)
	}
	return nil
}
