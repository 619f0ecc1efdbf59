package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"presence/internal/events"
	"presence/pkg/platform/sentinel"
	"presence/pkg/requestcontext"
)

// InMemoryStore keeps outbox entries in memory. Suitable for tests and the
// single-binary mode; entries do not survive a restart.
type InMemoryStore struct {
	mu      sync.Mutex
	entries []*Entry
}

// NewInMemoryStore constructs an empty outbox.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Append implements Store.
func (s *InMemoryStore) Append(ctx context.Context, ev events.DomainEvent) error {
	payload, err := events.Encode(ev)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &Entry{
		ID:        uuid.New(),
		RoomID:    ev.RoomID,
		EventType: ev.Type,
		Payload:   payload,
		CreatedAt: requestcontext.Now(ctx),
	})
	return nil
}

// ListUnpublished implements Store.
func (s *InMemoryStore) ListUnpublished(_ context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.entries {
		if e.PublishedAt != nil {
			continue
		}
		out = append(out, *e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkPublished implements Store.
func (s *InMemoryStore) MarkPublished(_ context.Context, entryID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == entryID {
			published := at
			e.PublishedAt = &published
			return nil
		}
	}
	return sentinel.ErrNotFound
}
