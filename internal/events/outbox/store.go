// Package outbox durably queues domain events in the same unit of work as
// the ledger mutation they describe during command handling, so the ledger
// and the event stream cannot silently diverge. The relay drains the queue
// into the stream with at-least-once semantics.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"

	"presence/internal/events"
	id "presence/pkg/domain"
)

// Entry is one queued event awaiting publication.
type Entry struct {
	ID          uuid.UUID
	RoomID      id.RoomID
	EventType   events.Type
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// Store persists outbox entries. Append must participate in the caller's
// transaction (via pkg/platform/tx) where the backend supports one.
type Store interface {
	Append(ctx context.Context, ev events.DomainEvent) error
	// ListUnpublished returns up to limit unpublished entries in creation
	// order.
	ListUnpublished(ctx context.Context, limit int) ([]Entry, error)
	// MarkPublished records that the entry reached the stream. Called only
	// after the broker acknowledged the record.
	MarkPublished(ctx context.Context, entryID uuid.UUID, at time.Time) error
}
