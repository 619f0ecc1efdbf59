// Package dedup is the consumer-side idempotency set: it remembers which
// event IDs the projection has already applied, so redelivered events are
// no-ops. Retention must exceed the stream's redelivery horizon.
package dedup

import (
	"context"
	"time"

	id "presence/pkg/domain"
)

// Store records applied event IDs with bounded retention.
//
// Seen and Mark are split so the caller can mark only after the event has
// actually been applied: a mark placed before application would turn the
// redelivery of a half-applied event into a skipped duplicate. Application
// is serialized per room, so the check-then-mark window is not racy.
type Store interface {
	// Seen reports whether the event has been marked applied within the
	// retention window.
	Seen(ctx context.Context, eventID id.EventID) (bool, error)
	// Mark records the event as applied. Marks expire after ttl.
	Mark(ctx context.Context, eventID id.EventID, ttl time.Duration) error
}
