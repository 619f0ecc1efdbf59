// Package idempotency deduplicates retried check-in/check-out commands.
// Same key within its validity window always yields the same stored outcome
// without re-executing side effects; after eviction a replay is a new
// command.
package idempotency

import (
	"context"
	"time"
)

// Record is a completed command outcome stored under its key.
type Record struct {
	Key       string
	Outcome   []byte
	ExpiresAt time.Time
}

// Store persists idempotency records with bounded retention. Linearizable
// per key; no ordering between keys.
//
// The state machine serializes command execution per person and every
// derived or supplied key is scoped to one person, so a reservation without
// an outcome can only be observed after a crash mid-command. GetOrReserve
// therefore hands such orphaned reservations back to the caller instead of
// blocking on an owner that no longer exists.
type Store interface {
	// GetOrReserve returns the completed record for key, or reserves the key
	// for the caller. reserved=true means the caller must execute the
	// command and call Complete (or Release on infrastructure failure).
	GetOrReserve(ctx context.Context, key string, ttl time.Duration) (rec *Record, reserved bool, err error)
	// Complete stores the outcome under a previously reserved key.
	Complete(ctx context.Context, key string, outcome []byte) error
	// Release drops a reservation so a retry can re-execute. Used when the
	// command aborted on an infrastructure error before reaching an outcome.
	Release(ctx context.Context, key string) error
}
