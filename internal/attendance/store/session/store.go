// Package session is the attendance ledger: the system of record for
// check-in/check-out pairs. It owns the person-has-at-most-one-open-session
// invariant at the storage level; the state machine additionally serializes
// commands per person, so store-level conflicts only surface if a caller
// bypasses the service.
package session

import (
	"context"
	"time"

	"presence/internal/attendance/models"
	id "presence/pkg/domain"
)

// Store persists attendance sessions. Implementations return sentinel errors
// for infrastructure facts: ErrConflict when the person already has an open
// session, ErrNotFound for missing records, ErrInvalidState when closing a
// session that is not open.
type Store interface {
	// Create records a new ACTIVE session. Participates in the caller's
	// transaction where the backend supports one.
	Create(ctx context.Context, s *models.Session) error
	// CloseSession transitions an ACTIVE session to COMPLETED.
	CloseSession(ctx context.Context, sessionID id.SessionID, at time.Time) error
	// FindActiveByPerson returns the person's open session, if any.
	FindActiveByPerson(ctx context.Context, personID id.PersonID) (*models.Session, error)
	// CountActiveByRoom returns the number of open sessions for the room.
	// This is the occupancy the capacity guard admits against.
	CountActiveByRoom(ctx context.Context, roomID id.RoomID) (int, error)
	// FindByID returns any session by its identifier.
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
}
