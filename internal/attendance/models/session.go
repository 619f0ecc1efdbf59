package models

import (
	"time"

	id "presence/pkg/domain"
	dErrors "presence/pkg/domain-errors"
)

// SessionStatus is the lifecycle state of an attendance session.
type SessionStatus string

const (
	// SessionStatusActive marks a person currently present in a room.
	SessionStatusActive SessionStatus = "ACTIVE"
	// SessionStatusCompleted marks a closed check-in/check-out pair.
	// Terminal; a new session may begin for the same person afterwards.
	SessionStatusCompleted SessionStatus = "COMPLETED"
)

// Session is one visit: a check-in, optionally already closed by a
// check-out. The ledger owns the invariant that a person has at most one
// ACTIVE session at any instant. Sessions are never physically deleted.
type Session struct {
	ID           id.SessionID
	PersonID     id.PersonID
	RoomID       id.RoomID
	CheckInTime  time.Time
	CheckOutTime *time.Time
	Status       SessionStatus
}

// NewSession constructs an ACTIVE session, enforcing construction invariants.
func NewSession(sessionID id.SessionID, personID id.PersonID, roomID id.RoomID, checkIn time.Time) (*Session, error) {
	if sessionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session id must not be nil")
	}
	if personID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session requires a person")
	}
	if roomID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session requires a room")
	}
	if checkIn.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session requires a check-in time")
	}
	return &Session{
		ID:          sessionID,
		PersonID:    personID,
		RoomID:      roomID,
		CheckInTime: checkIn,
		Status:      SessionStatusActive,
	}, nil
}

// Close transitions the session to COMPLETED at the given time.
func (s *Session) Close(at time.Time) error {
	if s.Status != SessionStatusActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "only an active session can be closed")
	}
	if !at.After(s.CheckInTime) {
		// Clock skew between nodes can only move the close forward.
		at = s.CheckInTime.Add(time.Nanosecond)
	}
	s.Status = SessionStatusCompleted
	s.CheckOutTime = &at
	return nil
}

// IsActive reports whether the visit is still open.
func (s *Session) IsActive() bool { return s.Status == SessionStatusActive }
