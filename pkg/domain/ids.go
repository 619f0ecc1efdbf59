package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "presence/pkg/domain-errors"
)

// PersonID identifies a person as resolved by the person registry.
// It is an opaque external identifier, not a UUID: registries commonly key
// people by enrollment numbers or directory identifiers.
type PersonID string

// String returns the string representation of the person ID.
func (p PersonID) String() string { return string(p) }

// IsZero reports whether the person ID is unset.
func (p PersonID) IsZero() bool { return p == "" }

// RoomID identifies a room in the room registry.
type RoomID string

// String returns the string representation of the room ID.
func (r RoomID) String() string { return string(r) }

// IsZero reports whether the room ID is unset.
func (r RoomID) IsZero() bool { return r == "" }

// SessionID identifies one attendance session (a check-in/check-out pair).
type SessionID uuid.UUID

// NewSessionID generates a fresh session ID.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// ParseSessionID validates and parses a session ID from its string form.
// IDs must be valid, non-nil UUIDs.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session id")
	if err != nil {
		return SessionID{}, err
	}
	return SessionID(u), nil
}

// String returns the canonical UUID string form.
func (s SessionID) String() string { return uuid.UUID(s).String() }

// IsNil reports whether the session ID is the zero UUID.
func (s SessionID) IsNil() bool { return uuid.UUID(s) == uuid.Nil }

// EventID identifies a domain event. Event IDs are the unit of consumer-side
// deduplication, so they must be unique per published event, not per delivery.
type EventID uuid.UUID

// NewEventID generates a fresh event ID.
func NewEventID() EventID { return EventID(uuid.New()) }

// ParseEventID validates and parses an event ID from its string form.
func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID(s, "event id")
	if err != nil {
		return EventID{}, err
	}
	return EventID(u), nil
}

// String returns the canonical UUID string form.
func (e EventID) String() string { return uuid.UUID(e).String() }

// IsNil reports whether the event ID is the zero UUID.
func (e EventID) IsNil() bool { return uuid.UUID(e) == uuid.Nil }

func parseUUID(s, what string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be the nil UUID")
	}
	return u, nil
}
