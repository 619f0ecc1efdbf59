// Package events defines the domain events the attendance ledger emits and
// the aggregation pipeline consumes. Events are immutable once published and
// are the only coupling between the two sides: the aggregator never reads the
// ledger directly.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	id "presence/pkg/domain"
)

// Type discriminates attendance events.
type Type string

const (
	TypeCheckedIn  Type = "checked_in"
	TypeCheckedOut Type = "checked_out"
)

// DomainEvent is the unit of transfer between the ledger and the aggregation
// pipeline. ID is the deduplication key under at-least-once delivery.
type DomainEvent struct {
	ID         id.EventID   `json:"id"`
	Type       Type         `json:"type"`
	SessionID  id.SessionID `json:"session_id"`
	PersonID   id.PersonID  `json:"person_id"`
	RoomID     id.RoomID    `json:"room_id"`
	OccurredAt time.Time    `json:"occurred_at"`
	CheckIn    time.Time    `json:"check_in_time"`
	CheckOut   *time.Time   `json:"check_out_time,omitempty"`
}

// wireEvent is the published JSON shape. IDs serialize as strings.
type wireEvent struct {
	ID         string     `json:"id"`
	Type       Type       `json:"type"`
	SessionID  string     `json:"session_id"`
	PersonID   string     `json:"person_id"`
	RoomID     string     `json:"room_id"`
	OccurredAt time.Time  `json:"occurred_at"`
	CheckIn    time.Time  `json:"check_in_time"`
	CheckOut   *time.Time `json:"check_out_time,omitempty"`
}

// Encode serializes the event for the outbox payload / wire record.
func Encode(ev DomainEvent) ([]byte, error) {
	return json.Marshal(wireEvent{
		ID:         ev.ID.String(),
		Type:       ev.Type,
		SessionID:  ev.SessionID.String(),
		PersonID:   ev.PersonID.String(),
		RoomID:     ev.RoomID.String(),
		OccurredAt: ev.OccurredAt,
		CheckIn:    ev.CheckIn,
		CheckOut:   ev.CheckOut,
	})
}

// Decode parses a wire record back into a DomainEvent.
func Decode(payload []byte) (DomainEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(payload, &w); err != nil {
		return DomainEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	eventID, err := id.ParseEventID(w.ID)
	if err != nil {
		return DomainEvent{}, fmt.Errorf("event id: %w", err)
	}
	sessionID, err := id.ParseSessionID(w.SessionID)
	if err != nil {
		return DomainEvent{}, fmt.Errorf("session id: %w", err)
	}
	switch w.Type {
	case TypeCheckedIn, TypeCheckedOut:
	default:
		return DomainEvent{}, fmt.Errorf("unknown event type %q", w.Type)
	}
	return DomainEvent{
		ID:         eventID,
		Type:       w.Type,
		SessionID:  sessionID,
		PersonID:   id.PersonID(w.PersonID),
		RoomID:     id.RoomID(w.RoomID),
		OccurredAt: w.OccurredAt,
		CheckIn:    w.CheckIn,
		CheckOut:   w.CheckOut,
	}, nil
}
