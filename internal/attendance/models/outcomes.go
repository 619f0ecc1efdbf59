package models

import (
	"encoding/json"
	"fmt"
	"time"

	id "presence/pkg/domain"
)

// RejectReason is a machine-readable business rejection. Rejections are
// values on the command result, not Go errors: callers branch on them to
// decide the next action (checkout-first flow, try another room).
type RejectReason string

const (
	// ReasonActiveElsewhere: the person has an open session in a different
	// room; the result carries that room so the caller can prompt a
	// checkout there first.
	ReasonActiveElsewhere RejectReason = "active_elsewhere"
	// ReasonAlreadyActiveHere: duplicate check-in to the room the person is
	// already in. Explicitly signaled, not silently accepted.
	ReasonAlreadyActiveHere RejectReason = "already_active_here"
	// ReasonCapacityExceeded: the room is at configured capacity.
	ReasonCapacityExceeded RejectReason = "capacity_exceeded"
	// ReasonNoActiveSession: a check-out found nothing to close.
	ReasonNoActiveSession RejectReason = "no_active_session"
	// ReasonRoomNotFound: the room is unknown to the registry.
	ReasonRoomNotFound RejectReason = "room_not_found"
	// ReasonRoomInactive: the room exists but does not accept check-ins.
	ReasonRoomInactive RejectReason = "room_inactive"
)

// CheckInResult is the typed outcome of a check-in command.
type CheckInResult struct {
	Success           bool
	SessionID         id.SessionID
	CheckInTime       time.Time
	Reason            RejectReason
	ConflictingRoomID id.RoomID
}

// CheckOutResult is the typed outcome of a check-out command.
type CheckOutResult struct {
	Success      bool
	SessionID    id.SessionID
	RoomID       id.RoomID
	CheckOutTime time.Time
	Reason       RejectReason
}

// ActiveSession answers "is this person currently checked in, and where".
type ActiveSession struct {
	SessionID   id.SessionID
	RoomID      id.RoomID
	CheckInTime time.Time
}

// Outcome is the envelope stored under an idempotency key. Replays reproduce
// the original outcome verbatim, rejections included, without re-executing
// side effects.
type Outcome struct {
	CheckIn  *CheckInResult  `json:"check_in,omitempty"`
	CheckOut *CheckOutResult `json:"check_out,omitempty"`
}

// wire forms keep stored outcomes stable across ID type changes.
type wireCheckIn struct {
	Success           bool         `json:"success"`
	SessionID         string       `json:"session_id,omitempty"`
	CheckInTime       time.Time    `json:"check_in_time,omitempty"`
	Reason            RejectReason `json:"reason,omitempty"`
	ConflictingRoomID string       `json:"conflicting_room_id,omitempty"`
}

type wireCheckOut struct {
	Success      bool         `json:"success"`
	SessionID    string       `json:"session_id,omitempty"`
	RoomID       string       `json:"room_id,omitempty"`
	CheckOutTime time.Time    `json:"check_out_time,omitempty"`
	Reason       RejectReason `json:"reason,omitempty"`
}

type wireOutcome struct {
	CheckIn  *wireCheckIn  `json:"check_in,omitempty"`
	CheckOut *wireCheckOut `json:"check_out,omitempty"`
}

// EncodeOutcome serializes an outcome for the idempotency store.
func EncodeOutcome(o Outcome) ([]byte, error) {
	w := wireOutcome{}
	if o.CheckIn != nil {
		w.CheckIn = &wireCheckIn{
			Success:     o.CheckIn.Success,
			CheckInTime: o.CheckIn.CheckInTime,
			Reason:      o.CheckIn.Reason,
		}
		if !o.CheckIn.SessionID.IsNil() {
			w.CheckIn.SessionID = o.CheckIn.SessionID.String()
		}
		if !o.CheckIn.ConflictingRoomID.IsZero() {
			w.CheckIn.ConflictingRoomID = o.CheckIn.ConflictingRoomID.String()
		}
	}
	if o.CheckOut != nil {
		w.CheckOut = &wireCheckOut{
			Success:      o.CheckOut.Success,
			CheckOutTime: o.CheckOut.CheckOutTime,
			Reason:       o.CheckOut.Reason,
		}
		if !o.CheckOut.SessionID.IsNil() {
			w.CheckOut.SessionID = o.CheckOut.SessionID.String()
		}
		if !o.CheckOut.RoomID.IsZero() {
			w.CheckOut.RoomID = o.CheckOut.RoomID.String()
		}
	}
	return json.Marshal(w)
}

// DecodeOutcome parses a stored outcome envelope.
func DecodeOutcome(payload []byte) (Outcome, error) {
	var w wireOutcome
	if err := json.Unmarshal(payload, &w); err != nil {
		return Outcome{}, fmt.Errorf("unmarshal outcome: %w", err)
	}
	o := Outcome{}
	if w.CheckIn != nil {
		o.CheckIn = &CheckInResult{
			Success:           w.CheckIn.Success,
			CheckInTime:       w.CheckIn.CheckInTime,
			Reason:            w.CheckIn.Reason,
			ConflictingRoomID: id.RoomID(w.CheckIn.ConflictingRoomID),
		}
		if w.CheckIn.SessionID != "" {
			sid, err := id.ParseSessionID(w.CheckIn.SessionID)
			if err != nil {
				return Outcome{}, fmt.Errorf("stored session id: %w", err)
			}
			o.CheckIn.SessionID = sid
		}
	}
	if w.CheckOut != nil {
		o.CheckOut = &CheckOutResult{
			Success:      w.CheckOut.Success,
			RoomID:       id.RoomID(w.CheckOut.RoomID),
			CheckOutTime: w.CheckOut.CheckOutTime,
			Reason:       w.CheckOut.Reason,
		}
		if w.CheckOut.SessionID != "" {
			sid, err := id.ParseSessionID(w.CheckOut.SessionID)
			if err != nil {
				return Outcome{}, fmt.Errorf("stored session id: %w", err)
			}
			o.CheckOut.SessionID = sid
		}
	}
	return o, nil
}
