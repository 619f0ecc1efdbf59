package handler

import (
	"strings"
	"time"

	"presence/internal/attendance/models"
	dErrors "presence/pkg/domain-errors"
)

// CheckInRequest is the wire form of a check-in command. The credential is
// resolved to a person before the command runs; person identifiers never
// travel on the command surface.
type CheckInRequest struct {
	Method         string `json:"method"`
	Value          string `json:"value"`
	RoomID         string `json:"room_id"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Validate implements httputil.Validator.
func (r CheckInRequest) Validate() error {
	if strings.TrimSpace(r.Method) == "" {
		return dErrors.New(dErrors.CodeValidation, "method is required")
	}
	if strings.TrimSpace(r.Value) == "" {
		return dErrors.New(dErrors.CodeValidation, "value is required")
	}
	if strings.TrimSpace(r.RoomID) == "" {
		return dErrors.New(dErrors.CodeValidation, "room_id is required")
	}
	return nil
}

// CheckOutRequest is the wire form of a check-out command. No room: the
// ledger knows where the person's open session is.
type CheckOutRequest struct {
	Method         string `json:"method"`
	Value          string `json:"value"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Validate implements httputil.Validator.
func (r CheckOutRequest) Validate() error {
	if strings.TrimSpace(r.Method) == "" {
		return dErrors.New(dErrors.CodeValidation, "method is required")
	}
	if strings.TrimSpace(r.Value) == "" {
		return dErrors.New(dErrors.CodeValidation, "value is required")
	}
	return nil
}

// CheckInResponse reports the command outcome. Business rejections are
// success=false with a reason, not HTTP errors; only malformed requests and
// infrastructure failures use error statuses.
type CheckInResponse struct {
	Success           bool      `json:"success"`
	SessionID         string    `json:"session_id,omitempty"`
	CheckInTime       time.Time `json:"check_in_time,omitempty"`
	Reason            string    `json:"reason,omitempty"`
	ConflictingRoomID string    `json:"conflicting_room_id,omitempty"`
}

// CheckOutResponse reports the command outcome.
type CheckOutResponse struct {
	Success      bool      `json:"success"`
	SessionID    string    `json:"session_id,omitempty"`
	RoomID       string    `json:"room_id,omitempty"`
	CheckOutTime time.Time `json:"check_out_time,omitempty"`
	Reason       string    `json:"reason,omitempty"`
}

// ActiveSessionResponse answers the active-session query.
type ActiveSessionResponse struct {
	Active      bool      `json:"active"`
	SessionID   string    `json:"session_id,omitempty"`
	RoomID      string    `json:"room_id,omitempty"`
	CheckInTime time.Time `json:"check_in_time,omitempty"`
}

func toCheckInResponse(res models.CheckInResult) CheckInResponse {
	out := CheckInResponse{
		Success: res.Success,
		Reason:  string(res.Reason),
	}
	if res.Success {
		out.SessionID = res.SessionID.String()
		out.CheckInTime = res.CheckInTime
	}
	if !res.ConflictingRoomID.IsZero() {
		out.ConflictingRoomID = res.ConflictingRoomID.String()
	}
	return out
}

func toCheckOutResponse(res models.CheckOutResult) CheckOutResponse {
	out := CheckOutResponse{
		Success: res.Success,
		Reason:  string(res.Reason),
	}
	if res.Success {
		out.SessionID = res.SessionID.String()
		out.RoomID = res.RoomID.String()
		out.CheckOutTime = res.CheckOutTime
	}
	return out
}
