// Package capacity validates a room's configured capacity against counted
// occupancy before a new session is admitted.
package capacity

import (
	"context"
	"errors"

	"presence/internal/attendance/models"
	"presence/internal/attendance/store/session"
	"presence/internal/registry"
	id "presence/pkg/domain"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/sentinel"
)

// Admission is the guard's verdict. Rejections carry the reason so the
// state machine can return it as a typed outcome.
type Admission struct {
	Admitted  bool
	Reason    models.RejectReason
	Capacity  int
	Occupancy int
}

// Guard computes current occupancy from open ledger sessions and compares it
// against the room registry's configured capacity. Capacity is external
// state owned by the registry; the guard never caches it across commands.
//
// Reserve must run inside the state machine's per-room critical section:
// evaluated outside it, two commands could both observe capacity-1 available
// and both be admitted.
type Guard struct {
	rooms  registry.RoomRegistry
	ledger session.Store
}

// New constructs a Guard.
func New(rooms registry.RoomRegistry, ledger session.Store) *Guard {
	return &Guard{rooms: rooms, ledger: ledger}
}

// Reserve decides whether one more session fits in the room.
func (g *Guard) Reserve(ctx context.Context, roomID id.RoomID) (Admission, error) {
	room, err := g.rooms.Room(ctx, roomID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Admission{Reason: models.ReasonRoomNotFound}, nil
		}
		return Admission{}, dErrors.Wrap(err, dErrors.CodeInternal, "room lookup failed")
	}
	if !room.Active {
		return Admission{Reason: models.ReasonRoomInactive}, nil
	}

	occupancy, err := g.ledger.CountActiveByRoom(ctx, roomID)
	if err != nil {
		return Admission{}, dErrors.Wrap(err, dErrors.CodeInternal, "occupancy count failed")
	}
	if occupancy >= room.Capacity {
		return Admission{
			Reason:    models.ReasonCapacityExceeded,
			Capacity:  room.Capacity,
			Occupancy: occupancy,
		}, nil
	}
	return Admission{Admitted: true, Capacity: room.Capacity, Occupancy: occupancy}, nil
}
