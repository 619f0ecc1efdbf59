package occupancy

import (
	"time"

	id "presence/pkg/domain"
)

// RoomOccupancySnapshot is the derived realtime view of one room. It is a
// cache of event history, rebuildable by replay; the ledger stays the
// source of truth.
type RoomOccupancySnapshot struct {
	RoomID                 id.RoomID `json:"room_id"`
	CurrentOccupancy       int       `json:"current_occupancy"`
	CheckinsLast15Min      int       `json:"checkins_last_15m"`
	CheckinsLastHour       int       `json:"checkins_last_hour"`
	UniqueVisitorsLastHour int       `json:"unique_visitors_last_hour"`
	LastEventTime          time.Time `json:"last_event_time"`
}

// DashboardTotals aggregates across all rooms. Maintained incrementally as
// events arrive, never by scanning history.
type DashboardTotals struct {
	TotalCheckins  int `json:"total_checkins"`
	ActiveCheckins int `json:"active_checkins"`
	RoomsOccupied  int `json:"rooms_occupied"`
	StudentsActive int `json:"students_active"`
}
