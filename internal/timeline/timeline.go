// Package timeline keeps per-day check-in rollups for rooms and people.
// Entries are derived from the event stream and rebuildable by replay; a
// day's counter only moves forward.
package timeline

import (
	"context"
	"encoding/json"
	"time"

	id "presence/pkg/domain"
	dErrors "presence/pkg/domain-errors"
)

// Scope selects which rollup a query reads.
type Scope string

const (
	// ScopeRoom is the per-room daily series.
	ScopeRoom Scope = "room"
	// ScopePerson is the per-person daily series.
	ScopePerson Scope = "person"
)

// ParseScope validates a wire-level scope string.
func ParseScope(s string) (Scope, error) {
	switch sc := Scope(s); sc {
	case ScopeRoom, ScopePerson:
		return sc, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown timeline scope: "+s)
	}
}

// Entry is one day's check-in count. Days with no activity appear with a
// zero count in query results.
type Entry struct {
	Date         time.Time `json:"-"`
	CheckinCount int       `json:"checkin_count"`
}

// MarshalJSON renders the date as a bare day, matching DateLayout.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date         string `json:"date"`
		CheckinCount int    `json:"checkin_count"`
	}{e.Date.Format(DateLayout), e.CheckinCount})
}

// Store persists daily rollups.
type Store interface {
	// Record increments the day's counter for both the room and the person
	// scope. The date is truncated to its day.
	Record(ctx context.Context, roomID id.RoomID, personID id.PersonID, date time.Time) error
	// Query returns one entry per day in [from, to], inclusive, ordered by
	// date, zero-filled for days without activity.
	Query(ctx context.Context, scope Scope, scopeID string, from, to time.Time) ([]Entry, error)
}

// DateLayout is the canonical day key, used on the wire and in storage.
const DateLayout = "2006-01-02"

// Day truncates t to its UTC calendar day. Rollups bucket by UTC regardless
// of the offset an event timestamp arrives with, so a day means the same
// thing across producers.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// zeroFill maps sparse per-day counts, keyed by DateLayout, onto the full
// [from, to] range.
func zeroFill(counts map[string]int, from, to time.Time) []Entry {
	from, to = Day(from), Day(to)
	var out []Entry
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		out = append(out, Entry{Date: day, CheckinCount: counts[day.Format(DateLayout)]})
	}
	return out
}
