package timeline

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	id "presence/pkg/domain"
	txcontext "presence/pkg/platform/tx"
)

// PostgresStore persists rollups as one row per (scope, id, day), upserted
// on event arrival. Record picks up the transaction from context when one
// is running.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed timeline store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema creates the timeline table. Invoked at startup; production
// deployments manage the same DDL through their migration tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS timeline_entries (
    scope         TEXT NOT NULL,
    scope_id      TEXT NOT NULL,
    day           DATE NOT NULL,
    checkin_count INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (scope, scope_id, day)
);
`

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if dbtx, ok := txcontext.From(ctx); ok {
		return dbtx
	}
	return s.db
}

// Record implements Store.
func (s *PostgresStore) Record(ctx context.Context, roomID id.RoomID, personID id.PersonID, date time.Time) error {
	const query = `
		INSERT INTO timeline_entries (scope, scope_id, day, checkin_count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (scope, scope_id, day)
		DO UPDATE SET checkin_count = timeline_entries.checkin_count + 1
	`
	day := Day(date)
	for _, target := range []struct {
		scope Scope
		id    string
	}{
		{ScopeRoom, roomID.String()},
		{ScopePerson, personID.String()},
	} {
		if _, err := s.execer(ctx).ExecContext(ctx, query, string(target.scope), target.id, day); err != nil {
			return fmt.Errorf("upsert timeline entry: %w", err)
		}
	}
	return nil
}

// Query implements Store.
func (s *PostgresStore) Query(ctx context.Context, scope Scope, scopeID string, from, to time.Time) ([]Entry, error) {
	const query = `
		SELECT day, checkin_count
		FROM timeline_entries
		WHERE scope = $1 AND scope_id = $2 AND day BETWEEN $3 AND $4
	`
	rows, err := s.db.QueryContext(ctx, query, string(scope), scopeID, Day(from), Day(to))
	if err != nil {
		return nil, fmt.Errorf("query timeline entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var day time.Time
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("scan timeline entry: %w", err)
		}
		counts[day.Format(DateLayout)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline entries: %w", err)
	}
	return zeroFill(counts, from, to), nil
}
