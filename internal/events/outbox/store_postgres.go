package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"presence/internal/events"
	id "presence/pkg/domain"
	txcontext "presence/pkg/platform/tx"
	"presence/pkg/requestcontext"
)

// PostgresStore persists outbox entries. Append picks up the transaction from
// context so the entry commits atomically with the ledger write.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed outbox store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema creates the outbox table. Invoked at startup; production
// deployments manage the same DDL through their migration tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS outbox (
    id           UUID PRIMARY KEY,
    room_id      TEXT NOT NULL,
    event_type   TEXT NOT NULL,
    payload      JSONB NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL,
    published_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS outbox_unpublished_idx ON outbox (created_at) WHERE published_at IS NULL;
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

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, ev events.DomainEvent) error {
	payload, err := events.Encode(ev)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO outbox (id, room_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.New(),
		ev.RoomID.String(),
		string(ev.Type),
		payload,
		requestcontext.Now(ctx),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListUnpublished implements Store.
func (s *PostgresStore) ListUnpublished(ctx context.Context, limit int) ([]Entry, error) {
	const query = `
		SELECT id, room_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list unpublished outbox entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			roomID    string
			eventType string
		)
		if err := rows.Scan(&e.ID, &roomID, &eventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		e.RoomID = id.RoomID(roomID)
		e.EventType = events.Type(eventType)
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkPublished implements Store.
func (s *PostgresStore) MarkPublished(ctx context.Context, entryID uuid.UUID, at time.Time) error {
	const query = `UPDATE outbox SET published_at = $2 WHERE id = $1 AND published_at IS NULL`
	_, err := s.db.ExecContext(ctx, query, entryID, at)
	if err != nil {
		return fmt.Errorf("mark outbox entry published: %w", err)
	}
	return nil
}
