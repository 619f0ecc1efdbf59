package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"presence/internal/attendance/models"
	id "presence/pkg/domain"
	"presence/pkg/platform/sentinel"
	txcontext "presence/pkg/platform/tx"
)

// PostgresStore is the durable ledger. The one-open-session-per-person
// invariant is enforced by a partial unique index, so even concurrent writers
// that bypass the service's per-person serialization cannot violate it.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ledger.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema creates the ledger table. Invoked at startup; production
// deployments manage the same DDL through their migration tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS attendance_sessions (
    id             UUID PRIMARY KEY,
    person_id      TEXT NOT NULL,
    room_id        TEXT NOT NULL,
    check_in_time  TIMESTAMPTZ NOT NULL,
    check_out_time TIMESTAMPTZ,
    status         TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS attendance_one_active_per_person
    ON attendance_sessions (person_id) WHERE status = 'ACTIVE';
CREATE INDEX IF NOT EXISTS attendance_active_by_room
    ON attendance_sessions (room_id) WHERE status = 'ACTIVE';
`

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if dbtx, ok := txcontext.From(ctx); ok {
		return dbtx
	}
	return s.db
}

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, sess *models.Session) error {
	const query = `
		INSERT INTO attendance_sessions (id, person_id, room_id, check_in_time, status)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(sess.ID),
		sess.PersonID.String(),
		sess.RoomID.String(),
		sess.CheckInTime,
		string(sess.Status),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// CloseSession implements Store.
func (s *PostgresStore) CloseSession(ctx context.Context, sessionID id.SessionID, at time.Time) error {
	const query = `
		UPDATE attendance_sessions
		SET status = 'COMPLETED', check_out_time = GREATEST($2, check_in_time + interval '1 microsecond')
		WHERE id = $1 AND status = 'ACTIVE'
	`
	res, err := s.querier(ctx).ExecContext(ctx, query, uuid.UUID(sessionID), at)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close session rows affected: %w", err)
	}
	if affected == 0 {
		// Either unknown or already closed; disambiguate for the caller.
		if _, err := s.FindByID(ctx, sessionID); errors.Is(err, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

// FindActiveByPerson implements Store.
func (s *PostgresStore) FindActiveByPerson(ctx context.Context, personID id.PersonID) (*models.Session, error) {
	const query = `
		SELECT id, person_id, room_id, check_in_time, check_out_time, status
		FROM attendance_sessions
		WHERE person_id = $1 AND status = 'ACTIVE'
	`
	return s.scanOne(s.querier(ctx).QueryRowContext(ctx, query, personID.String()))
}

// CountActiveByRoom implements Store.
func (s *PostgresStore) CountActiveByRoom(ctx context.Context, roomID id.RoomID) (int, error) {
	const query = `
		SELECT COUNT(*) FROM attendance_sessions
		WHERE room_id = $1 AND status = 'ACTIVE'
	`
	var count int
	if err := s.querier(ctx).QueryRowContext(ctx, query, roomID.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return count, nil
}

// FindByID implements Store.
func (s *PostgresStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	const query = `
		SELECT id, person_id, room_id, check_in_time, check_out_time, status
		FROM attendance_sessions
		WHERE id = $1
	`
	return s.scanOne(s.querier(ctx).QueryRowContext(ctx, query, uuid.UUID(sessionID)))
}

func (s *PostgresStore) scanOne(row *sql.Row) (*models.Session, error) {
	var (
		sess      models.Session
		sessionID uuid.UUID
		personID  string
		roomID    string
		checkOut  sql.NullTime
		status    string
	)
	err := row.Scan(&sessionID, &personID, &roomID, &sess.CheckInTime, &checkOut, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.ID = id.SessionID(sessionID)
	sess.PersonID = id.PersonID(personID)
	sess.RoomID = id.RoomID(roomID)
	sess.Status = models.SessionStatus(status)
	if checkOut.Valid {
		t := checkOut.Time
		sess.CheckOutTime = &t
	}
	return &sess, nil
}
