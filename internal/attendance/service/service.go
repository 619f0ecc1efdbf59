// Package service is the attendance state machine. It composes the ledger,
// the capacity guard, and the idempotency store to serve check-in and
// check-out commands, and appends domain events to the outbox inside the
// same unit of work as the ledger mutation.
//
// Concurrency model: commands are serialized per person and per room through
// keyed mutexes, acquired person first, then room, so the capacity check and
// the session write form one atomic unit. Commands touching distinct people
// and rooms run fully in parallel.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"presence/internal/attendance/capacity"
	"presence/internal/attendance/metrics"
	"presence/internal/attendance/models"
	"presence/internal/attendance/store/idempotency"
	"presence/internal/attendance/store/session"
	"presence/internal/events"
	"presence/internal/events/outbox"
	id "presence/pkg/domain"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/sentinel"
	"presence/pkg/platform/tx"
	"presence/pkg/requestcontext"
)

const (
	commandCheckIn  = "check_in"
	commandCheckOut = "check_out"
)

// Service orchestrates attendance commands.
type Service struct {
	ledger  session.Store
	idem    idempotency.Store
	guard   *capacity.Guard
	outbox  outbox.Store
	runner  tx.Runner
	locks   *keyedMutex
	logger  *slog.Logger
	metrics *metrics.Metrics

	idemTTL   time.Duration
	keyBucket time.Duration
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithIdempotencyTTL bounds outcome retention.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(s *Service) { s.idemTTL = ttl }
}

// WithDerivedKeyBucket sets the coarse time bucket used when the caller
// supplies no idempotency key. Back-to-back duplicate submissions inside one
// bucket collapse; distinct visits on different days never share a key.
func WithDerivedKeyBucket(d time.Duration) Option {
	return func(s *Service) { s.keyBucket = d }
}

// New constructs a Service.
func New(ledger session.Store, idem idempotency.Store, guard *capacity.Guard, ob outbox.Store, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		ledger:    ledger,
		idem:      idem,
		guard:     guard,
		outbox:    ob,
		runner:    runner,
		locks:     newKeyedMutex(),
		logger:    slog.Default(),
		idemTTL:   24 * time.Hour,
		keyBucket: 90 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckIn admits a person into a room, creating an ACTIVE session.
//
// Rejections (already active, capacity) are values on the result; only
// infrastructure failures return an error. Replays of a recorded key
// short-circuit before any check re-executes.
func (s *Service) CheckIn(ctx context.Context, personID id.PersonID, roomID id.RoomID, idemKey string) (models.CheckInResult, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveLatency(commandCheckIn, time.Since(start)) }()

	now := requestcontext.Now(ctx)
	key := idemKey
	if key == "" {
		key = s.deriveKey(commandCheckIn, personID, roomID, now)
	}

	unlockPerson := s.locks.Lock("person:" + personID.String())
	defer unlockPerson()

	rec, reserved, err := s.idem.GetOrReserve(ctx, key, s.idemTTL)
	if err != nil {
		return models.CheckInResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "idempotency lookup failed")
	}
	if !reserved {
		return s.replayCheckIn(ctx, key, rec)
	}

	unlockRoom := s.locks.Lock("room:" + roomID.String())
	defer unlockRoom()

	result, err := s.admit(ctx, personID, roomID, now)
	if err != nil {
		// Infrastructure failure before an outcome existed: release the
		// reservation so the client's retry re-executes.
		if relErr := s.idem.Release(ctx, key); relErr != nil {
			s.logger.ErrorContext(ctx, "idempotency release failed", "key", key, "error", relErr)
		}
		return models.CheckInResult{}, err
	}

	if err := s.complete(ctx, key, models.Outcome{CheckIn: &result}); err != nil {
		s.logger.ErrorContext(ctx, "idempotency complete failed", "key", key, "error", err)
	}

	outcome := "success"
	if !result.Success {
		outcome = string(result.Reason)
	}
	s.metrics.IncOutcome(commandCheckIn, outcome)
	s.logger.InfoContext(ctx, "check-in handled",
		"request_id", requestcontext.RequestID(ctx),
		"person_id", personID,
		"room_id", roomID,
		"outcome", outcome,
	)
	return result, nil
}

// admit runs the conflict and capacity checks and, when they pass, writes
// the session and its event in one unit of work. Caller holds both locks.
func (s *Service) admit(ctx context.Context, personID id.PersonID, roomID id.RoomID, now time.Time) (models.CheckInResult, error) {
	open, err := s.ledger.FindActiveByPerson(ctx, personID)
	switch {
	case err == nil:
		if open.RoomID != roomID {
			return models.CheckInResult{Reason: models.ReasonActiveElsewhere, ConflictingRoomID: open.RoomID}, nil
		}
		return models.CheckInResult{Reason: models.ReasonAlreadyActiveHere, ConflictingRoomID: open.RoomID}, nil
	case errors.Is(err, sentinel.ErrNotFound):
		// No open session; proceed.
	default:
		return models.CheckInResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "open session lookup failed")
	}

	admission, err := s.guard.Reserve(ctx, roomID)
	if err != nil {
		return models.CheckInResult{}, err
	}
	if !admission.Admitted {
		return models.CheckInResult{Reason: admission.Reason}, nil
	}

	sess, err := models.NewSession(id.NewSessionID(), personID, roomID, now)
	if err != nil {
		return models.CheckInResult{}, err
	}
	ev := events.DomainEvent{
		ID:         id.NewEventID(),
		Type:       events.TypeCheckedIn,
		SessionID:  sess.ID,
		PersonID:   personID,
		RoomID:     roomID,
		OccurredAt: now,
		CheckIn:    now,
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.ledger.Create(ctx, sess); err != nil {
			return err
		}
		return s.outbox.Append(ctx, ev)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Another instance won the race; report the conflict the caller
			// would have seen had it arrived second.
			if open, lookupErr := s.ledger.FindActiveByPerson(ctx, personID); lookupErr == nil {
				reason := models.ReasonAlreadyActiveHere
				if open.RoomID != roomID {
					reason = models.ReasonActiveElsewhere
				}
				return models.CheckInResult{Reason: reason, ConflictingRoomID: open.RoomID}, nil
			}
		}
		return models.CheckInResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "session write failed")
	}

	return models.CheckInResult{Success: true, SessionID: sess.ID, CheckInTime: now}, nil
}

// CheckOut closes the person's open session, wherever it is.
func (s *Service) CheckOut(ctx context.Context, personID id.PersonID, idemKey string) (models.CheckOutResult, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveLatency(commandCheckOut, time.Since(start)) }()

	now := requestcontext.Now(ctx)
	key := idemKey
	if key == "" {
		key = s.deriveKey(commandCheckOut, personID, "", now)
	}

	unlockPerson := s.locks.Lock("person:" + personID.String())
	defer unlockPerson()

	rec, reserved, err := s.idem.GetOrReserve(ctx, key, s.idemTTL)
	if err != nil {
		return models.CheckOutResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "idempotency lookup failed")
	}
	if !reserved {
		return s.replayCheckOut(ctx, key, rec)
	}

	result, err := s.close(ctx, personID, now)
	if err != nil {
		if relErr := s.idem.Release(ctx, key); relErr != nil {
			s.logger.ErrorContext(ctx, "idempotency release failed", "key", key, "error", relErr)
		}
		return models.CheckOutResult{}, err
	}

	if err := s.complete(ctx, key, models.Outcome{CheckOut: &result}); err != nil {
		s.logger.ErrorContext(ctx, "idempotency complete failed", "key", key, "error", err)
	}

	outcome := "success"
	if !result.Success {
		outcome = string(result.Reason)
	}
	s.metrics.IncOutcome(commandCheckOut, outcome)
	s.logger.InfoContext(ctx, "check-out handled",
		"request_id", requestcontext.RequestID(ctx),
		"person_id", personID,
		"room_id", result.RoomID,
		"outcome", outcome,
	)
	return result, nil
}

func (s *Service) close(ctx context.Context, personID id.PersonID, now time.Time) (models.CheckOutResult, error) {
	open, err := s.ledger.FindActiveByPerson(ctx, personID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.CheckOutResult{Reason: models.ReasonNoActiveSession}, nil
	}
	if err != nil {
		return models.CheckOutResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "open session lookup failed")
	}

	// Lock ordering is person before room everywhere; the room only becomes
	// known after the person lock is held.
	unlockRoom := s.locks.Lock("room:" + open.RoomID.String())
	defer unlockRoom()

	checkOut := now
	if !checkOut.After(open.CheckInTime) {
		checkOut = open.CheckInTime.Add(time.Nanosecond)
	}
	ev := events.DomainEvent{
		ID:         id.NewEventID(),
		Type:       events.TypeCheckedOut,
		SessionID:  open.ID,
		PersonID:   personID,
		RoomID:     open.RoomID,
		OccurredAt: checkOut,
		CheckIn:    open.CheckInTime,
		CheckOut:   &checkOut,
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.ledger.CloseSession(ctx, open.ID, checkOut); err != nil {
			return err
		}
		return s.outbox.Append(ctx, ev)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) || errors.Is(err, sentinel.ErrNotFound) {
			// Closed by a concurrent command on another instance.
			return models.CheckOutResult{Reason: models.ReasonNoActiveSession}, nil
		}
		return models.CheckOutResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "session close failed")
	}

	return models.CheckOutResult{
		Success:      true,
		SessionID:    open.ID,
		RoomID:       open.RoomID,
		CheckOutTime: checkOut,
	}, nil
}

// ActiveSession answers "is this person currently checked in, and where".
// Returns nil when the person has no open session.
func (s *Service) ActiveSession(ctx context.Context, personID id.PersonID) (*models.ActiveSession, error) {
	open, err := s.ledger.FindActiveByPerson(ctx, personID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "open session lookup failed")
	}
	return &models.ActiveSession{
		SessionID:   open.ID,
		RoomID:      open.RoomID,
		CheckInTime: open.CheckInTime,
	}, nil
}

func (s *Service) replayCheckIn(ctx context.Context, key string, rec *idempotency.Record) (models.CheckInResult, error) {
	outcome, err := models.DecodeOutcome(rec.Outcome)
	if err != nil {
		return models.CheckInResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "stored outcome unreadable")
	}
	if outcome.CheckIn == nil {
		return models.CheckInResult{}, dErrors.New(dErrors.CodeConflict, "idempotency key was used for a different command")
	}
	s.metrics.IncReplay()
	s.logger.DebugContext(ctx, "check-in replayed from idempotency store", "key", key)
	return *outcome.CheckIn, nil
}

func (s *Service) replayCheckOut(ctx context.Context, key string, rec *idempotency.Record) (models.CheckOutResult, error) {
	outcome, err := models.DecodeOutcome(rec.Outcome)
	if err != nil {
		return models.CheckOutResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "stored outcome unreadable")
	}
	if outcome.CheckOut == nil {
		return models.CheckOutResult{}, dErrors.New(dErrors.CodeConflict, "idempotency key was used for a different command")
	}
	s.metrics.IncReplay()
	s.logger.DebugContext(ctx, "check-out replayed from idempotency store", "key", key)
	return *outcome.CheckOut, nil
}

func (s *Service) complete(ctx context.Context, key string, outcome models.Outcome) error {
	payload, err := models.EncodeOutcome(outcome)
	if err != nil {
		return err
	}
	return s.idem.Complete(ctx, key, payload)
}

// deriveKey builds a deterministic key from the command, its targets, and a
// coarse time bucket, so duplicate submissions inside one bucket collapse
// while distinct visits on different days never collide.
func (s *Service) deriveKey(command string, personID id.PersonID, roomID id.RoomID, now time.Time) string {
	bucket := now.Truncate(s.keyBucket).Unix()
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s|%s",
		command, personID, roomID, strconv.FormatInt(bucket, 10)))
	return hex.EncodeToString(sum[:])
}
