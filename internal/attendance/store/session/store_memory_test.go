package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"presence/internal/attendance/models"
	id "presence/pkg/domain"
	"presence/pkg/platform/sentinel"
)

// =============================================================================
// Session Store Test Suite
// =============================================================================

type SessionStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestSessionStoreSuite(t *testing.T) {
	suite.Run(t, new(SessionStoreSuite))
}

func (s *SessionStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func (s *SessionStoreSuite) create(person id.PersonID, room id.RoomID) *models.Session {
	sess, err := models.NewSession(id.NewSessionID(), person, room, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), sess))
	return sess
}

func (s *SessionStoreSuite) TestCreate() {
	ctx := context.Background()

	s.Run("stores an active session", func() {
		sess := s.create("P1", "R1")
		found, err := s.store.FindByID(ctx, sess.ID)
		s.Require().NoError(err)
		s.Equal(sess.ID, found.ID)
		s.True(found.IsActive())
	})

	s.Run("second open session for the same person conflicts", func() {
		sess, err := models.NewSession(id.NewSessionID(), "P1", "R2", time.Now())
		s.Require().NoError(err)
		s.ErrorIs(s.store.Create(ctx, sess), sentinel.ErrConflict)
	})

	s.Run("reads return copies, not aliases", func() {
		found, err := s.store.FindActiveByPerson(ctx, "P1")
		s.Require().NoError(err)
		found.Status = models.SessionStatusCompleted

		again, err := s.store.FindActiveByPerson(ctx, "P1")
		s.Require().NoError(err)
		s.True(again.IsActive())
	})
}

func (s *SessionStoreSuite) TestCloseSession() {
	ctx := context.Background()
	sess := s.create("P1", "R1")

	s.Run("closes an active session", func() {
		at := time.Now().Add(time.Hour)
		s.Require().NoError(s.store.CloseSession(ctx, sess.ID, at))

		closed, err := s.store.FindByID(ctx, sess.ID)
		s.Require().NoError(err)
		s.Equal(models.SessionStatusCompleted, closed.Status)
		s.Require().NotNil(closed.CheckOutTime)
	})

	s.Run("person can open a new session afterwards", func() {
		s.create("P1", "R2")
	})

	s.Run("closing a completed session is an invalid state", func() {
		s.ErrorIs(s.store.CloseSession(ctx, sess.ID, time.Now()), sentinel.ErrInvalidState)
	})

	s.Run("closing an unknown session is not found", func() {
		s.ErrorIs(s.store.CloseSession(ctx, id.NewSessionID(), time.Now()), sentinel.ErrNotFound)
	})
}

func (s *SessionStoreSuite) TestFindActiveByPerson() {
	ctx := context.Background()

	s.Run("not found with no open session", func() {
		_, err := s.store.FindActiveByPerson(ctx, "P9")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("finds only the open session", func() {
		first := s.create("P1", "R1")
		s.Require().NoError(s.store.CloseSession(ctx, first.ID, time.Now().Add(time.Minute)))
		second := s.create("P1", "R2")

		open, err := s.store.FindActiveByPerson(ctx, "P1")
		s.Require().NoError(err)
		s.Equal(second.ID, open.ID)
	})
}

func (s *SessionStoreSuite) TestCountActiveByRoom() {
	ctx := context.Background()

	count, err := s.store.CountActiveByRoom(ctx, "R1")
	s.Require().NoError(err)
	s.Zero(count)

	a := s.create("PA", "R1")
	s.create("PB", "R1")
	s.create("PC", "R2")

	count, err = s.store.CountActiveByRoom(ctx, "R1")
	s.Require().NoError(err)
	s.Equal(2, count)

	s.Require().NoError(s.store.CloseSession(ctx, a.ID, time.Now().Add(time.Minute)))
	count, err = s.store.CountActiveByRoom(ctx, "R1")
	s.Require().NoError(err)
	s.Equal(1, count)
}
