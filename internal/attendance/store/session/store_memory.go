package session

import (
	"context"
	"sync"
	"time"

	"presence/internal/attendance/models"
	id "presence/pkg/domain"
	"presence/pkg/platform/sentinel"
)

// InMemoryStore is the in-memory ledger. A single mutex makes every
// operation atomic, so the one-open-session-per-person check inside Create
// cannot race with a concurrent Create for the same person.
type InMemoryStore struct {
	mu             sync.RWMutex
	sessions       map[id.SessionID]*models.Session
	activeByPerson map[id.PersonID]id.SessionID
	activeByRoom   map[id.RoomID]int
}

// NewInMemoryStore constructs an empty ledger.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:       make(map[id.SessionID]*models.Session),
		activeByPerson: make(map[id.PersonID]id.SessionID),
		activeByRoom:   make(map[id.RoomID]int),
	}
}

// Create implements Store.
func (s *InMemoryStore) Create(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, open := s.activeByPerson[sess.PersonID]; open {
		return sentinel.ErrConflict
	}
	if _, exists := s.sessions[sess.ID]; exists {
		return sentinel.ErrConflict
	}
	stored := *sess
	s.sessions[sess.ID] = &stored
	s.activeByPerson[sess.PersonID] = sess.ID
	s.activeByRoom[sess.RoomID]++
	return nil
}

// CloseSession implements Store.
func (s *InMemoryStore) CloseSession(_ context.Context, sessionID id.SessionID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !sess.IsActive() {
		return sentinel.ErrInvalidState
	}
	if err := sess.Close(at); err != nil {
		return err
	}
	delete(s.activeByPerson, sess.PersonID)
	if s.activeByRoom[sess.RoomID] > 0 {
		s.activeByRoom[sess.RoomID]--
	}
	return nil
}

// FindActiveByPerson implements Store.
func (s *InMemoryStore) FindActiveByPerson(_ context.Context, personID id.PersonID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.activeByPerson[personID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copySession(s.sessions[sessionID]), nil
}

// CountActiveByRoom implements Store.
func (s *InMemoryStore) CountActiveByRoom(_ context.Context, roomID id.RoomID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeByRoom[roomID], nil
}

// FindByID implements Store.
func (s *InMemoryStore) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copySession(sess), nil
}

func copySession(sess *models.Session) *models.Session {
	out := *sess
	if sess.CheckOutTime != nil {
		t := *sess.CheckOutTime
		out.CheckOutTime = &t
	}
	return &out
}
