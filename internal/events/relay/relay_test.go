package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"presence/internal/events"
	"presence/internal/events/outbox"
	id "presence/pkg/domain"
)

// =============================================================================
// Relay Test Suite
// =============================================================================

type fakeProducer struct {
	mu       sync.Mutex
	records  [][]byte
	keys     []string
	failures int
}

func (p *fakeProducer) Produce(_ context.Context, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.keys = append(p.keys, key)
	p.records = append(p.records, value)
	return nil
}

func (p *fakeProducer) produced() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

type RelaySuite struct {
	suite.Suite
	store    *outbox.InMemoryStore
	producer *fakeProducer
	relay    *Relay
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupTest() {
	s.store = outbox.NewInMemoryStore()
	s.producer = &fakeProducer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.relay = New(s.store, s.producer, time.Millisecond, logger)
}

func (s *RelaySuite) append(room id.RoomID) events.DomainEvent {
	ev := events.DomainEvent{
		ID:         id.NewEventID(),
		Type:       events.TypeCheckedIn,
		SessionID:  id.NewSessionID(),
		PersonID:   "P1",
		RoomID:     room,
		OccurredAt: time.Now(),
		CheckIn:    time.Now(),
	}
	s.Require().NoError(s.store.Append(context.Background(), ev))
	return ev
}

// =============================================================================
// Drain Tests
// =============================================================================

func (s *RelaySuite) TestDrainPublishesAndMarks() {
	ctx := context.Background()
	s.append("R1")
	s.append("R2")

	s.relay.drain(ctx)

	s.Equal(2, s.producer.produced())
	s.Equal([]string{"R1", "R2"}, s.producer.keys)

	unpublished, err := s.store.ListUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Empty(unpublished)
}

func (s *RelaySuite) TestRecordsAreKeyedByRoom() {
	ctx := context.Background()
	ev := s.append("R1")

	s.relay.drain(ctx)

	s.Require().Equal(1, s.producer.produced())
	decoded, err := events.Decode(s.producer.records[0])
	s.Require().NoError(err)
	s.Equal(ev.ID, decoded.ID)
	s.Equal("R1", s.producer.keys[0])
}

func (s *RelaySuite) TestProduceFailureRetainsEntry() {
	ctx := context.Background()
	s.append("R1")
	s.producer.failures = 1

	s.relay.drain(ctx)

	// Not marked published: the next poll retries. Duplicates on the far
	// side are the consumer's dedup problem, loss is not acceptable.
	unpublished, err := s.store.ListUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Len(unpublished, 1)

	s.relay.drain(ctx)
	s.Equal(1, s.producer.produced())

	unpublished, err = s.store.ListUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Empty(unpublished)
}

func (s *RelaySuite) TestFailureStopsBatchToPreserveOrder() {
	ctx := context.Background()
	s.append("R1")
	s.append("R1")
	s.producer.failures = 1

	s.relay.drain(ctx)

	// The second entry must not leapfrog the failed first one.
	s.Equal(0, s.producer.produced())

	s.relay.drain(ctx)
	s.Equal(2, s.producer.produced())
}

func (s *RelaySuite) TestRunDrainsUntilCancelled() {
	ctx, cancel := context.WithCancel(context.Background())
	s.append("R1")

	done := make(chan error, 1)
	go func() { done <- s.relay.Run(ctx) }()

	s.Require().Eventually(func() bool {
		return s.producer.produced() == 1
	}, time.Second, time.Millisecond)

	cancel()
	s.ErrorIs(<-done, context.Canceled)
}
