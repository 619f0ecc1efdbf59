package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"
)

// =============================================================================
// Consumer Handling Test Suite
// =============================================================================
// The poll loop needs a live broker, but the commit decision does not: these
// tests drive handleFetches with hand-built fetch results to pin down that a
// handler failure propagates instead of letting later polls commit past the
// failed records.

type ConsumerSuite struct {
	suite.Suite
}

func TestConsumerSuite(t *testing.T) {
	suite.Run(t, new(ConsumerSuite))
}

type recordingHandler struct {
	offsets []int64
	failAt  int64
}

func (h *recordingHandler) Handle(_ context.Context, msg *Message) error {
	if h.failAt != 0 && msg.Offset == h.failAt {
		return errors.New("projection store down")
	}
	h.offsets = append(h.offsets, msg.Offset)
	return nil
}

func fetchesWithOffsets(offsets ...int64) kgo.Fetches {
	records := make([]*kgo.Record, 0, len(offsets))
	for _, off := range offsets {
		records = append(records, &kgo.Record{
			Topic:  "presence.attendance",
			Key:    []byte("R1"),
			Value:  []byte("{}"),
			Offset: off,
		})
	}
	return kgo.Fetches{{
		Topics: []kgo.FetchTopic{{
			Topic:      "presence.attendance",
			Partitions: []kgo.FetchPartition{{Partition: 0, Records: records}},
		}},
	}}
}

func (s *ConsumerSuite) newConsumer(h Handler) *Consumer {
	return &Consumer{
		handler: h,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (s *ConsumerSuite) TestHandlesRecordsInOrder() {
	h := &recordingHandler{}
	c := s.newConsumer(h)

	err := c.handleFetches(context.Background(), fetchesWithOffsets(0, 1, 2, 3))
	s.Require().NoError(err)
	s.Equal([]int64{0, 1, 2, 3}, h.offsets)
}

func (s *ConsumerSuite) TestFailureStopsTheBatchAndPropagates() {
	h := &recordingHandler{failAt: 2}
	c := s.newConsumer(h)

	// The caller must see the error so the poll loop stops without
	// committing; records after the failure stay unhandled.
	err := c.handleFetches(context.Background(), fetchesWithOffsets(0, 1, 2, 3, 4))
	s.Require().Error(err)
	s.Equal([]int64{0, 1}, h.offsets)
}

func (s *ConsumerSuite) TestEmptyFetchSucceeds() {
	h := &recordingHandler{}
	c := s.newConsumer(h)

	s.Require().NoError(c.handleFetches(context.Background(), kgo.Fetches{}))
	s.Empty(h.offsets)
}
