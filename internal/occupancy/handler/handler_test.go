package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"presence/internal/events"
	"presence/internal/occupancy"
	"presence/internal/realtime"
	id "presence/pkg/domain"
)

// =============================================================================
// Occupancy Handler Test Suite
// =============================================================================

type OccupancyHandlerSuite struct {
	suite.Suite
	agg    *occupancy.Aggregator
	hub    *realtime.Hub
	router *chi.Mux
}

func TestOccupancyHandlerSuite(t *testing.T) {
	suite.Run(t, new(OccupancyHandlerSuite))
}

func (s *OccupancyHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.hub = realtime.NewHub(8, realtime.WithLogger(logger))
	s.agg = occupancy.NewAggregator(occupancy.WithObserver(s.hub))

	s.router = chi.NewRouter()
	New(s.agg, s.hub, logger).Register(s.router)
}

func (s *OccupancyHandlerSuite) apply(evType events.Type, person id.PersonID, room id.RoomID) {
	s.agg.Apply(context.Background(), events.DomainEvent{
		ID:         id.NewEventID(),
		Type:       evType,
		PersonID:   person,
		RoomID:     room,
		OccurredAt: time.Now(),
	})
}

func (s *OccupancyHandlerSuite) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// Snapshot Endpoint Tests
// =============================================================================

func (s *OccupancyHandlerSuite) TestRoomSnapshotEndpoint() {
	s.apply(events.TypeCheckedIn, "P1", "R1")
	s.apply(events.TypeCheckedIn, "P2", "R1")

	rec := s.get("/occupancy/rooms/R1")
	s.Require().Equal(http.StatusOK, rec.Code)

	var snap occupancy.RoomOccupancySnapshot
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &snap))
	s.Equal(id.RoomID("R1"), snap.RoomID)
	s.Equal(2, snap.CurrentOccupancy)
	s.Equal(2, snap.CheckinsLastHour)
}

func (s *OccupancyHandlerSuite) TestRoomSnapshotUnknownRoomIsZeroes() {
	rec := s.get("/occupancy/rooms/R404")
	s.Require().Equal(http.StatusOK, rec.Code)

	var snap occupancy.RoomOccupancySnapshot
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &snap))
	s.Zero(snap.CurrentOccupancy)
}

func (s *OccupancyHandlerSuite) TestDashboardEndpoint() {
	s.apply(events.TypeCheckedIn, "P1", "R1")
	s.apply(events.TypeCheckedIn, "P2", "R2")
	s.apply(events.TypeCheckedOut, "P1", "R1")

	rec := s.get("/occupancy/dashboard")
	s.Require().Equal(http.StatusOK, rec.Code)

	var totals occupancy.DashboardTotals
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &totals))
	s.Equal(2, totals.TotalCheckins)
	s.Equal(1, totals.ActiveCheckins)
	s.Equal(1, totals.RoomsOccupied)
}

// =============================================================================
// Stream Endpoint Tests
// =============================================================================

func (s *OccupancyHandlerSuite) TestStreamUnavailableWithoutHub() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := chi.NewRouter()
	New(s.agg, nil, logger).Register(router)

	req := httptest.NewRequest(http.MethodGet, "/occupancy/stream", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}

// streamRecorder is a concurrency-safe ResponseWriter for the long-lived
// stream handler, which keeps writing while the test reads.
type streamRecorder struct {
	mu     sync.Mutex
	header http.Header
	body   strings.Builder
	status int
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{header: make(http.Header)}
}

func (r *streamRecorder) Header() http.Header { return r.header }

func (r *streamRecorder) WriteHeader(status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}

func (r *streamRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.Write(p)
}

func (r *streamRecorder) Flush() {}

func (r *streamRecorder) Body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.String()
}

func (s *OccupancyHandlerSuite) TestStreamSendsSnapshotFirst() {
	s.apply(events.TypeCheckedIn, "P1", "R1")

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/occupancy/stream?room_id=R1", nil).WithContext(ctx)
	rec := newStreamRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.router.ServeHTTP(rec, req)
	}()

	// The snapshot frame is written before the handler blocks on the feed.
	s.Require().Eventually(func() bool {
		return strings.Contains(rec.Body(), "event: snapshot")
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	s.Equal("text/event-stream", rec.Header().Get("Content-Type"))
	s.Contains(rec.Body(), `"current_occupancy":1`)
}

func (s *OccupancyHandlerSuite) TestStreamDeliversMutations() {
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/occupancy/stream?room_id=R1", nil).WithContext(ctx)
	rec := newStreamRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.router.ServeHTTP(rec, req)
	}()

	s.Require().Eventually(func() bool {
		return strings.Contains(rec.Body(), "event: snapshot")
	}, time.Second, 5*time.Millisecond)

	s.apply(events.TypeCheckedIn, "P1", "R1")

	s.Require().Eventually(func() bool {
		return strings.Contains(rec.Body(), "event: occupancy")
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	s.Contains(rec.Body(), `"active_checkins":1`)
}
