package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"presence/internal/timeline"
)

// =============================================================================
// Timeline Handler Test Suite
// =============================================================================

type TimelineHandlerSuite struct {
	suite.Suite
	store  *timeline.InMemoryStore
	router *chi.Mux
}

func TestTimelineHandlerSuite(t *testing.T) {
	suite.Run(t, new(TimelineHandlerSuite))
}

func (s *TimelineHandlerSuite) SetupTest() {
	s.store = timeline.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.store, logger).Register(s.router)
}

func (s *TimelineHandlerSuite) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *TimelineHandlerSuite) TestQueryEndpoint() {
	ctx := context.Background()
	day := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.Record(ctx, "R1", "P1", day))
	s.Require().NoError(s.store.Record(ctx, "R1", "P2", day))

	rec := s.get("/timeline/room/R1?from=2026-03-02&to=2026-03-04")
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp QueryResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("room", resp.Scope)
	s.Equal("R1", resp.ScopeID)
	s.Require().Len(resp.Entries, 3)
	s.Equal(2, resp.Entries[0].CheckinCount)
	s.Zero(resp.Entries[1].CheckinCount)
	s.Zero(resp.Entries[2].CheckinCount)
}

func (s *TimelineHandlerSuite) TestQueryValidation() {
	s.Run("unknown scope is HTTP 400", func() {
		rec := s.get("/timeline/building/B1?from=2026-03-02&to=2026-03-04")
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("missing dates is HTTP 400", func() {
		rec := s.get("/timeline/room/R1")
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("malformed date is HTTP 400", func() {
		rec := s.get("/timeline/room/R1?from=03-02-2026&to=2026-03-04")
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("inverted range is HTTP 400", func() {
		rec := s.get("/timeline/room/R1?from=2026-03-04&to=2026-03-02")
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("range wider than a year is HTTP 400", func() {
		rec := s.get("/timeline/room/R1?from=2024-01-01&to=2026-03-04")
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *TimelineHandlerSuite) TestPersonScope() {
	ctx := context.Background()
	day := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.Record(ctx, "R1", "P1", day))
	s.Require().NoError(s.store.Record(ctx, "R2", "P1", day))

	rec := s.get("/timeline/person/P1?from=2026-03-02&to=2026-03-02")
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp QueryResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Require().Len(resp.Entries, 1)
	s.Equal(2, resp.Entries[0].CheckinCount)
}
