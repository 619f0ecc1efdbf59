package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"presence/internal/attendance/capacity"
	"presence/internal/attendance/models"
	"presence/internal/attendance/service"
	idemStore "presence/internal/attendance/store/idempotency"
	sessionStore "presence/internal/attendance/store/session"
	"presence/internal/events/outbox"
	"presence/internal/identify"
	"presence/internal/registry"
	"presence/pkg/platform/tx"
	"presence/pkg/testutil"
)

// =============================================================================
// Attendance Handler Test Suite
// =============================================================================
// The handler is exercised against the real state machine over in-memory
// stores: the HTTP contract under test is precisely the mapping between
// service outcomes and wire responses, so mocking the service would test
// the mock.

type AttendanceHandlerSuite struct {
	suite.Suite
	router *chi.Mux
	rooms  *registry.InMemoryRegistry
}

func TestAttendanceHandlerSuite(t *testing.T) {
	suite.Run(t, new(AttendanceHandlerSuite))
}

func (s *AttendanceHandlerSuite) SetupTest() {
	s.rooms = registry.NewInMemoryRegistry()
	s.rooms.PutRoom(registry.Room{ID: "R1", Name: "Reading Room", Capacity: 2, Active: true})
	s.rooms.PutPerson(registry.Person{ID: "P1", Name: "Ada", EnrollmentCode: "1001", Active: true})
	s.rooms.PutPerson(registry.Person{ID: "P2", Name: "Grace", EnrollmentCode: "1002", Active: true})

	ledger := sessionStore.NewInMemoryStore()
	svc := service.New(
		ledger,
		idemStore.NewInMemoryStore(),
		capacity.New(s.rooms, ledger),
		outbox.NewInMemoryStore(),
		tx.NopRunner{},
	)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(svc, identify.NewResolver(s.rooms, nil), logger)

	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *AttendanceHandlerSuite) post(path string, body any, header http.Header) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, path, body)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return testutil.DoRequest(s.router, req)
}

func (s *AttendanceHandlerSuite) checkIn(enrollment, room string) CheckInResponse {
	rec := s.post("/attendance/check-in", CheckInRequest{
		Method: "enrollment", Value: enrollment, RoomID: room,
	}, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	return *testutil.UnmarshalResponse[CheckInResponse](s.T(), rec)
}

// =============================================================================
// Check-In Endpoint Tests
// =============================================================================

func (s *AttendanceHandlerSuite) TestCheckInEndpoint() {
	s.Run("admits a registered person", func() {
		resp := s.checkIn("1001", "R1")
		s.True(resp.Success)
		s.NotEmpty(resp.SessionID)
	})

	s.Run("business rejection is HTTP 200 with a reason", func() {
		rec := s.post("/attendance/check-in", CheckInRequest{
			Method: "enrollment", Value: "1001", RoomID: "R1",
		}, nil)
		s.Equal(http.StatusOK, rec.Code)
		resp := testutil.UnmarshalResponse[CheckInResponse](s.T(), rec)
		s.False(resp.Success)
		s.Equal(string(models.ReasonAlreadyActiveHere), resp.Reason)
		s.Equal("R1", resp.ConflictingRoomID)
	})

	s.Run("unknown credential is HTTP 404", func() {
		rec := s.post("/attendance/check-in", CheckInRequest{
			Method: "enrollment", Value: "9999", RoomID: "R1",
		}, nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("missing room_id is HTTP 400", func() {
		rec := s.post("/attendance/check-in", CheckInRequest{
			Method: "enrollment", Value: "1002",
		}, nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown identification method is HTTP 400", func() {
		rec := s.post("/attendance/check-in", CheckInRequest{
			Method: "telepathy", Value: "1002", RoomID: "R1",
		}, nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("malformed body is HTTP 400", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/attendance/check-in", "{not json")
		rec := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *AttendanceHandlerSuite) TestIdempotencyKeyHeader() {
	header := http.Header{"Idempotency-Key": []string{"cmd-42"}}
	first := s.post("/attendance/check-in", CheckInRequest{
		Method: "enrollment", Value: "1001", RoomID: "R1",
	}, header)
	s.Require().Equal(http.StatusOK, first.Code)
	a := testutil.UnmarshalResponse[CheckInResponse](s.T(), first)
	s.Require().True(a.Success)

	second := s.post("/attendance/check-in", CheckInRequest{
		Method: "enrollment", Value: "1001", RoomID: "R1",
	}, header)
	s.Require().Equal(http.StatusOK, second.Code)
	b := testutil.UnmarshalResponse[CheckInResponse](s.T(), second)
	s.True(b.Success)
	s.Equal(a.SessionID, b.SessionID)
}

// =============================================================================
// Check-Out Endpoint Tests
// =============================================================================

func (s *AttendanceHandlerSuite) TestCheckOutEndpoint() {
	s.Run("no open session is HTTP 200 with a reason", func() {
		rec := s.post("/attendance/check-out", CheckOutRequest{
			Method: "enrollment", Value: "1002",
		}, nil)
		s.Equal(http.StatusOK, rec.Code)
		resp := testutil.UnmarshalResponse[CheckOutResponse](s.T(), rec)
		s.False(resp.Success)
		s.Equal(string(models.ReasonNoActiveSession), resp.Reason)
	})

	s.Run("closes the open session", func() {
		in := s.checkIn("1002", "R1")
		s.Require().True(in.Success)

		rec := s.post("/attendance/check-out", CheckOutRequest{
			Method: "enrollment", Value: "1002",
		}, nil)
		s.Equal(http.StatusOK, rec.Code)
		resp := testutil.UnmarshalResponse[CheckOutResponse](s.T(), rec)
		s.True(resp.Success)
		s.Equal(in.SessionID, resp.SessionID)
		s.Equal("R1", resp.RoomID)
	})
}

// =============================================================================
// Active Session Endpoint Tests
// =============================================================================

func (s *AttendanceHandlerSuite) TestActiveSessionEndpoint() {
	get := func(query string) (*httptest.ResponseRecorder, ActiveSessionResponse) {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/attendance/active"+query)
		rec := testutil.DoRequest(s.router, req)
		var resp ActiveSessionResponse
		if rec.Code == http.StatusOK {
			resp = *testutil.UnmarshalResponse[ActiveSessionResponse](s.T(), rec)
		}
		return rec, resp
	}

	s.Run("missing query parameters is HTTP 400", func() {
		rec, _ := get("")
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("inactive person reports active=false", func() {
		rec, resp := get("?method=enrollment&value=1001")
		s.Equal(http.StatusOK, rec.Code)
		s.False(resp.Active)
	})

	s.Run("checked-in person reports the room", func() {
		in := s.checkIn("1001", "R1")
		s.Require().True(in.Success)

		rec, resp := get("?method=enrollment&value=1001")
		s.Equal(http.StatusOK, rec.Code)
		s.True(resp.Active)
		s.Equal(in.SessionID, resp.SessionID)
		s.Equal("R1", resp.RoomID)
	})
}
