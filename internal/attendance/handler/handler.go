// Package handler exposes the attendance command surface over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"log/slog"

	"presence/internal/attendance/models"
	"presence/internal/identify"
	id "presence/pkg/domain"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/httputil"
	"presence/pkg/requestcontext"
)

// Service defines the attendance operations the handler drives.
type Service interface {
	CheckIn(ctx context.Context, personID id.PersonID, roomID id.RoomID, idemKey string) (models.CheckInResult, error)
	CheckOut(ctx context.Context, personID id.PersonID, idemKey string) (models.CheckOutResult, error)
	ActiveSession(ctx context.Context, personID id.PersonID) (*models.ActiveSession, error)
}

// Identifier resolves a presented credential to a person.
type Identifier interface {
	Resolve(ctx context.Context, ident identify.Identification) (id.PersonID, error)
}

// Handler handles the attendance endpoints.
type Handler struct {
	logger     *slog.Logger
	attendance Service
	identifier Identifier
}

// New creates an attendance Handler.
func New(attendance Service, identifier Identifier, logger *slog.Logger) *Handler {
	return &Handler{
		logger:     logger,
		attendance: attendance,
		identifier: identifier,
	}
}

// Register registers the attendance routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/attendance/check-in", h.handleCheckIn)
	r.Post("/attendance/check-out", h.handleCheckOut)
	r.Get("/attendance/active", h.handleActiveSession)
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[CheckInRequest](w, r, h.logger)
	if !ok {
		return
	}

	personID, err := h.resolve(ctx, req.Method, req.Value)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	key := idempotencyKey(r, req.IdempotencyKey)
	result, err := h.attendance.CheckIn(ctx, personID, id.RoomID(req.RoomID), key)
	if err != nil {
		h.logger.ErrorContext(ctx, "check-in failed",
			"request_id", requestcontext.RequestID(ctx),
			"room_id", req.RoomID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toCheckInResponse(result))
}

func (h *Handler) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[CheckOutRequest](w, r, h.logger)
	if !ok {
		return
	}

	personID, err := h.resolve(ctx, req.Method, req.Value)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	key := idempotencyKey(r, req.IdempotencyKey)
	result, err := h.attendance.CheckOut(ctx, personID, key)
	if err != nil {
		h.logger.ErrorContext(ctx, "check-out failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toCheckOutResponse(result))
}

func (h *Handler) handleActiveSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	method := r.URL.Query().Get("method")
	value := r.URL.Query().Get("value")
	if method == "" || value == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "method and value query parameters are required"))
		return
	}

	personID, err := h.resolve(ctx, method, value)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	active, err := h.attendance.ActiveSession(ctx, personID)
	if err != nil {
		h.logger.ErrorContext(ctx, "active session lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	resp := ActiveSessionResponse{}
	if active != nil {
		resp.Active = true
		resp.SessionID = active.SessionID.String()
		resp.RoomID = active.RoomID.String()
		resp.CheckInTime = active.CheckInTime
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) resolve(ctx context.Context, method, value string) (id.PersonID, error) {
	m, err := identify.ParseMethod(method)
	if err != nil {
		return "", err
	}
	return h.identifier.Resolve(ctx, identify.Identification{Method: m, Value: value})
}

// idempotencyKey prefers the Idempotency-Key header over the body field.
// Empty means the service derives one from the command itself.
func idempotencyKey(r *http.Request, bodyKey string) string {
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		return key
	}
	return bodyKey
}
