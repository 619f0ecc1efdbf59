// Package handler exposes the historical timeline query surface.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"presence/internal/timeline"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/httputil"
	"presence/pkg/requestcontext"
)

// maxRangeDays bounds a single query so a typo'd range cannot produce a
// multi-year zero-filled response.
const maxRangeDays = 366

// Handler handles the timeline endpoints.
type Handler struct {
	logger *slog.Logger
	store  timeline.Store
}

// New creates a timeline Handler.
func New(store timeline.Store, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, store: store}
}

// Register registers the timeline routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/timeline/{scope}/{scopeID}", h.handleQuery)
}

// QueryResponse is the zero-filled daily series for one scope.
type QueryResponse struct {
	Scope   string           `json:"scope"`
	ScopeID string           `json:"scope_id"`
	From    string           `json:"from"`
	To      string           `json:"to"`
	Entries []timeline.Entry `json:"entries"`
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	scope, err := timeline.ParseScope(chi.URLParam(r, "scope"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	scopeID := chi.URLParam(r, "scopeID")
	if scopeID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "scope id is required"))
		return
	}

	from, err := parseDate(r.URL.Query().Get("from"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := parseDate(r.URL.Query().Get("to"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if to.Before(from) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "to must not precede from"))
		return
	}
	if to.Sub(from) > maxRangeDays*24*time.Hour {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "date range too wide"))
		return
	}

	entries, err := h.store.Query(ctx, scope, scopeID, from, to)
	if err != nil {
		h.logger.ErrorContext(ctx, "timeline query failed",
			"request_id", requestcontext.RequestID(ctx),
			"scope", scope,
			"scope_id", scopeID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "timeline query failed"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, QueryResponse{
		Scope:   string(scope),
		ScopeID: scopeID,
		From:    timeline.Day(from).Format(timeline.DateLayout),
		To:      timeline.Day(to).Format(timeline.DateLayout),
		Entries: entries,
	})
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "from and to query parameters are required")
	}
	t, err := time.ParseInLocation(timeline.DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "dates must be formatted "+timeline.DateLayout)
	}
	return t, nil
}
