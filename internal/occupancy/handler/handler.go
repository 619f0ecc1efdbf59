// Package handler exposes the occupancy reporting surface: pull snapshots
// and the SSE push feed. Clients must tolerate both modes; a dropped stream
// resynchronizes from the snapshot endpoints.
package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"presence/internal/occupancy"
	"presence/internal/realtime"
	id "presence/pkg/domain"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/httputil"
	"presence/pkg/requestcontext"
)

// Handler handles the occupancy endpoints.
type Handler struct {
	logger     *slog.Logger
	aggregator *occupancy.Aggregator
	hub        *realtime.Hub
}

// New creates an occupancy Handler. The hub may be nil; the stream endpoint
// then reports the push feed as unavailable and clients poll.
func New(aggregator *occupancy.Aggregator, hub *realtime.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		logger:     logger,
		aggregator: aggregator,
		hub:        hub,
	}
}

// Register registers the occupancy routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/occupancy/rooms/{roomID}", h.handleRoomSnapshot)
	r.Get("/occupancy/dashboard", h.handleDashboard)
	r.Get("/occupancy/stream", h.handleStream)
}

func (h *Handler) handleRoomSnapshot(w http.ResponseWriter, r *http.Request) {
	roomID := id.RoomID(chi.URLParam(r, "roomID"))
	if roomID.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "room id is required"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.aggregator.Snapshot(roomID))
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.aggregator.Totals())
}

// handleStream serves the SSE push feed. The first frame is a snapshot so a
// reconnecting client is consistent before the first mutation arrives; a
// client whose connection closes mid-stream must reconnect, there is no
// backlog replay.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.hub == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "push feed not available, use the snapshot endpoints"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "streaming unsupported by this connection"))
		return
	}

	var sub *realtime.Subscription
	var first realtime.Update
	if roomParam := r.URL.Query().Get("room_id"); roomParam != "" {
		roomID := id.RoomID(roomParam)
		sub = h.hub.SubscribeRoom(roomID)
		first = realtime.Update{Room: h.aggregator.Snapshot(roomID), Totals: h.aggregator.Totals()}
	} else {
		sub = h.hub.SubscribeDashboard()
		first = realtime.Update{Totals: h.aggregator.Totals()}
	}
	defer sub.Cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeFrame(w, "snapshot", first); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case update, open := <-sub.Updates():
			if !open {
				// Dropped for falling behind; the client reconnects and
				// resyncs from the snapshot frame.
				h.logger.InfoContext(ctx, "stream subscriber dropped",
					"request_id", requestcontext.RequestID(ctx),
				)
				return
			}
			if err := writeFrame(w, "occupancy", update); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, event string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}
