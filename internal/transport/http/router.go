// Package httptransport assembles the HTTP surface: the attendance command
// endpoints, the occupancy and timeline reporting surface, and the
// operational endpoints. Handlers stay in their verticals; this package
// only mounts them and layers the shared middleware.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"presence/pkg/platform/httputil"
	"presence/pkg/platform/middleware/auth"
	"presence/pkg/platform/middleware/requestid"
	"presence/pkg/platform/middleware/requesttime"
)

// Registrar is implemented by the vertical handlers.
type Registrar interface {
	Register(r chi.Router)
}

// Options carries the route assembly inputs.
type Options struct {
	Logger *slog.Logger
	// JWTSigningKey guards the reporting surface. Empty disables auth.
	JWTSigningKey string
	// Commands is the attendance surface: check-in, check-out, active.
	Commands Registrar
	// Reporting is the occupancy and timeline surface.
	Reporting []Registrar
	// Health reports readiness of the backing stores.
	Health func() error
}

// NewRouter wires all endpoints.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)

	// Command surface: open to the room devices, no bearer token. Device
	// authentication happens at the network edge.
	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(30 * time.Second))
		opts.Commands.Register(r)
	})

	// Reporting surface: dashboards authenticate with a bearer token when a
	// signing key is configured. No request timeout here: the stream
	// endpoint is deliberately long-lived.
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(opts.JWTSigningKey))
		for _, reg := range opts.Reporting {
			reg.Register(r)
		}
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", healthz(opts))

	return r
}

func healthz(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if opts.Health != nil {
			if err := opts.Health(); err != nil {
				opts.Logger.ErrorContext(r.Context(), "health check failed", "error", err.Error())
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
