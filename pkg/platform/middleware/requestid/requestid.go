// Package requestid assigns a correlation ID to every request.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"presence/pkg/requestcontext"
)

// Header carries the correlation ID on requests and responses.
const Header = "X-Request-Id"

// Middleware propagates the caller-supplied request ID or generates one, and
// echoes it on the response so clients can correlate retries.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(Header, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
