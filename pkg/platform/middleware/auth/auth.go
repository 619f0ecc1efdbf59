// Package auth provides bearer-token middleware for the reporting surface.
//
// Token issuance is owned by an external identity provider; this middleware
// only verifies the signature and expiry of presented tokens and exposes the
// subject through requestcontext.
package auth

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/httputil"
	"presence/pkg/requestcontext"
)

// Middleware verifies HS256-signed bearer tokens against signingKey.
// An empty signing key disables verification, which keeps local development
// and tests free of token plumbing.
func Middleware(signingKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if signingKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected signing method")
				}
				return []byte(signingKey), nil
			})
			if err != nil || !token.Valid {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
				return
			}

			ctx := requestcontext.WithSubject(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
