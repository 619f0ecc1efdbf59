// Package httputil centralizes JSON encoding and domain error translation for
// HTTP handlers so every endpoint speaks the same envelope.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "presence/pkg/domain-errors"
)

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON error envelope. Internal errors deliberately omit the
// description so infrastructure details never leak to clients.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError translates a coded domain error into an HTTP response.
// Non-coded errors are treated as internal.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := errorBody{Error: string(code)}
	if code != dErrors.CodeInternal {
		if coded, ok := err.(*dErrors.Error); ok {
			body.ErrorDescription = coded.Message
		} else {
			body.ErrorDescription = err.Error()
		}
	}
	WriteJSON(w, ToHTTPStatus(code), body)
}

// ToHTTPStatus maps domain error codes onto HTTP status codes.
func ToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeBadRequest, dErrors.CodeInvariantViolation:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Validator lets request types run their own structural checks after decode.
type Validator interface {
	Validate() error
}

// Decode parses the request body into T and runs its Validate hook when
// implemented. On failure it writes the error response and returns false.
func Decode[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if logger != nil {
			logger.DebugContext(r.Context(), "request decode failed", "error", err)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return req, false
	}
	if v, ok := any(&req).(Validator); ok {
		if err := v.Validate(); err != nil {
			WriteError(w, err)
			return req, false
		}
	}
	return req, true
}
