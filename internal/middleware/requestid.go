// Package middleware holds the cross-cutting HTTP middleware of the API:
// request IDs, authentication, role checks, rate limiting and idempotency.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/scrumix/scrumix/internal/logger"
)

const headerRequestID = "X-Request-ID"

const maxRequestIDLen = 128

// RequestID tags each request with an ID, reusing the client's X-Request-ID
// when it is safe to log, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

// validRequestID accepts short IDs made of letters, digits and -_.:
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range []byte(id) {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}
