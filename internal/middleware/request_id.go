package middleware

import (
	"context"
	"crypto/rand"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
)

const RequestIDKey = "X-Request-ID"

type contextKey string

const requestIDContextKey contextKey = "request_id"

// NewULIDFromTimestamp returns a monotonic ULID for t.
func NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// RequestIDMiddleware keeps the caller's X-Request-ID or assigns a new ULID,
// echoes it in the response and stores it in the request context.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDKey)

		if requestID == "" {
			requestID, _ = NewULIDFromTimestamp(time.Now())
		}

		w.Header().Set(RequestIDKey, requestID)
		ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the id stored by RequestIDMiddleware, or "unknown".
func GetRequestID(ctx context.Context) string {
	requestID, ok := ctx.Value(requestIDContextKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}
