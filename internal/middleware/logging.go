package middleware

import (
	"net/http"

	"github.com/felixge/httpsnoop"

	"faceemotion/internal/logger"
)

// LoggingMiddleware writes one access log entry per request with status,
// latency and response size.
func LoggingMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)

			entry := log.WithFields(logger.Fields{
				"request_id":    GetRequestID(r.Context()),
				"method":        r.Method,
				"path":          r.URL.Path,
				"status":        m.Code,
				"latency_ms":    m.Duration.Milliseconds(),
				"ip":            clientIP(r, false),
				"user_agent":    r.UserAgent(),
				"response_size": m.Written,
			})

			if m.Code >= 500 {
				entry.Error("Server error")
			} else if m.Code >= 400 {
				entry.Warn("Client error")
			} else {
				entry.Info("Success")
			}
		})
	}
}
