package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rostertrail/internal/platform/metrics"
	"rostertrail/pkg/requestcontext"
)

// statusWriter captures the response status for logging and metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Logging emits one structured line per request and feeds the HTTP metrics.
// m may be nil.
func Logging(logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			elapsed := time.Since(start)
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.ObserveRequest(r.Method, route, sw.status, elapsed)

			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"route", route,
				"status", sw.status,
				"duration_ms", elapsed.Milliseconds(),
				"request_id", requestcontext.RequestID(r.Context()),
			)
		})
	}
}
