// Package httpapi assembles the HTTP surface: global middleware, the history
// read API and the operational endpoints.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rostertrail/internal/history/handler"
	"rostertrail/internal/platform/metrics"
	"rostertrail/internal/platform/middleware"
)

// NewRouter wires the middleware chain and mounts all endpoints. Order
// matters: recovery outermost, then request ID so every log line can be
// correlated, then metadata and time capture before anything that records.
func NewRouter(h *handler.Handler, logger *slog.Logger, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger, m))
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.RequestTime)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	h.Register(r)
	return r
}
