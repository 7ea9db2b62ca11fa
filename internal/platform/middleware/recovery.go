package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	dErrors "rostertrail/pkg/domain-errors"
	"rostertrail/pkg/platform/httputil"
	"rostertrail/pkg/requestcontext"
)

// Recovery converts handler panics into 500 responses instead of tearing
// down the connection.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					ctx := r.Context()
					logger.ErrorContext(ctx, "panic recovered",
						"panic", rec,
						"stack", string(debug.Stack()),
						"path", r.URL.Path,
						"request_id", requestcontext.RequestID(ctx),
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "internal server error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
