package middleware

import (
	"net/http"
	"time"

	"rostertrail/pkg/requestcontext"
)

// RequestTime captures the current time at the start of the request so every
// operation within it observes the same "now". Audit timestamps depend on
// this for consistency across the entries of one request.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
