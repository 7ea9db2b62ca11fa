package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"rostertrail/pkg/requestcontext"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns each request an identifier for log correlation. An
// inbound header is trusted if present so IDs survive proxy hops.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)

		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
