package middleware

import (
	"fmt"
	"net/http"
	"strings"

	ua "github.com/mssola/useragent"

	"rostertrail/pkg/requestcontext"
)

// ClientMetadata extracts the client network origin and a normalized client
// agent string and stores them in the context. Provenance recorded in audit
// entries comes from here, so this runs before any handler.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIPFromRequest(r)
		agent := normalizeUserAgent(r.Header.Get("User-Agent"))

		ctx := requestcontext.WithClientMetadata(r.Context(), ip, agent)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// normalizeUserAgent reduces a raw User-Agent header to "Browser version
// (OS)". Raw headers are high-cardinality and can carry identifying noise;
// the normalized form is what gets persisted.
func normalizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	parsed := ua.New(raw)
	name, version := parsed.Browser()
	if name == "" {
		return raw
	}
	if os := parsed.OS(); os != "" {
		return fmt.Sprintf("%s %s (%s)", name, version, os)
	}
	return fmt.Sprintf("%s %s", name, version)
}

// clientIPFromRequest extracts the real client IP, handling proxies and load
// balancers.
func clientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs; the first is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port" ("[::1]:port" for IPv6).
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}
	return "unknown"
}
