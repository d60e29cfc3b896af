package middleware

import (
	"log/slog"
	"net/http"

	"github.com/rezkam/inference-engine/internal/httpapi/response"
	"github.com/rezkam/inference-engine/internal/ratelimit"
)

// RateLimit enforces window against the caller's X-API-Key header value
// (falling back to RemoteAddr when the header is absent).
func RateLimit(limiter *ratelimit.Limiter, window ratelimit.Window) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.RemoteAddr
			}

			allowed, err := limiter.Allow(r.Context(), key, window)
			if err != nil {
				slog.WarnContext(r.Context(), "rate limiter error, failing open", "error", err, "route", window.Route)
			}
			if !allowed {
				response.TooManyRequests(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
