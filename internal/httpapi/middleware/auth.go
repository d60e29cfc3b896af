package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rezkam/inference-engine/internal/auth"
	"github.com/rezkam/inference-engine/internal/domain"
	"github.com/rezkam/inference-engine/internal/httpapi/response"
)

type identityKey struct{}

// IdentityFromContext returns the authenticated Identity stored by Auth, or
// ok=false if the request never passed through it.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(auth.Identity)
	return identity, ok
}

// Auth validates the X-API-Key header against an Authenticator.
type Auth struct {
	authenticator *auth.Authenticator
}

// NewAuth returns an Auth middleware backed by authenticator.
func NewAuth(authenticator *auth.Authenticator) *Auth {
	return &Auth{authenticator: authenticator}
}

// Validate rejects requests with a missing or unknown X-API-Key, and
// otherwise stores the resolved Identity on the request context.
func (a *Auth) Validate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")

		identity, err := a.authenticator.Authenticate(r.Context(), apiKey)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				slog.WarnContext(r.Context(), "authentication failed",
					"path", r.URL.Path, "method", r.Method)
			} else {
				slog.ErrorContext(r.Context(), "authentication error",
					"path", r.URL.Path, "method", r.Method, "error", err)
			}
			response.Unauthorized(w, "invalid or missing API key")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireScope rejects requests whose Identity lacks scope. Must run after
// Auth.Validate.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok || !identity.HasScope(scope) {
				response.Forbidden(w, "missing required scope: "+scope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
