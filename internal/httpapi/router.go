// Package httpapi wires the chi router: global middleware, the public
// predict/job/model routes (scoped to "predict"/"read_models"), and the
// admin-scoped metrics/debug routes, adapted from the teacher's
// internal/http/router.go.
package httpapi

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rezkam/inference-engine/internal/auth"
	"github.com/rezkam/inference-engine/internal/httpapi/handler"
	mw "github.com/rezkam/inference-engine/internal/httpapi/middleware"
	"github.com/rezkam/inference-engine/internal/ratelimit"
)

// DefaultMaxBodyBytes is the spec's 1,000,000-byte request body cap.
const DefaultMaxBodyBytes = 1_000_000

// Config holds the router's external collaborators and tunables.
type Config struct {
	MaxBodyBytes     int64
	Authenticator    *auth.Authenticator
	Limiter          *ratelimit.Limiter
	RateLimitEnabled bool
	Registry         prometheus.Gatherer
	Routing          handler.RoutingSnapshotter
	Pools            handler.PoolSnapshotter
	Readiness        handler.ReadinessChecker
}

// NewRouter builds the full chi.Mux for the server.
func NewRouter(server *handler.Server, cfg Config) *chi.Mux {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(mw.MaxBodyBytes(cfg.MaxBodyBytes))

	r.Get("/health", handler.Health)
	r.Get("/ready", handler.Ready(cfg.Readiness))

	authMW := mw.NewAuth(cfg.Authenticator)

	r.Group(func(r chi.Router) {
		r.Use(authMW.Validate)
		r.Use(mw.RequireScope("predict"))
		if cfg.RateLimitEnabled {
			r.Use(mw.RateLimit(cfg.Limiter, ratelimit.Window{Route: "/predict", Limit: 10, Period: time.Second}))
		}

		r.Post("/predict", server.Predict)
		r.Post("/predict/batch", server.PredictBatch)
		r.Post("/predict/async", server.PredictAsync)
		r.Post("/predict/async/batch", server.PredictAsyncBatch)
		r.Get("/predict/async/{id}", server.GetJob)
		r.Get("/jobs/{id}", server.GetJob)
		r.Post("/jobs/{id}/cancel", server.CancelJob)
	})

	r.Group(func(r chi.Router) {
		r.Use(authMW.Validate)
		r.Use(mw.RequireScope("read_models"))
		if cfg.RateLimitEnabled {
			r.Use(mw.RateLimit(cfg.Limiter, ratelimit.Window{Route: "/models", Limit: 2, Period: time.Second}))
		}
		r.Get("/models", server.ListModels)
	})

	r.Group(func(r chi.Router) {
		r.Use(authMW.Validate)
		r.Use(mw.RequireScope("admin"))
		if cfg.RateLimitEnabled {
			r.Use(mw.RateLimit(cfg.Limiter, ratelimit.Window{Route: "/metrics", Limit: 1, Period: 10 * time.Second}))
		}
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
		r.Get("/debug/routing", handler.DebugRouting(cfg.Routing))
		r.Get("/debug/pools", handler.DebugPools(cfg.Pools))
	})

	return r
}
