package handler

import (
	"context"
	"net/http"

	"github.com/rezkam/inference-engine/internal/httpapi/response"
)

// ReadinessChecker reports whether a dependency can currently serve
// traffic; *jobstore.MemoryStore and *jobstore.PostgresStore both
// implement it.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Health handles GET /health: a liveness probe that never depends on
// external state, so a healthy-but-not-yet-ready process still reports ok.
func Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{"status": "ok"})
}

// Ready handles GET /ready: readiness gates on whether the job store
// connection is usable, distinct from the liveness check above.
func Ready(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := checker.Ready(r.Context()); err != nil {
			response.Error(w, "NOT_READY", err.Error(), http.StatusServiceUnavailable)
			return
		}
		response.OK(w, map[string]string{"status": "ready"})
	}
}
