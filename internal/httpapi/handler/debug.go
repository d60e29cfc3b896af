package handler

import (
	"net/http"

	"github.com/rezkam/inference-engine/internal/domain"
	"github.com/rezkam/inference-engine/internal/httpapi/response"
)

// RoutingSnapshotter exposes the routing table for /debug/routing.
type RoutingSnapshotter interface {
	Snapshot() domain.RoutingTable
}

// PoolSnapshotter exposes the policy's pool mapping for /debug/pools.
type PoolSnapshotter interface {
	Snapshot() (mapping map[string]string, fallback string)
}

// DebugRouting handles GET /debug/routing (admin scope): dumps the
// in-memory routing table as loaded from the last successful file reload.
func DebugRouting(resolver RoutingSnapshotter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, resolver.Snapshot())
	}
}

// DebugPoolsResponse is the body of GET /debug/pools.
type DebugPoolsResponse struct {
	Mapping  map[string]string `json:"mapping"`
	Fallback string            `json:"fallback"`
}

// DebugPools handles GET /debug/pools (admin scope): dumps the execution
// policy's current model:version -> pool mapping.
func DebugPools(policy PoolSnapshotter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mapping, fallback := policy.Snapshot()
		response.OK(w, DebugPoolsResponse{Mapping: mapping, Fallback: fallback})
	}
}
