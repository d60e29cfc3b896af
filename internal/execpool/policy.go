package execpool

import (
	"fmt"
	"sync"

	"github.com/rezkam/inference-engine/internal/domain"
)

// Policy maps a resolved (model, version) onto one of a fixed set of named
// Pools, falling back to a configured default when no explicit mapping
// exists. An explicitly configured target that was never registered fails
// fast at dispatch time with PoolUnknown.
type Policy struct {
	mu       sync.RWMutex
	pools    map[string]*Pool
	mapping  map[string]string // "model:version" -> pool name
	fallback string
}

// NewPolicy returns a Policy backed by pools, routing unmapped keys to the
// pool named fallback. fallback must be a key of pools.
func NewPolicy(pools map[string]*Pool, mapping map[string]string, fallback string) *Policy {
	m := make(map[string]string, len(mapping))
	for k, v := range mapping {
		m[k] = v
	}
	return &Policy{pools: pools, mapping: m, fallback: fallback}
}

// Resolve returns the Pool assigned to (model, version).
func (p *Policy) Resolve(model, version string) (*Pool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	key := fmt.Sprintf("%s:%s", model, version)
	target, ok := p.mapping[key]
	if !ok {
		target = p.fallback
	}

	pool, ok := p.pools[target]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPoolUnknown, target)
	}
	return pool, nil
}

// SetMapping replaces the routing entry for (model, version) at runtime,
// without a restart.
func (p *Policy) SetMapping(model, version, pool string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mapping[fmt.Sprintf("%s:%s", model, version)] = pool
}

// Snapshot returns a copy of the current model:version -> pool mapping plus
// the default pool name, for the /debug/pools route.
func (p *Policy) Snapshot() (mapping map[string]string, fallback string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]string, len(p.mapping))
	for k, v := range p.mapping {
		out[k] = v
	}
	return out, p.fallback
}
