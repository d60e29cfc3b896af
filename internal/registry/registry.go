package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rezkam/inference-engine/internal/domain"
)

// modelKey identifies one (model, version) pair.
type modelKey struct {
	name    string
	version string
}

// Builder constructs a Pipeline for one (model, version) pair. Builders run
// at most once per key; their result is cached for the registry's lifetime.
type Builder func() (Pipeline, error)

// Registry resolves (model, version) -> Pipeline, building each pipeline
// lazily on first use and caching it afterward. A single mutex serializes
// first-build so two concurrent callers for the same unbuilt key don't
// double-construct it; already-cached lookups only take a read lock.
type Registry struct {
	mu          sync.RWMutex
	definitions map[modelKey]Builder
	pipelines   map[modelKey]Pipeline
}

// New returns a Registry pre-populated with the built-in echo pipelines.
func New() *Registry {
	r := &Registry{
		definitions: make(map[modelKey]Builder),
		pipelines:   make(map[modelKey]Pipeline),
	}
	r.Register("echo", "v1", func() (Pipeline, error) { return echoV1(), nil })
	r.Register("echo", "v2", func() (Pipeline, error) { return echoV2(), nil })
	return r
}

// Register adds (or replaces) the builder for (name, version). Registering
// a key that already has a cached pipeline drops the cache entry so the next
// Get rebuilds it.
func (r *Registry) Register(name, version string, build Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := modelKey{name, version}
	r.definitions[key] = build
	delete(r.pipelines, key)
}

// Get resolves (name, version) to a Pipeline, building and caching it on
// first use. Returns domain.ErrModelNotFound if no builder is registered.
func (r *Registry) Get(name, version string) (Pipeline, error) {
	key := modelKey{name, version}

	r.mu.RLock()
	if p, ok := r.pipelines[key]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	build, ok := r.definitions[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s", domain.ErrModelNotFound, name, version)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pipelines[key]; ok {
		return p, nil
	}
	p, err := build()
	if err != nil {
		return nil, fmt.Errorf("building pipeline %s:%s: %w", name, version, err)
	}
	r.pipelines[key] = p
	return p, nil
}

// ListModels returns every registered (name, version) pair, sorted for
// stable output (used by the /models HTTP route).
func (r *Registry) ListModels() []ModelRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	refs := make([]ModelRef, 0, len(r.definitions))
	for k := range r.definitions {
		refs = append(refs, ModelRef{Name: k.name, Version: k.version})
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Name != refs[j].Name {
			return refs[i].Name < refs[j].Name
		}
		return refs[i].Version < refs[j].Version
	})
	return refs
}

// ModelRef is one (name, version) pair exposed by ListModels.
type ModelRef struct {
	Name    string
	Version string
}
