// Package routing resolves a requested (model, version) pair against a
// routing table loaded from a YAML file, with static, canary, and A/B
// strategies, and hot-reloads that table when the file changes on disk.
package routing

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/rezkam/inference-engine/internal/domain"
)

// fileRoute is the on-disk shape of one routing table entry.
type fileRoute struct {
	Strategy       string          `yaml:"strategy"`
	Version        string          `yaml:"version"`
	PrimaryVersion string          `yaml:"primary_version"`
	CanaryVersion  string          `yaml:"canary_version"`
	CanaryPercent  int             `yaml:"canary_percent"`
	Variants       []fileVariant   `yaml:"variants"`
}

type fileVariant struct {
	Version string `yaml:"version"`
	Weight  int    `yaml:"weight"`
}

type fileTable map[string]fileRoute

// Resolver resolves a model to a concrete version per the configured
// routing strategy. The table is loaded once at construction and reloaded
// whenever the backing file changes.
type Resolver struct {
	mu    sync.RWMutex
	table domain.RoutingTable
	path  string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewResolver loads the routing table from path and starts watching it for
// changes. Call Close to stop watching.
func NewResolver(path string) (*Resolver, error) {
	r := &Resolver{path: path, done: make(chan struct{})}
	if err := r.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("routing: creating file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("routing: watching %s: %w", path, err)
	}
	r.watcher = watcher
	go r.watch()
	return r, nil
}

func (r *Resolver) watch() {
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				_ = r.reload()
			}
		case _, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
		case <-r.done:
			return
		}
	}
}

// Snapshot returns a copy of the current routing table, for the admin-scoped
// debug endpoint that dumps routing configuration.
func (r *Resolver) Snapshot() domain.RoutingTable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make(domain.RoutingTable, len(r.table))
	for k, v := range r.table {
		cp[k] = v
	}
	return cp
}

// Close stops the background file watcher.
func (r *Resolver) Close() error {
	if r.watcher == nil {
		return nil
	}
	close(r.done)
	return r.watcher.Close()
}

func (r *Resolver) reload() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("routing: reading %s: %w", r.path, err)
	}

	var ft fileTable
	if err := yaml.Unmarshal(raw, &ft); err != nil {
		return fmt.Errorf("routing: parsing %s: %w", r.path, err)
	}

	table := make(domain.RoutingTable, len(ft))
	for model, fr := range ft {
		rc := domain.RouteConfig{
			Model:          model,
			Kind:           domain.RouteKind(fr.Strategy),
			Version:        fr.Version,
			PrimaryVersion: fr.PrimaryVersion,
			CanaryVersion:  fr.CanaryVersion,
			CanaryPercent:  fr.CanaryPercent,
		}
		for _, v := range fr.Variants {
			rc.Variants = append(rc.Variants, domain.ABVariant{Version: v.Version, Weight: v.Weight})
		}
		table[model] = rc
	}

	r.mu.Lock()
	r.table = table
	r.mu.Unlock()
	return nil
}

// Resolve implements spec §4.1: explicit version always wins; otherwise the
// model's configured route determines the version.
func (r *Resolver) Resolve(model, requestedVersion, identityKey string) (version string, err error) {
	if requestedVersion != "" {
		return requestedVersion, nil
	}

	r.mu.RLock()
	rc, ok := r.table[model]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrRoutingUnknown, model)
	}

	switch rc.Kind {
	case domain.RouteStatic:
		return rc.Version, nil

	case domain.RouteCanary:
		draw := rand.Intn(100) + 1 // uniform integer in [1,100]
		if draw <= rc.CanaryPercent {
			return rc.CanaryVersion, nil
		}
		return rc.PrimaryVersion, nil

	case domain.RouteAB:
		if identityKey == "" {
			return "", fmt.Errorf("%w: model %s", domain.ErrRoutingNeedsIdentity, model)
		}
		return abBucket(rc.Variants, identityKey), nil

	default:
		return "", fmt.Errorf("%w: model %s has unknown strategy %q", domain.ErrRoutingUnknown, model, rc.Kind)
	}
}

// abBucket hashes key to a stable value in [0,100) and walks variants in
// insertion order, accumulating weights until the bucket falls below the
// running sum. If weights don't sum to 100, the final variant absorbs the
// remainder.
func abBucket(variants []domain.ABVariant, key string) string {
	sum := sha256.Sum256([]byte(key))
	bucket := int(binary.BigEndian.Uint64(sum[:8]) % 100)

	running := 0
	for i, v := range variants {
		if i == len(variants)-1 {
			return v.Version
		}
		running += v.Weight
		if bucket < running {
			return v.Version
		}
	}
	return ""
}
