// Package auth implements the X-API-Key authenticator: a static, file-backed
// key table mapping each key to an Identity and its scopes. Grounded on the
// teacher's internal/application/auth.Authenticator, simplified from its
// Postgres-backed short/long-secret split and last-used-at worker since key
// issuance and rotation tracking are out of scope here.
package auth

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"sync"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"

	"github.com/rezkam/inference-engine/internal/domain"
)

// Identity is what a valid API key resolves to: the tenant it belongs to
// and the scopes it is allowed to exercise.
type Identity struct {
	APIKey   string
	TenantID string
	Scopes   []string
}

// HasScope reports whether scope is among the identity's granted scopes.
func (i Identity) HasScope(scope string) bool {
	for _, s := range i.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

type fileKey struct {
	Key      string   `yaml:"key"`
	TenantID string   `yaml:"tenant_id"`
	Scopes   []string `yaml:"scopes"`
}

type fileKeys struct {
	Keys []fileKey `yaml:"keys"`
}

// Authenticator resolves an X-API-Key header value to an Identity. The
// lookup table is keyed by each key's BLAKE2b-256 hash, mirroring the
// teacher's hashSecret helper; each stored Identity still carries its
// plaintext APIKey.
type Authenticator struct {
	mu     sync.RWMutex
	byHash map[string]Identity
}

func hashKey(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Load reads a YAML API-key file at path and returns a ready Authenticator.
func Load(path string) (*Authenticator, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading api keys file: %w", err)
	}

	var parsed fileKeys
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parsing api keys file: %w", err)
	}

	byHash := make(map[string]Identity, len(parsed.Keys))
	for _, k := range parsed.Keys {
		byHash[hashKey(k.Key)] = Identity{APIKey: k.Key, TenantID: k.TenantID, Scopes: k.Scopes}
	}
	return &Authenticator{byHash: byHash}, nil
}

// Authenticate resolves apiKey to its Identity, or domain.ErrUnauthorized
// if the key is empty or unknown.
func (a *Authenticator) Authenticate(_ context.Context, apiKey string) (Identity, error) {
	if apiKey == "" {
		return Identity{}, domain.ErrUnauthorized
	}

	a.mu.RLock()
	identity, ok := a.byHash[hashKey(apiKey)]
	a.mu.RUnlock()
	if !ok {
		return Identity{}, domain.ErrUnauthorized
	}
	return identity, nil
}

// Reload atomically swaps in keys freshly read from path, allowing key
// rotation without a process restart.
func (a *Authenticator) Reload(path string) error {
	fresh, err := Load(path)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.byHash = fresh.byHash
	a.mu.Unlock()
	return nil
}
