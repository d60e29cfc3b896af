// Package config loads the process's environment-variable configuration
// using the reflection-based internal/env loader, relying on its
// `default:"..."` struct tags for every field that needs a non-zero
// fallback rather than a separate post-load defaulting pass.
package config

import (
	"fmt"

	"github.com/rezkam/inference-engine/internal/env"
)

// Config holds every environment-derived setting the server bootstrap needs.
type Config struct {
	// HTTP server
	HTTPPort         string `env:"HTTP_PORT" default:"8080"`
	ShutdownTimeoutS int    `env:"SHUTDOWN_TIMEOUT_S" default:"10"`
	Env              string `env:"APP_ENV" default:"dev"`

	// Job store: "memory" or "postgres"
	JobStoreType string `env:"JOB_STORE_TYPE" default:"memory"`
	PostgresURL  string `env:"POSTGRES_URL"`

	// Routing
	RoutingTableFile string `env:"ROUTING_TABLE_FILE" default:"routing.yaml"`

	// Execution pools
	DefaultPool    string `env:"DEFAULT_POOL" default:"cpu"`
	CPUPoolWorkers int    `env:"CPU_POOL_WORKERS" default:"4"`
	GPUPoolWorkers int    `env:"GPU_POOL_WORKERS" default:"1"`

	// Rate limiting
	RedisAddr        string `env:"REDIS_ADDR"`
	RateLimitEnabled bool   `env:"RATE_LIMIT_ENABLED"`

	// Auth
	APIKeysFile string `env:"API_KEYS_FILE" default:"apikeys.yaml"`

	// Observability
	OTelEnabled bool   `env:"OTEL_ENABLED" default:"true"`
	ServiceName string `env:"SERVICE_NAME" default:"inference-engine"`
}

// Load parses environment variables into a Config, then validates the
// combinations env.Load's field-by-field tags can't express on their own.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.JobStoreType {
	case "memory":
	case "postgres":
		if c.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required when JOB_STORE_TYPE is 'postgres'")
		}
	default:
		return fmt.Errorf("unknown JOB_STORE_TYPE: %s", c.JobStoreType)
	}
	if c.RateLimitEnabled && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when RATE_LIMIT_ENABLED is true")
	}
	return nil
}
