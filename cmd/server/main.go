package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/rezkam/inference-engine/internal/auth"
	"github.com/rezkam/inference-engine/internal/config"
	"github.com/rezkam/inference-engine/internal/engine"
	"github.com/rezkam/inference-engine/internal/execpool"
	"github.com/rezkam/inference-engine/internal/httpapi"
	"github.com/rezkam/inference-engine/internal/httpapi/handler"
	"github.com/rezkam/inference-engine/internal/jobservice"
	"github.com/rezkam/inference-engine/internal/jobstore"
	"github.com/rezkam/inference-engine/internal/metrics"
	"github.com/rezkam/inference-engine/internal/observability"
	"github.com/rezkam/inference-engine/internal/ratelimit"
	"github.com/rezkam/inference-engine/internal/registry"
	"github.com/rezkam/inference-engine/internal/routing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	lp, logger, err := observability.InitLogger(ctx, cfg.ServiceName, cfg.Env, cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer shutdownWithTimeout(lp.Shutdown, "logger provider")
	slog.SetDefault(logger)

	tp, err := observability.InitTracerProvider(ctx, cfg.ServiceName, cfg.Env, cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init tracer provider: %w", err)
	}
	defer shutdownWithTimeout(tp.Shutdown, "tracer provider")

	mp, err := observability.InitMeterProvider(ctx, cfg.ServiceName, cfg.Env, cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init meter provider: %w", err)
	}
	defer shutdownWithTimeout(mp.Shutdown, "meter provider")

	slog.InfoContext(ctx, "starting inference engine", "env", cfg.Env)

	store, err := newJobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to init job store: %w", err)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	resolver, err := routing.NewResolver(cfg.RoutingTableFile)
	if err != nil {
		return fmt.Errorf("failed to load routing table: %w", err)
	}
	defer resolver.Close()

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	cpuPool := execpool.New("cpu", cfg.CPUPoolWorkers, execpool.WithGauges(m))
	gpuPool := execpool.New("gpu", cfg.GPUPoolWorkers, execpool.WithGauges(m))
	policy := execpool.NewPolicy(
		map[string]*execpool.Pool{"cpu": cpuPool, "gpu": gpuPool},
		map[string]string{},
		cfg.DefaultPool,
	)

	reg := registry.New()
	jobs := jobservice.New(store)
	eng := engine.New(resolver, policy, reg, jobs, m, logger)

	authenticator, err := auth.Load(cfg.APIKeysFile)
	if err != nil {
		return fmt.Errorf("failed to load API keys: %w", err)
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimitEnabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		limiter = ratelimit.New(rdb)
	}

	server := handler.NewServer(eng, reg)
	router := httpapi.NewRouter(server, httpapi.Config{
		MaxBodyBytes:     httpapi.DefaultMaxBodyBytes,
		Authenticator:    authenticator,
		Limiter:          limiter,
		RateLimitEnabled: cfg.RateLimitEnabled,
		Registry:         promReg,
		Routing:          resolver,
		Pools:            policy,
		Readiness:        store,
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errResult := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "http server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errResult <- fmt.Errorf("failed to serve http: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.InfoContext(ctx, "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutS)*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.WarnContext(shutdownCtx, "http server shutdown timed out, forcing close", "error", err)
			httpSrv.Close()
		}
		return nil
	case err := <-errResult:
		return err
	}
}

// jobStore is the subset of jobstore.Store this bootstrap needs, plus the
// readiness check consumed by the /ready handler.
type jobStore interface {
	jobstore.Store
	Ready(ctx context.Context) error
}

func newJobStore(ctx context.Context, cfg *config.Config) (jobStore, error) {
	switch cfg.JobStoreType {
	case "postgres":
		return jobstore.NewPostgresStore(ctx, jobstore.DBConfig{DSN: cfg.PostgresURL})
	case "memory":
		return jobstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown job store type %q", cfg.JobStoreType)
	}
}

func shutdownWithTimeout(shutdown func(context.Context) error, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to shut down "+name, "error", err)
	}
}
