// Package engine implements the Prediction Engine and its Async Façade: the
// shared dispatch loop that resolves routing, selects a pool, fetches a
// pipeline, and runs the bounded retry loop over persisted job state.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rezkam/inference-engine/internal/domain"
	"github.com/rezkam/inference-engine/internal/execpool"
	"github.com/rezkam/inference-engine/internal/jobservice"
	"github.com/rezkam/inference-engine/internal/metrics"
	"github.com/rezkam/inference-engine/internal/registry"
)

// Resolver resolves (model, requestedVersion, identityKey) to a concrete
// version. Satisfied by *routing.Resolver.
type Resolver interface {
	Resolve(model, requestedVersion, identityKey string) (string, error)
}

// Policy resolves (model, version) to an execpool.Pool. Satisfied by
// *execpool.Policy.
type Policy interface {
	Resolve(model, version string) (*execpool.Pool, error)
}

// Registry resolves (model, version) to a registry.Pipeline. Satisfied by
// *registry.Registry.
type Registry interface {
	Get(name, version string) (registry.Pipeline, error)
}

// Engine is the shared orchestrator behind predict/predict_batch (sync) and
// submit/submit_batch (async).
type Engine struct {
	resolver Resolver
	policy   Policy
	registry Registry
	jobs     *jobservice.Service
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Params groups a single dispatch request's caller-supplied overrides. A
// zero Timeout, MaxAttempts or nil budget means "not set"; Cancellable is
// stored as given, so false creates a job that CancelJob leaves untouched.
type Params struct {
	Model            string
	Version          string // explicit version; empty means "resolve it"
	RequestID        string
	Timeout          time.Duration
	MaxAttempts      int
	MaxRuntimeS      *float64
	MaxTotalRuntimeS *float64
	Device           string
	Cancellable      bool
}

// New returns an Engine wired to its collaborators.
func New(resolver Resolver, policy Policy, reg Registry, jobs *jobservice.Service, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		resolver: resolver,
		policy:   policy,
		registry: reg,
		jobs:     jobs,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("github.com/rezkam/inference-engine/internal/engine"),
	}
}

// Predict runs the synchronous single-item path to completion and returns
// the pipeline's result.
func (e *Engine) Predict(ctx context.Context, payload json.RawMessage, p Params) (json.RawMessage, error) {
	jobID, err := e.dispatchCreate(ctx, payload, p)
	if err != nil {
		return nil, err
	}
	return e.runToCompletion(ctx, jobID, p, false)
}

// PredictBatch runs the synchronous batch path to completion.
func (e *Engine) PredictBatch(ctx context.Context, payloads json.RawMessage, p Params) (json.RawMessage, error) {
	jobID, err := e.dispatchCreate(ctx, payloads, p)
	if err != nil {
		return nil, err
	}
	return e.runToCompletion(ctx, jobID, p, true)
}

// Submit creates the job and runs the retry loop on a background goroutine
// (each attempt still goes through the pool), returning the job id
// immediately. No in-memory state is kept; the job's progress is entirely
// observable via Get.
func (e *Engine) Submit(ctx context.Context, payload json.RawMessage, p Params) (string, error) {
	return e.submitAsync(ctx, payload, p, false)
}

// SubmitBatch is Submit's batch counterpart.
func (e *Engine) SubmitBatch(ctx context.Context, payloads json.RawMessage, p Params) (string, error) {
	return e.submitAsync(ctx, payloads, p, true)
}

// Get proxies to the Job Service; it is the only operation the Async Façade
// needs beyond Submit/SubmitBatch.
func (e *Engine) Get(ctx context.Context, id string) (*domain.Job, error) {
	return e.jobs.Get(ctx, id)
}

// Cancel proxies to the Job Service's cancel_job.
func (e *Engine) Cancel(ctx context.Context, id, reason string) error {
	return e.jobs.CancelJob(ctx, id, reason)
}

func (e *Engine) dispatchCreate(ctx context.Context, payload json.RawMessage, p Params) (string, error) {
	version, err := e.resolver.Resolve(p.Model, p.Version, p.RequestID)
	if err != nil {
		return "", &PredictionError{Cause: err}
	}

	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	id, err := e.jobs.CreateJob(ctx, p.Model, version, payload, p.Device, maxAttempts, p.MaxRuntimeS, p.MaxTotalRuntimeS, p.Cancellable)
	if err != nil {
		return "", &PredictionError{Cause: err}
	}
	return id, nil
}

func (e *Engine) submitAsync(ctx context.Context, payload json.RawMessage, p Params, batch bool) (string, error) {
	jobID, err := e.dispatchCreate(ctx, payload, p)
	if err != nil {
		return "", err
	}

	job, err := e.jobs.Get(ctx, jobID)
	if err != nil {
		return "", &PredictionError{Cause: err}
	}

	if _, err := e.policy.Resolve(job.ModelName, job.ModelVersion); err != nil {
		_ = e.jobs.MarkFailed(ctx, jobID, "PoolUnknown", err.Error())
		return jobID, &PredictionError{Cause: err}
	}

	// The driver goroutine itself is unbounded — only the per-attempt work
	// it submits to the pool (inside runToCompletion) competes for a worker
	// slot. Holding a pool permit for the whole retry-loop lifetime would
	// leave a single-worker pool unable to ever admit its own retry attempt.
	bgCtx := context.WithoutCancel(ctx)
	go func() {
		_, _ = e.runToCompletion(bgCtx, jobID, p, batch)
	}()
	return jobID, nil
}

// runToCompletion implements spec §4.6's retry loop for a job that already
// exists and has been resolved to a (model, version).
func (e *Engine) runToCompletion(ctx context.Context, jobID string, p Params, batch bool) (json.RawMessage, error) {
	loopStart := time.Now()

	job, err := e.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, &PredictionError{Cause: err}
	}

	pool, err := e.policy.Resolve(job.ModelName, job.ModelVersion)
	if err != nil {
		_ = e.jobs.MarkFailed(ctx, jobID, "PoolUnknown", err.Error())
		return nil, &PredictionError{Cause: err}
	}

	pipeline, err := e.registry.Get(job.ModelName, job.ModelVersion)
	if err != nil {
		_ = e.jobs.MarkFailed(ctx, jobID, "ModelNotFound", err.Error())
		return nil, &PredictionError{Cause: err}
	}

	var lastErrType, lastErrMsg string

	for {
		job, err = e.jobs.Get(ctx, jobID)
		if err != nil {
			return nil, &PredictionError{Cause: err}
		}
		if jobservice.IsCancelled(job) {
			return nil, &InferenceExecutionError{Message: "cancelled"}
		}
		if job.AttemptCount > 0 && !jobservice.ShouldRetry(job) {
			break
		}

		reason := lastErrType
		if reason == "" {
			reason = "initial"
		}
		if err := e.jobs.RecordAttempt(ctx, jobID, reason); err != nil {
			return nil, &PredictionError{Cause: err}
		}
		if e.metrics != nil {
			e.metrics.Retries.WithLabelValues(job.ModelName, job.ModelVersion, reason).Inc()
		}

		effectiveTimeout := effectiveTimeout(p.Timeout, job.MaxRuntimeS)

		ctx, span := e.tracer.Start(ctx, "engine.attempt", trace.WithAttributes(
			attribute.String("model", job.ModelName),
			attribute.String("version", job.ModelVersion),
			attribute.Int("attempt", job.AttemptCount+1),
		))

		result, attemptErr := pool.Submit(ctx, e.runOnce(jobID, pipeline, batch), effectiveTimeout)
		span.End()

		if attemptErr == nil {
			latency := time.Since(loopStart)
			if e.metrics != nil {
				e.metrics.Latency.WithLabelValues(job.ModelName, job.ModelVersion).Observe(latency.Seconds())
			}
			e.logger.InfoContext(ctx, "inference_success",
				slog.String("request_id", p.RequestID),
				slog.String("job_id", jobID),
				slog.String("model", job.ModelName),
				slog.String("version", job.ModelVersion),
				slog.Float64("latency_ms", float64(latency.Microseconds())/1000.0),
			)
			raw, _ := json.Marshal(result)
			return raw, nil
		}

		// retry.Do with a zero-retry constant backoff isn't used for attempt
		// counting (that stays on persisted job state) — only for its
		// RetryableError marker, to classify ExecutionTimeout as the sole
		// retry-eligible outcome without a chain of errors.Is checks.
		classifiedErr := retry.Do(ctx, retry.WithMaxRetries(0, retry.NewConstant(0)), func(context.Context) error {
			if errors.Is(attemptErr, domain.ErrExecutionTimeout) {
				return retry.RetryableError(attemptErr)
			}
			return attemptErr
		})

		if errors.Is(classifiedErr, domain.ErrExecutionTimeout) {
			if e.metrics != nil {
				e.metrics.Errors.WithLabelValues(job.ModelName, job.ModelVersion, "timeout").Inc()
			}
			job, err = e.jobs.Get(ctx, jobID)
			if err != nil {
				return nil, &PredictionError{Cause: err}
			}
			if jobservice.HasExceededTotalBudget(job, time.Now()) {
				_ = e.jobs.MarkTimeout(ctx, jobID, "total runtime budget exceeded")
				if e.metrics != nil {
					e.metrics.RetryExhausted.WithLabelValues(job.ModelName, job.ModelVersion, "total_budget_exceeded").Inc()
				}
				lastErrType, lastErrMsg = "ExecutionTimeout", "total runtime budget exceeded"
				break
			}
			if !jobservice.ShouldRetry(job) {
				_ = e.jobs.MarkTimeout(ctx, jobID, "retry attempts exhausted")
				if e.metrics != nil {
					e.metrics.RetryExhausted.WithLabelValues(job.ModelName, job.ModelVersion, "max_attempts_exceeded").Inc()
				}
				lastErrType, lastErrMsg = "ExecutionTimeout", "inference execution timed out"
				break
			}
			lastErrType, lastErrMsg = "ExecutionTimeout", "inference execution timed out"
			continue
		}

		// Any other error: transient-only retry policy, do not retry.
		if e.metrics != nil {
			e.metrics.Errors.WithLabelValues(job.ModelName, job.ModelVersion, "inference_error").Inc()
		}
		lastErrType = "PipelineError"
		lastErrMsg = fmt.Sprintf("inference failed for model '%s:%s': %v", job.ModelName, job.ModelVersion, attemptErr)
		break
	}

	// A prior has_exceeded_total_budget branch may have already marked the
	// job TIMEOUT; MarkFailed's conditional update is then a safe no-op.
	_ = e.jobs.MarkFailed(ctx, jobID, lastErrType, lastErrMsg)
	return nil, &InferenceExecutionError{Message: lastErrMsg}
}

// runOnce builds the closure submitted to the pool for one attempt: it
// marks the job RUNNING, invokes the pipeline, and marks SUCCEEDED on
// success. Failure is returned to the caller without touching the job's
// status, so the retry loop can classify it and write the terminal state.
func (e *Engine) runOnce(jobID string, pipeline registry.Pipeline, batch bool) execpool.Func {
	return func(ctx context.Context) (any, error) {
		if err := e.jobs.MarkRunning(ctx, jobID); err != nil {
			return nil, err
		}

		job, err := e.jobs.Get(ctx, jobID)
		if err != nil {
			return nil, err
		}

		var input any
		if err := json.Unmarshal(job.Payload, &input); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPipelineError, err)
		}

		var result any
		var runErr error
		if batch {
			var inputs []any
			if arr, ok := input.([]any); ok {
				inputs = arr
			} else {
				inputs = []any{input}
			}
			result, runErr = pipeline.RunBatch(ctx, inputs)
		} else {
			result, runErr = pipeline.Run(ctx, input)
		}
		if runErr != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPipelineError, runErr)
		}

		raw, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPipelineError, err)
		}
		if err := e.jobs.MarkSucceeded(ctx, jobID, raw); err != nil {
			return nil, err
		}
		return result, nil
	}
}

// effectiveTimeout returns min(requestTimeout, maxRuntimeS) when both are
// set, else whichever is set, else zero (no timeout).
func effectiveTimeout(requestTimeout time.Duration, maxRuntimeS *float64) time.Duration {
	hasRequest := requestTimeout > 0
	hasJob := maxRuntimeS != nil
	switch {
	case hasRequest && hasJob:
		jobTimeout := time.Duration(*maxRuntimeS * float64(time.Second))
		if jobTimeout < requestTimeout {
			return jobTimeout
		}
		return requestTimeout
	case hasRequest:
		return requestTimeout
	case hasJob:
		return time.Duration(*maxRuntimeS * float64(time.Second))
	default:
		return 0
	}
}
