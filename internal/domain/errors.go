package domain

import "errors"

// Sentinel errors shared by the routing resolver, registry, execution pool
// and job service. The HTTP layer maps these to status codes; the engine
// maps them to the retry policy (only ExecutionTimeout is retry-eligible).
var (
	// ErrRoutingUnknown indicates no routing configuration exists for a model.
	ErrRoutingUnknown = errors.New("no routing configuration for model")

	// ErrRoutingNeedsIdentity indicates an A/B route was resolved without an
	// identity key to bucket on.
	ErrRoutingNeedsIdentity = errors.New("a/b routing requires an identity key")

	// ErrModelNotFound indicates the registry has no pipeline for (name, version).
	ErrModelNotFound = errors.New("model not found")

	// ErrExecutionTimeout indicates a pool-level per-attempt timeout. This is
	// the only error class eligible for retry.
	ErrExecutionTimeout = errors.New("execution timed out")

	// ErrExecutorSaturated indicates a pool could not accept work.
	ErrExecutorSaturated = errors.New("executor saturated")

	// ErrPipelineError wraps any error raised inside a pipeline. Not retried.
	ErrPipelineError = errors.New("pipeline error")

	// ErrJobCancelled indicates the job transitioned to CANCELLED.
	ErrJobCancelled = errors.New("job cancelled")

	// ErrJobNotFound indicates a job store lookup miss.
	ErrJobNotFound = errors.New("job not found")

	// ErrPoolUnknown indicates the execution policy named a pool that was
	// never registered.
	ErrPoolUnknown = errors.New("unknown execution pool")

	// ErrUnauthorized indicates a missing or invalid API key.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the identity lacks a required scope.
	ErrForbidden = errors.New("missing required scope")
)
