// Package jobservice implements the pure business logic layered over the
// Job Store: lifecycle transitions, retry eligibility, and budget checks.
package jobservice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rezkam/inference-engine/internal/domain"
	"github.com/rezkam/inference-engine/internal/jobstore"
)

// Clock abstracts time.Now so tests can control it; defaults to time.Now.
type Clock func() time.Time

// Service is the job lifecycle layer consumed by the Prediction Engine.
type Service struct {
	store jobstore.Store
	now   Clock
}

// Option configures a Service at construction.
type Option func(*Service)

// WithClock overrides the Service's clock; intended for tests.
func WithClock(clock Clock) Option {
	return func(s *Service) { s.now = clock }
}

// New returns a Service backed by store, using the real wall clock unless
// overridden by WithClock.
func New(store jobstore.Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob inserts the job as CREATED then immediately transitions it to
// PENDING, returning its id.
func (s *Service) CreateJob(ctx context.Context, modelName, modelVersion string, payload json.RawMessage, device string, maxAttempts int, maxRuntimeS, maxTotalRuntimeS *float64, cancellable bool) (string, error) {
	id := uuid.NewString()
	job := &domain.Job{
		ID:               id,
		ModelName:        modelName,
		ModelVersion:     modelVersion,
		Payload:          payload,
		Device:           device,
		Status:           domain.JobCreated,
		CreatedAt:        s.now(),
		MaxAttempts:      maxAttempts,
		MaxRuntimeS:      maxRuntimeS,
		MaxTotalRuntimeS: maxTotalRuntimeS,
		Cancellable:      cancellable,
	}
	if err := s.store.Create(ctx, job); err != nil {
		return "", fmt.Errorf("jobservice: creating job: %w", err)
	}
	if err := s.store.UpdateStatus(ctx, id, domain.JobPending, nil, nil); err != nil {
		return "", fmt.Errorf("jobservice: transitioning job %s to pending: %w", id, err)
	}
	return id, nil
}

// Get fetches the current job state.
func (s *Service) Get(ctx context.Context, id string) (*domain.Job, error) {
	return s.store.Get(ctx, id)
}

// MarkRunning sets status RUNNING and started_at=now. Idempotent: a second
// call on an already-RUNNING job is not an error.
func (s *Service) MarkRunning(ctx context.Context, id string) error {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status == domain.JobRunning {
		return nil
	}
	now := s.now()
	return s.store.UpdateStatus(ctx, id, domain.JobRunning, &now, nil)
}

// MarkSucceeded stores result and marks SUCCEEDED with finished_at=now.
func (s *Service) MarkSucceeded(ctx context.Context, id string, result json.RawMessage) error {
	return s.store.UpdateResult(ctx, id, result, s.now())
}

// MarkFailed marks FAILED with error fields and finished_at=now.
func (s *Service) MarkFailed(ctx context.Context, id, errType, errMsg string) error {
	return s.store.UpdateError(ctx, id, errType, errMsg, s.now())
}

// MarkTimeout marks TIMEOUT with error fields (for uniformity with
// MarkFailed) and finished_at=now.
func (s *Service) MarkTimeout(ctx context.Context, id, msg string) error {
	return s.store.UpdateTimeout(ctx, id, "ExecutionTimeout", msg, s.now())
}

// CancelJob is a no-op if the job is not cancellable or already terminal;
// otherwise it writes JobCancelled error fields and transitions to
// CANCELLED.
func (s *Service) CancelJob(ctx context.Context, id, reason string) error {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !job.Cancellable || job.Status.Terminal() {
		return nil
	}
	msg := "Cancelled"
	if reason != "" {
		msg = fmt.Sprintf("Cancelled: %s", reason)
	}
	return s.store.Cancel(ctx, id, "JobCancelled", msg, s.now())
}

// RecordAttempt increments attempt_count and writes
// last_attempt_at=now, last_retry_reason=reason.
func (s *Service) RecordAttempt(ctx context.Context, id, reason string) error {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.store.UpdateRetryMetadata(ctx, id, job.AttemptCount+1, s.now(), reason)
}

// ShouldRetry reports whether job is eligible for another attempt:
// attempt_count < max_attempts, not cancelled, and not terminal.
func ShouldRetry(job *domain.Job) bool {
	return job.AttemptCount < job.MaxAttempts && !job.IsCancelled() && !job.Status.Terminal()
}

// HasExceededTotalBudget reports whether max_total_runtime_s (if set) has
// elapsed since created_at, measured against now.
func HasExceededTotalBudget(job *domain.Job, now time.Time) bool {
	return job.HasExceededTotalBudget(now)
}

// IsCancelled reports whether job's status is CANCELLED.
func IsCancelled(job *domain.Job) bool {
	return job.IsCancelled()
}
