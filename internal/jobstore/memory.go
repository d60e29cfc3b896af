package jobstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rezkam/inference-engine/internal/domain"
)

// MemoryStore is a mutex-guarded map implementation of Store, used in tests
// and for single-process deployments that don't need Postgres.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]domain.Job
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]domain.Job)}
}

// Ready always succeeds; an in-process map has no external dependency to
// check.
func (s *MemoryStore) Ready(context.Context) error { return nil }

func (s *MemoryStore) Create(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	cp := job
	return &cp, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status domain.JobStatus, startedAt, finishedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	if job.Status.Terminal() {
		return nil
	}
	job.Status = status
	if startedAt != nil {
		job.StartedAt = startedAt
	}
	if finishedAt != nil {
		job.FinishedAt = finishedAt
	}
	s.jobs[id] = job
	return nil
}

func (s *MemoryStore) UpdateResult(_ context.Context, id string, result []byte, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	if job.Status.Terminal() {
		return nil
	}
	job.Result = result
	job.FinishedAt = &finishedAt
	job.Status = domain.JobSucceeded
	s.jobs[id] = job
	return nil
}

func (s *MemoryStore) UpdateError(_ context.Context, id string, errType, errMsg string, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	if job.Status.Terminal() {
		return nil
	}
	job.ErrorType = errType
	job.ErrorMessage = errMsg
	job.FinishedAt = &finishedAt
	job.Status = domain.JobFailed
	s.jobs[id] = job
	return nil
}

func (s *MemoryStore) UpdateTimeout(_ context.Context, id string, errType, errMsg string, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	if job.Status.Terminal() {
		return nil
	}
	job.ErrorType = errType
	job.ErrorMessage = errMsg
	job.FinishedAt = &finishedAt
	job.Status = domain.JobTimeout
	s.jobs[id] = job
	return nil
}

func (s *MemoryStore) UpdateRetryMetadata(_ context.Context, id string, attemptCount int, lastAttemptAt time.Time, lastRetryReason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	job.AttemptCount = attemptCount
	job.LastAttemptAt = &lastAttemptAt
	job.LastRetryReason = lastRetryReason
	s.jobs[id] = job
	return nil
}

// Cancel forces CANCELLED regardless of current status, matching the
// dedicated unconditional cancel path the store contract requires.
func (s *MemoryStore) Cancel(_ context.Context, id string, errType, errMsg string, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	job.ErrorType = errType
	job.ErrorMessage = errMsg
	job.FinishedAt = &finishedAt
	job.Status = domain.JobCancelled
	s.jobs[id] = job
	return nil
}
