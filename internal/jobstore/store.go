// Package jobstore persists Job records through their full lifecycle. The
// interface is owned here, by the consumer, not by whichever storage
// backend implements it.
package jobstore

import (
	"context"
	"time"

	"github.com/rezkam/inference-engine/internal/domain"
)

// Store is the persistence contract the Job Service depends on. Every
// implementation must be safe for concurrent use and must make each field
// update atomic, with the compound updates below atomic as a group.
type Store interface {
	Create(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id string) (*domain.Job, error)

	// UpdateStatus sets status and, when non-nil, startedAt/finishedAt. A
	// job already in a terminal status is left unchanged.
	UpdateStatus(ctx context.Context, id string, status domain.JobStatus, startedAt, finishedAt *time.Time) error

	// UpdateResult stores result and marks the job SUCCEEDED.
	UpdateResult(ctx context.Context, id string, result []byte, finishedAt time.Time) error

	// UpdateError stores errType/errMsg and marks the job FAILED.
	UpdateError(ctx context.Context, id string, errType, errMsg string, finishedAt time.Time) error

	// UpdateTimeout stores errType/errMsg and marks the job TIMEOUT.
	UpdateTimeout(ctx context.Context, id string, errType, errMsg string, finishedAt time.Time) error

	// UpdateRetryMetadata increments attempt bookkeeping.
	UpdateRetryMetadata(ctx context.Context, id string, attemptCount int, lastAttemptAt time.Time, lastRetryReason string) error

	// Cancel unconditionally forces the job to CANCELLED, bypassing the
	// terminal-state guard other updates honor.
	Cancel(ctx context.Context, id string, errType, errMsg string, finishedAt time.Time) error
}
