package jobstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/inference-engine/internal/domain"
)

func newTestJob(id string) *domain.Job {
	return &domain.Job{
		ID:           id,
		ModelName:    "echo",
		ModelVersion: "v1",
		Payload:      []byte(`{"x":1}`),
		Device:       "cpu",
		Status:       domain.JobCreated,
		CreatedAt:    time.Now(),
		MaxAttempts:  3,
		Cancellable:  true,
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	job := newTestJob("job-1")
	require.NoError(t, s.Create(ctx, job))

	got, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "echo", got.ModelName)
	assert.Equal(t, domain.JobCreated, got.Status)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestMemoryStore_UpdateResultMarksSucceeded(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newTestJob("job-1")))

	require.NoError(t, s.UpdateResult(ctx, "job-1", []byte(`{"ok":true}`), time.Now()))

	got, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobSucceeded, got.Status)
	assert.NotNil(t, got.FinishedAt)
}

func TestMemoryStore_UpdateResultDoesNotOverwriteTerminal(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newTestJob("job-1")))
	require.NoError(t, s.Cancel(ctx, "job-1", "JobCancelled", "Cancelled", time.Now()))

	require.NoError(t, s.UpdateResult(ctx, "job-1", []byte(`{"ok":true}`), time.Now()))

	got, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobCancelled, got.Status)
}

func TestMemoryStore_CancelForcesOverAnyState(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newTestJob("job-1")))
	require.NoError(t, s.UpdateResult(ctx, "job-1", []byte(`{}`), time.Now()))

	require.NoError(t, s.Cancel(ctx, "job-1", "JobCancelled", "Cancelled", time.Now()))

	got, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobCancelled, got.Status)
}

func TestMemoryStore_UpdateRetryMetadata(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newTestJob("job-1")))

	now := time.Now()
	require.NoError(t, s.UpdateRetryMetadata(ctx, "job-1", 1, now, "initial"))

	got, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.AttemptCount)
	assert.Equal(t, "initial", got.LastRetryReason)
}
