// Package domain holds the entities and sentinel errors shared across the
// dispatch and job-lifecycle engine.
package domain

import (
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle state of a Job. Transitions form a DAG:
// CREATED -> PENDING -> RUNNING -> {SUCCEEDED | FAILED | CANCELLED | TIMEOUT}
// with PENDING -> CANCELLED also valid. No transition leaves a terminal state.
type JobStatus string

const (
	JobCreated   JobStatus = "created"
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
	JobTimeout   JobStatus = "timeout"
)

// Terminal reports whether s is one of the four terminal statuses.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobCancelled, JobTimeout:
		return true
	default:
		return false
	}
}

// Job is the persistent record of one logical prediction submission,
// synchronous or asynchronous, single or batch.
type Job struct {
	ID            string
	ModelName     string
	ModelVersion  string
	Payload       json.RawMessage
	Device        string
	Status        JobStatus
	CreatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
	Result        json.RawMessage
	ErrorType     string
	ErrorMessage  string
	AttemptCount  int
	MaxAttempts   int
	LastAttemptAt *time.Time
	LastRetryReason string
	MaxRuntimeS        *float64
	MaxTotalRuntimeS   *float64
	Cancellable   bool
}

// HasExceededTotalBudget reports whether the job's max_total_runtime_s (if
// set) has elapsed since created_at, measured against now.
func (j *Job) HasExceededTotalBudget(now time.Time) bool {
	if j.MaxTotalRuntimeS == nil {
		return false
	}
	return now.Sub(j.CreatedAt) > time.Duration(*j.MaxTotalRuntimeS*float64(time.Second))
}

// IsCancelled reports whether the job's terminal status is CANCELLED.
func (j *Job) IsCancelled() bool {
	return j.Status == JobCancelled
}
