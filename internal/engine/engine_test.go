package engine

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/inference-engine/internal/domain"
	"github.com/rezkam/inference-engine/internal/execpool"
	"github.com/rezkam/inference-engine/internal/jobservice"
	"github.com/rezkam/inference-engine/internal/jobstore"
	"github.com/rezkam/inference-engine/internal/metrics"
	"github.com/rezkam/inference-engine/internal/registry"
)

// staticResolver always returns the configured version unchanged; good
// enough to exercise the engine without pulling in the routing package.
type staticResolver struct{ version string }

func (r staticResolver) Resolve(model, requestedVersion, identityKey string) (string, error) {
	if requestedVersion != "" {
		return requestedVersion, nil
	}
	return r.version, nil
}

func newTestEngine(t *testing.T) (*Engine, *jobstore.MemoryStore) {
	t.Helper()
	e, store, _, _ := newTestEngineFull(t, 4)
	return e, store
}

// newTestEngineFull gives callers that need to register custom slow
// pipelines or inspect metrics direct access to the registry and
// metrics registerer backing the engine, with workers controlling the
// cpu pool's concurrency (1 reproduces the single-worker saturation
// scenario the async façade used to deadlock on).
func newTestEngineFull(t *testing.T, workers int) (*Engine, *jobstore.MemoryStore, *registry.Registry, *metrics.Metrics) {
	t.Helper()
	store := jobstore.NewMemoryStore()
	jobs := jobservice.New(store)
	reg := registry.New()

	pool := execpool.New("cpu", workers)
	policy := execpool.NewPolicy(map[string]*execpool.Pool{"cpu": pool}, nil, "cpu")

	m := metrics.New(prometheus.NewRegistry())

	e := New(staticResolver{version: "v1"}, policy, reg, jobs, m, nil)
	return e, store, reg, m
}

// slowThenFastPipeline blocks until ctx is cancelled (simulating an
// execution that exceeds its per-attempt timeout) for the first
// failUntil attempts, then returns immediately on the ones after that.
type slowThenFastPipeline struct {
	registry.BasePipeline
	calls     atomic.Int64
	failUntil int64
}

func newSlowThenFastPipeline(failUntil int64) *slowThenFastPipeline {
	p := &slowThenFastPipeline{failUntil: failUntil}
	p.Runner = p.run
	return p
}

func (p *slowThenFastPipeline) run(ctx context.Context, input any) (any, error) {
	n := p.calls.Add(1)
	if n <= p.failUntil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return input, nil
}

// alwaysSlowPipeline blocks until ctx is cancelled on every call.
type alwaysSlowPipeline struct {
	registry.BasePipeline
}

func newAlwaysSlowPipeline() *alwaysSlowPipeline {
	p := &alwaysSlowPipeline{}
	p.Runner = func(ctx context.Context, input any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return p
}

func TestPredict_Success(t *testing.T) {
	e, _ := newTestEngine(t)

	result, err := e.Predict(context.Background(), []byte(`"hello"`), Params{
		Model: "echo", MaxAttempts: 1, Device: "cpu", Cancellable: true,
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(result, &decoded))
	assert.Equal(t, "hello", decoded["echo"])
}

func TestPredict_ModelNotFound(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Predict(context.Background(), []byte(`"hi"`), Params{
		Model: "nonexistent", MaxAttempts: 1, Device: "cpu", Cancellable: true,
	})
	require.Error(t, err)

	var predErr *PredictionError
	assert.ErrorAs(t, err, &predErr)
}

func TestSubmit_ReturnsJobIDImmediately(t *testing.T) {
	e, store := newTestEngine(t)

	jobID, err := e.Submit(context.Background(), []byte(`"hi"`), Params{
		Model: "echo", MaxAttempts: 1, Device: "cpu", Cancellable: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	require.Eventually(t, func() bool {
		job, err := store.Get(context.Background(), jobID)
		return err == nil && job.Status.Terminal()
	}, time.Second, 10*time.Millisecond)
}

func TestCancel_PreventsFurtherRetries(t *testing.T) {
	e, _ := newTestEngine(t)

	jobID, err := e.dispatchCreate(context.Background(), []byte(`"hi"`), Params{
		Model: "echo", MaxAttempts: 5, Device: "cpu", Cancellable: true,
	})
	require.NoError(t, err)

	require.NoError(t, e.Cancel(context.Background(), jobID, "test"))

	_, err = e.runToCompletion(context.Background(), jobID, Params{Model: "echo"}, false)
	require.Error(t, err)

	var execErr *InferenceExecutionError
	assert.ErrorAs(t, err, &execErr)
	assert.Equal(t, "cancelled", execErr.Message)
}

func TestRunToCompletion_RetriesOnTimeoutThenSucceeds(t *testing.T) {
	e, store, reg, m := newTestEngineFull(t, 4)
	reg.Register("slow", "v1", func() (registry.Pipeline, error) { return newSlowThenFastPipeline(2), nil })

	jobID, err := e.dispatchCreate(context.Background(), []byte(`"hi"`), Params{
		Model: "slow", Version: "v1", MaxAttempts: 5, Device: "cpu", Cancellable: true,
	})
	require.NoError(t, err)

	result, err := e.runToCompletion(context.Background(), jobID, Params{
		Model: "slow", Version: "v1", Timeout: 20 * time.Millisecond,
	}, false)
	require.NoError(t, err)
	assert.Equal(t, `"hi"`, string(result))

	job, err := store.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobSucceeded, job.Status)
	assert.Equal(t, 3, job.AttemptCount)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Retries.WithLabelValues("slow", "v1", "ExecutionTimeout")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.RetryExhausted.WithLabelValues("slow", "v1", "max_attempts_exceeded")))
}

// TestRunToCompletion_RetryExhaustedMarksTimeout exercises scenario 5 from
// the testable-properties list: a pipeline that always exceeds its
// per-attempt timeout exhausts max_attempts, ends the job TIMEOUT (not
// FAILED), and counts exactly attempt_count-1 timeout-reason retries.
func TestRunToCompletion_RetryExhaustedMarksTimeout(t *testing.T) {
	e, store, reg, m := newTestEngineFull(t, 4)
	reg.Register("slow", "v1", func() (registry.Pipeline, error) { return newAlwaysSlowPipeline(), nil })

	jobID, err := e.dispatchCreate(context.Background(), []byte(`"hi"`), Params{
		Model: "slow", Version: "v1", MaxAttempts: 3, Device: "cpu", Cancellable: true,
	})
	require.NoError(t, err)

	_, err = e.runToCompletion(context.Background(), jobID, Params{
		Model: "slow", Version: "v1", Timeout: 10 * time.Millisecond,
	}, false)
	require.Error(t, err)
	var execErr *InferenceExecutionError
	assert.ErrorAs(t, err, &execErr)

	job, err := store.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobTimeout, job.Status)
	assert.Equal(t, 3, job.AttemptCount)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Retries.WithLabelValues("slow", "v1", "ExecutionTimeout")),
		"attempts 2 and 3 are recorded with reason ExecutionTimeout")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RetryExhausted.WithLabelValues("slow", "v1", "max_attempts_exceeded")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.RetryExhausted.WithLabelValues("slow", "v1", "total_budget_exceeded")))
}

func TestRunToCompletion_TotalBudgetExceededMarksTimeout(t *testing.T) {
	e, store, reg, m := newTestEngineFull(t, 4)
	reg.Register("slow", "v1", func() (registry.Pipeline, error) { return newAlwaysSlowPipeline(), nil })

	budget := 0.01 // seconds; smaller than the per-attempt timeout below
	jobID, err := e.dispatchCreate(context.Background(), []byte(`"hi"`), Params{
		Model: "slow", Version: "v1", MaxAttempts: 50, MaxTotalRuntimeS: &budget, Device: "cpu", Cancellable: true,
	})
	require.NoError(t, err)

	_, err = e.runToCompletion(context.Background(), jobID, Params{
		Model: "slow", Version: "v1", Timeout: 50 * time.Millisecond, MaxTotalRuntimeS: &budget,
	}, false)
	require.Error(t, err)

	job, err := store.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobTimeout, job.Status)
	assert.Equal(t, 1, job.AttemptCount, "budget is exceeded after the first attempt, no further retries should run")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RetryExhausted.WithLabelValues("slow", "v1", "total_budget_exceeded")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.RetryExhausted.WithLabelValues("slow", "v1", "max_attempts_exceeded")))
}

// TestSubmit_SingleWorkerPoolDoesNotSaturate guards the async façade's
// pool-sharing fix: the background driver goroutine must not hold a
// semaphore permit for its whole retry-loop lifetime, or a single-worker
// pool would never admit its own per-attempt Submit call and every async
// job would end ExecutorSaturated even with no other load in the system.
func TestSubmit_SingleWorkerPoolDoesNotSaturate(t *testing.T) {
	e, store, _, _ := newTestEngineFull(t, 1)

	jobID, err := e.Submit(context.Background(), []byte(`"hi"`), Params{
		Model: "echo", MaxAttempts: 1, Device: "cpu", Cancellable: true,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, err := store.Get(context.Background(), jobID)
		return err == nil && job.Status.Terminal()
	}, time.Second, 10*time.Millisecond)

	job, err := store.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobSucceeded, job.Status)
	assert.NotContains(t, job.ErrorType, "Saturated")
}

func TestEffectiveTimeout(t *testing.T) {
	budget := 5.0
	assert.Equal(t, 5*time.Second, effectiveTimeout(10*time.Second, &budget))
	assert.Equal(t, 10*time.Second, effectiveTimeout(10*time.Second, nil))

	jobOnly := 3.0
	assert.Equal(t, 3*time.Second, effectiveTimeout(0, &jobOnly))
	assert.Equal(t, time.Duration(0), effectiveTimeout(0, nil))
}
