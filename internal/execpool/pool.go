// Package execpool implements the bounded, per-device worker pools that run
// pipeline closures on behalf of the engine, plus the policy that maps a
// resolved (model, version) onto one of those pools.
package execpool

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/rezkam/inference-engine/internal/domain"
)

// Func is a zero-argument unit of work submitted to a Pool. It returns the
// closure's result or an error raised inside the pipeline.
type Func func(ctx context.Context) (any, error)

// Gauges are the three counters a Pool updates; Metrics implements this with
// Prometheus instruments, tests can use a no-op or recording stub.
type Gauges interface {
	InflightInc(device string)
	InflightDec(device string)
	TimeoutInc(device string)
}

type noopGauges struct{}

func (noopGauges) InflightInc(string) {}
func (noopGauges) InflightDec(string) {}
func (noopGauges) TimeoutInc(string)  {}

type outcome struct {
	result any
	err    error
}

// job is one unit of dispatched work handed to a pool's worker goroutines
// over the internal, unbuffered jobs channel.
type job struct {
	fn       Func
	timeout  time.Duration
	parent   context.Context
	resultCh chan outcome
}

// Pool is a bounded group of workers tagged with a device label, used both
// for metrics and for capacity isolation between e.g. CPU and GPU work. A
// fixed errgroup of worker goroutines pulls jobs off an internal channel;
// a counting semaphore gates admission ahead of that channel so Submit can
// fail fast with ExecutorSaturated instead of queuing unboundedly.
type Pool struct {
	device     string
	maxWorkers int64

	sem     *semaphore.Weighted
	breaker *gobreaker.CircuitBreaker
	gauges  Gauges

	jobs    chan job
	workers *errgroup.Group
}

// Option configures a Pool at construction.
type Option func(*Pool)

// WithGauges attaches the inflight/timeout instrumentation a Pool updates.
func WithGauges(g Gauges) Option {
	return func(p *Pool) { p.gauges = g }
}

// WithBreakerSettings overrides the default gobreaker settings (named after
// the pool's device) used for admission fast-fail.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(p *Pool) { p.breaker = gobreaker.NewCircuitBreaker(st) }
}

// New returns a Pool bounding concurrent work for device to maxWorkers, and
// starts maxWorkers worker goroutines under an errgroup.
func New(device string, maxWorkers int, opts ...Option) *Pool {
	p := &Pool{
		device:     device,
		maxWorkers: int64(maxWorkers),
		sem:        semaphore.NewWeighted(int64(maxWorkers)),
		gauges:     noopGauges{},
		jobs:       make(chan job),
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: device,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		Timeout: 30 * time.Second,
	})
	for _, opt := range opts {
		opt(p)
	}

	g := new(errgroup.Group)
	for i := 0; i < maxWorkers; i++ {
		g.Go(func() error {
			for j := range p.jobs {
				p.runJob(j)
			}
			return nil
		})
	}
	p.workers = g

	return p
}

// Device returns the pool's device label.
func (p *Pool) Device() string { return p.device }

// runJob executes one job on a worker goroutine. It races fn's completion
// against the per-attempt timeout; on timeout fn's goroutine is left
// running to completion and its eventual result discarded — cooperative
// cancellation only, matching the documented pool contract.
func (p *Pool) runJob(j job) {
	defer p.sem.Release(1)

	p.gauges.InflightInc(p.device)
	defer p.gauges.InflightDec(p.device)

	runCtx := j.parent
	if j.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(j.parent, j.timeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		result, err := j.fn(runCtx)
		done <- outcome{result, err}
	}()

	select {
	case out := <-done:
		j.resultCh <- out
	case <-runCtx.Done():
		p.gauges.TimeoutInc(p.device)
		j.resultCh <- outcome{nil, fmt.Errorf("%w", domain.ErrExecutionTimeout)}
	}
}

// Submit blocks the caller until fn returns, the timeout elapses, or
// capacity is permanently unavailable.
func (p *Pool) Submit(ctx context.Context, fn Func, timeout time.Duration) (any, error) {
	if _, err := p.breaker.Execute(func() (any, error) {
		if !p.sem.TryAcquire(1) {
			return nil, domain.ErrExecutorSaturated
		}
		return nil, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrExecutorSaturated, p.device)
	}

	resultCh := make(chan outcome, 1)
	select {
	case p.jobs <- job{fn: fn, timeout: timeout, parent: ctx, resultCh: resultCh}:
	case <-ctx.Done():
		p.sem.Release(1)
		return nil, ctx.Err()
	}

	out := <-resultCh
	return out.result, out.err
}

// SubmitBatch is semantically identical to Submit; batching semantics
// belong to the pipeline's RunBatch, not the pool.
func (p *Pool) SubmitBatch(ctx context.Context, fn Func, timeout time.Duration) (any, error) {
	return p.Submit(ctx, fn, timeout)
}
