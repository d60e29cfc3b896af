// Package metrics exposes the Prometheus instruments the engine updates,
// with names and labels mirroring the original reference implementation's
// metric surface so existing dashboards keep working unchanged.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the registered instruments. The engine updates Errors,
// Latency, Retries and RetryExhausted, and the pool the executor gauges;
// Requests is registered but nothing in this module increments it.
type Metrics struct {
	Requests       *prometheus.CounterVec
	Errors         *prometheus.CounterVec
	Latency        *prometheus.HistogramVec
	Retries        *prometheus.CounterVec
	RetryExhausted *prometheus.CounterVec

	ExecutorInflight *prometheus.GaugeVec
	ExecutorTimeouts *prometheus.CounterVec
}

// New registers and returns the full instrument set against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inference_requests_total",
			Help: "Total inference requests",
		}, []string{"model", "version"}),

		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inference_errors_total",
			Help: "Total inference errors",
		}, []string{"model", "version", "error_type"}),

		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inference_latency_seconds",
			Help:    "Inference latency",
			Buckets: []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"model", "version"}),

		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inference_retries_total",
			Help: "Total inference retry attempts",
		}, []string{"model", "version", "reason"}),

		RetryExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inference_retry_exhausted_total",
			Help: "Total jobs where retry budget was exhausted",
		}, []string{"model", "version", "reason"}),

		ExecutorInflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "executor_inflight",
			Help: "Number of in-flight inference executions",
		}, []string{"device"}),

		ExecutorTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "executor_timeouts_total",
			Help: "Total executor timeouts",
		}, []string{"device"}),
	}

	reg.MustRegister(
		m.Requests, m.Errors, m.Latency, m.Retries, m.RetryExhausted,
		m.ExecutorInflight, m.ExecutorTimeouts,
	)
	return m
}

// InflightInc implements execpool.Gauges.
func (m *Metrics) InflightInc(device string) { m.ExecutorInflight.WithLabelValues(device).Inc() }

// InflightDec implements execpool.Gauges.
func (m *Metrics) InflightDec(device string) { m.ExecutorInflight.WithLabelValues(device).Dec() }

// TimeoutInc implements execpool.Gauges.
func (m *Metrics) TimeoutInc(device string) { m.ExecutorTimeouts.WithLabelValues(device).Inc() }
