// Package metrics provides the controller's Prometheus collectors: HTTP
// request metrics for the REST surface plus a handful of domain
// counters (policy deployments, allocation runs) exercised by the
// Policy Engine (C4) and Global Controller Supervisor (C6), the same
// way the teacher's infrastructure/metrics package is wired into both
// its HTTP middleware and its business-logic services.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector this process registers.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	ErrorsTotal *prometheus.CounterVec

	PoliciesDeployedTotal *prometheus.CounterVec
	AllocationRunsTotal   prometheus.Counter
	AllocationDuration    prometheus.Histogram
	ActorsActive          *prometheus.GaugeVec
}

// New creates a Metrics instance registered against the default
// registerer, as served by promhttp.Handler at /metrics.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against a
// caller-supplied registerer, so tests can use a private registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "policyctl_http_requests_total",
				Help: "Total number of HTTP requests handled by the REST surface.",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "policyctl_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "policyctl_http_requests_in_flight",
				Help: "Current number of HTTP requests being processed.",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "policyctl_errors_total",
				Help: "Total number of errors by component and operation.",
			},
			[]string{"component", "operation"},
		),
		PoliciesDeployedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "policyctl_policies_deployed_total",
				Help: "Total number of policies deployed, by kind (static/dynamic).",
			},
			[]string{"kind"},
		),
		AllocationRunsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "policyctl_bandwidth_allocation_runs_total",
				Help: "Total number of bandwidth allocation runs (C7 invocations).",
			},
		),
		AllocationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "policyctl_bandwidth_allocation_duration_seconds",
				Help:    "Bandwidth allocation run duration in seconds.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		ActorsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "policyctl_actors_active",
				Help: "Current number of live actors, by kind (rule/metric/controller).",
			},
			[]string{"kind"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RequestsTotal,
			m.RequestDuration,
			m.RequestsInFlight,
			m.ErrorsTotal,
			m.PoliciesDeployedTotal,
			m.AllocationRunsTotal,
			m.AllocationDuration,
			m.ActorsActive,
		)
	}

	return m
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError records one error, tagged by the component/operation that
// produced it.
func (m *Metrics) RecordError(component, operation string) {
	m.ErrorsTotal.WithLabelValues(component, operation).Inc()
}

// RecordPolicyDeployed records one successful policy deployment of the
// given kind ("static" or "dynamic").
func (m *Metrics) RecordPolicyDeployed(kind string) {
	m.PoliciesDeployedTotal.WithLabelValues(kind).Inc()
}

// RecordAllocation records one bandwidth allocation run.
func (m *Metrics) RecordAllocation(duration time.Duration) {
	m.AllocationRunsTotal.Inc()
	m.AllocationDuration.Observe(duration.Seconds())
}

// SetActorsActive reports the current live-actor count for a kind.
func (m *Metrics) SetActorsActive(kind string, count int) {
	m.ActorsActive.WithLabelValues(kind).Set(float64(count))
}

// IncrementInFlight increments the in-flight HTTP request gauge.
func (m *Metrics) IncrementInFlight() {
	m.RequestsInFlight.Inc()
}

// DecrementInFlight decrements the in-flight HTTP request gauge.
func (m *Metrics) DecrementInFlight() {
	m.RequestsInFlight.Dec()
}
