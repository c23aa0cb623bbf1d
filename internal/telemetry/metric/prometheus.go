package metric

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sesspool"

// Replenish attempt outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeDuplicate = "duplicate"
)

// Registry holds all application metrics. A nil *Registry is valid and
// records nothing, so components can run without metrics wired.
type Registry struct {
	registry *prometheus.Registry

	// Pool
	ReplenishRuns     *prometheus.CounterVec
	ReplenishAttempts *prometheus.CounterVec
	ReplenishDuration *prometheus.HistogramVec
	Invalidations     *prometheus.CounterVec

	// Outbound client
	UpstreamRequests *prometheus.CounterVec
	TokenRotations   *prometheus.CounterVec

	// Admin API
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Persistence
	SnapshotWriteDuration prometheus.Histogram
	SnapshotWriteErrors   prometheus.Counter
}

// NewRegistry creates a registry with Go runtime and process collectors
// plus every application metric.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		ReplenishRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replenish_runs_total",
			Help:      "Replenishment runs by origin and result (completed, skipped).",
		}, []string{"origin", "result"}),
		ReplenishAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replenish_attempts_total",
			Help:      "Token fetch attempts by origin and outcome.",
		}, []string{"origin", "outcome"}),
		ReplenishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "replenish_duration_seconds",
			Help:      "Wall time of completed replenishment runs.",
			Buckets:   []float64{1, 5, 10, 20, 30, 45, 60, 90},
		}, []string{"origin"}),
		Invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidations_total",
			Help:      "Credentials removed from the pool after rejection.",
		}, []string{"origin"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Outbound requests by origin and status class.",
		}, []string{"origin", "class"}),
		TokenRotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_rotations_total",
			Help:      "401 rotations by origin and result (replayed, no_credential).",
		}, []string{"origin", "result"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Admin API requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Admin API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		SnapshotWriteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_write_duration_seconds",
			Help:      "Time spent persisting the pool.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}),
		SnapshotWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_write_errors_total",
			Help:      "Failed pool persistence attempts.",
		}),
	}

	reg.MustRegister(
		r.ReplenishRuns,
		r.ReplenishAttempts,
		r.ReplenishDuration,
		r.Invalidations,
		r.UpstreamRequests,
		r.TokenRotations,
		r.RequestsTotal,
		r.RequestDuration,
		r.SnapshotWriteDuration,
		r.SnapshotWriteErrors,
	)
	return r
}

// Handler returns an HTTP handler exposing r.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registerer exposes the underlying registry for external collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// Gatherer exposes the underlying registry for inspection.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// RecordReplenishRun counts a finished or skipped run.
func (r *Registry) RecordReplenishRun(origin, result string, seconds float64) {
	if r == nil {
		return
	}
	r.ReplenishRuns.WithLabelValues(origin, result).Inc()
	if result == "completed" {
		r.ReplenishDuration.WithLabelValues(origin).Observe(seconds)
	}
}

// RecordReplenishAttempt counts one fetch attempt.
func (r *Registry) RecordReplenishAttempt(origin, outcome string) {
	if r == nil {
		return
	}
	r.ReplenishAttempts.WithLabelValues(origin, outcome).Inc()
}

// IncInvalidation counts a credential removed after rejection.
func (r *Registry) IncInvalidation(origin string) {
	if r == nil {
		return
	}
	r.Invalidations.WithLabelValues(origin).Inc()
}

// RecordUpstream counts an outbound response by status class ("2xx", ...),
// or "error" when status is 0.
func (r *Registry) RecordUpstream(origin string, status int) {
	if r == nil {
		return
	}
	r.UpstreamRequests.WithLabelValues(origin, StatusClass(status)).Inc()
}

// RecordRotation counts a 401 rotation.
func (r *Registry) RecordRotation(origin, result string) {
	if r == nil {
		return
	}
	r.TokenRotations.WithLabelValues(origin, result).Inc()
}

// RecordRequest counts an admin API request.
func (r *Registry) RecordRequest(method, route string, status int) {
	if r == nil {
		return
	}
	r.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// ObserveRequestDuration records admin API latency.
func (r *Registry) ObserveRequestDuration(method, route string, seconds float64) {
	if r == nil {
		return
	}
	r.RequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// ObserveSnapshotWrite records one persistence attempt.
func (r *Registry) ObserveSnapshotWrite(seconds float64, err error) {
	if r == nil {
		return
	}
	r.SnapshotWriteDuration.Observe(seconds)
	if err != nil {
		r.SnapshotWriteErrors.Inc()
	}
}

// StatusClass maps an HTTP status to its class label.
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
