// Package metrics exposes Prometheus counters for the authentication flows.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the service counters. A nil *Metrics is valid and records
// nothing, which keeps wiring optional in tests.
type Metrics struct {
	Operations          *prometheus.CounterVec
	RateLimitRejections *prometheus.CounterVec
	RevocationsPurged   prometheus.Counter
	BackgroundFailures  *prometheus.CounterVec
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "member_auth_operations_total",
				Help: "Authentication operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		RateLimitRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "member_auth_rate_limit_rejections_total",
				Help: "Requests rejected by a rate limiter, by scope",
			},
			[]string{"scope"},
		),
		RevocationsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "member_auth_revocations_purged_total",
			Help: "Expired revocation entries removed by the sweeper",
		}),
		BackgroundFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "member_auth_background_task_failures_total",
				Help: "Background notification tasks that returned an error",
			},
			[]string{"task"},
		),
	}
	reg.MustRegister(m.Operations, m.RateLimitRejections, m.RevocationsPurged, m.BackgroundFailures)
	return m
}

// Operation records the outcome of one flow operation.
func (m *Metrics) Operation(op, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
}

// RateLimited records a rejection by the limiter identified by scope.
func (m *Metrics) RateLimited(scope string) {
	if m == nil {
		return
	}
	m.RateLimitRejections.WithLabelValues(scope).Inc()
}

func (m *Metrics) Purged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.RevocationsPurged.Add(float64(n))
}

func (m *Metrics) BackgroundFailure(task string) {
	if m == nil {
		return
	}
	m.BackgroundFailures.WithLabelValues(task).Inc()
}
