// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/myjournal/myjournal/internal/access"
	"github.com/myjournal/myjournal/internal/auth"
)

// Metrics contains custom Prometheus metrics for MyJournal.
type Metrics struct {
	AuthAttemptsTotal    *prometheus.CounterVec
	KDFDuration          prometheus.Histogram
	AccessDecisionsTotal *prometheus.CounterVec
	SessionsSweptTotal   prometheus.Counter
	RequestsTotal        *prometheus.CounterVec
}

// NewMetrics creates and registers custom MyJournal metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "myjournal_auth_attempts_total",
				Help: "Total number of authentication attempts by scheme and outcome",
			},
			[]string{"scheme", "outcome"},
		),
		KDFDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "myjournal_kdf_duration_seconds",
			Help:    "Histogram of password key derivation latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		AccessDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "myjournal_access_decisions_total",
				Help: "Total number of authorization decisions by resource, operation and decision",
			},
			[]string{"resource", "operation", "decision"},
		),
		SessionsSweptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "myjournal_sessions_swept_total",
			Help: "Total number of expired sessions removed by the janitor",
		}),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "myjournal_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
	}

	reg.MustRegister(m.AuthAttemptsTotal)
	reg.MustRegister(m.KDFDuration)
	reg.MustRegister(m.AccessDecisionsTotal)
	reg.MustRegister(m.SessionsSweptTotal)
	reg.MustRegister(m.RequestsTotal)

	return m
}

// RecordAttempt implements auth.Recorder.
func (m *Metrics) RecordAttempt(scheme, outcome string) {
	m.AuthAttemptsTotal.WithLabelValues(scheme, outcome).Inc()
}

// RecordDerivation implements auth.Recorder.
func (m *Metrics) RecordDerivation(d time.Duration) {
	m.KDFDuration.Observe(d.Seconds())
}

// RecordDecision implements access.DecisionRecorder.
func (m *Metrics) RecordDecision(resource string, op access.Operation, decision access.Decision) {
	m.AccessDecisionsTotal.WithLabelValues(resource, op.String(), string(decision)).Inc()
}

// RecordSweep implements auth.SweepRecorder.
func (m *Metrics) RecordSweep(removed int64) {
	if removed > 0 {
		m.SessionsSweptTotal.Add(float64(removed))
	}
}

// RecordRequest counts a served HTTP request.
func (m *Metrics) RecordRequest(method, route string, status int) {
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Compile-time interface checks.
var (
	_ auth.Recorder           = (*Metrics)(nil)
	_ auth.SweepRecorder      = (*Metrics)(nil)
	_ access.DecisionRecorder = (*Metrics)(nil)
)
