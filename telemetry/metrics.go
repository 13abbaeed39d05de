// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors the scan engine exposes,
// registered against a caller-supplied registry so tests can use an
// isolated one instead of the global default, rather than a package-global
// registry.
type Metrics struct {
	ConnectionsTotal   *prometheus.CounterVec
	HandshakeDuration  *prometheus.HistogramVec
	WorkerRunsTotal    *prometheus.CounterVec
	WorkerFailuresTotal *prometheus.CounterVec
	RecorderMismatches prometheus.Counter
}

// NewMetrics creates and registers the collector set against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tlsmate",
			Name:      "connections_total",
			Help:      "TLS connections attempted, labeled by outcome.",
		}, []string{"outcome"}),
		HandshakeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tlsmate",
			Name:      "handshake_duration_seconds",
			Help:      "Time spent on a TLS handshake attempt, labeled by negotiated version (client profile name if it failed).",
			Buckets:   prometheus.DefBuckets,
		}, []string{"version"}),
		WorkerRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tlsmate",
			Name:      "worker_runs_total",
			Help:      "Scan worker invocations, labeled by worker name.",
		}, []string{"worker"}),
		WorkerFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tlsmate",
			Name:      "worker_failures_total",
			Help:      "Scan worker invocations that returned a ScanError, labeled by worker name.",
		}, []string{"worker"}),
		RecorderMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tlsmate",
			Name:      "recorder_mismatches_total",
			Help:      "Replay runs aborted due to a recorded-trace mismatch.",
		}),
	}
	reg.MustRegister(m.ConnectionsTotal, m.HandshakeDuration, m.WorkerRunsTotal, m.WorkerFailuresTotal, m.RecorderMismatches)
	return m
}
