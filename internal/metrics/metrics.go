// Package metrics exposes round execution metrics through a Prometheus
// registry owned by a single application instance.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics of the application.
type Registry struct {
	RoundsTotal          *prometheus.CounterVec
	RoundDuration        prometheus.Histogram
	RoundVirtualDuration prometheus.Histogram
	RolesTotal           *prometheus.CounterVec
	EventsProcessed      prometheus.Counter
	QuantumLinks         prometheus.Gauge
	ClassicalLinks       prometheus.Gauge
	LogEntriesTotal      *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewRegistry creates a registry with every metric initialized.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Registry{
		RoundsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netround_rounds_total",
				Help: "Total number of rounds executed, by outcome",
			},
			[]string{"state", "kind"},
		),
		RoundDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "netround_round_duration_seconds",
			Help:    "Wall-clock duration of a round in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		}),
		RoundVirtualDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "netround_round_virtual_duration_seconds",
			Help:    "Virtual time elapsed in a round in seconds",
			Buckets: prometheus.ExponentialBuckets(1e-9, 10, 12),
		}),
		RolesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netround_roles_total",
				Help: "Total number of role programs run, by final status",
			},
			[]string{"status"},
		),
		EventsProcessed: f.NewCounter(prometheus.CounterOpts{
			Name: "netround_clock_events_total",
			Help: "Total number of virtual clock events processed",
		}),
		QuantumLinks: f.NewGauge(prometheus.GaugeOpts{
			Name: "netround_quantum_links",
			Help: "Number of quantum links in the most recent topology",
		}),
		ClassicalLinks: f.NewGauge(prometheus.GaugeOpts{
			Name: "netround_classical_links",
			Help: "Number of classical links in the most recent topology",
		}),
		LogEntriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netround_log_entries_total",
				Help: "Total number of structured log entries written, by stream",
			},
			[]string{"stream"},
		),
		registry: reg,
	}
}

// Prometheus returns the underlying registry.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordRound records the outcome of one round. kind is empty on success.
func (r *Registry) RecordRound(state, kind string, wall, virtual time.Duration, events int) {
	if r == nil {
		return
	}
	r.RoundsTotal.WithLabelValues(state, kind).Inc()
	r.RoundDuration.Observe(wall.Seconds())
	r.RoundVirtualDuration.Observe(virtual.Seconds())
	r.EventsProcessed.Add(float64(events))
}

// RecordTopology records the link counts of a freshly built topology.
func (r *Registry) RecordTopology(quantum, classical int) {
	if r == nil {
		return
	}
	r.QuantumLinks.Set(float64(quantum))
	r.ClassicalLinks.Set(float64(classical))
}

// RecordRole records the final status of one role program.
func (r *Registry) RecordRole(status string) {
	if r == nil {
		return
	}
	r.RolesTotal.WithLabelValues(status).Inc()
}

// RecordLogEntries adds n entries to the given stream.
func (r *Registry) RecordLogEntries(stream string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.LogEntriesTotal.WithLabelValues(stream).Add(float64(n))
}
