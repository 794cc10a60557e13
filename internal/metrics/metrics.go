// Package metrics exposes sync counters in the Prometheus text format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "noteboard"

// Outcome labels.
const (
	OK      = "ok"
	Failed  = "failed"
	Skipped = "skipped"
)

// Metrics holds the collectors on a private registry. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	cycles      *prometheus.CounterVec
	items       *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	notes       prometheus.Gauge
	lastSuccess prometheus.Gauge
}

// New registers all collectors plus the Go runtime collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_cycles_total",
			Help:      "Sync and push cycles by kind and outcome.",
		}, []string{"kind", "outcome"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_items_total",
			Help:      "Per-note remote operations by phase and outcome.",
		}, []string{"phase", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Wall time of completed cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"kind"}),
		notes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notes",
			Help:      "Notes on the board after the last merge.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful cycle.",
		}),
	}
	m.registry.MustRegister(
		m.cycles, m.items, m.duration, m.notes, m.lastSuccess,
		collectors.NewGoCollector(),
	)
	return m
}

// Cycle records a finished cycle.
func (m *Metrics) Cycle(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(kind, outcome).Inc()
	if outcome == Skipped {
		return
	}
	m.duration.WithLabelValues(kind).Observe(d.Seconds())
	if outcome == OK {
		m.lastSuccess.SetToCurrentTime()
	}
}

// Item records one remote operation.
func (m *Metrics) Item(phase string, ok bool) {
	if m == nil {
		return
	}
	outcome := OK
	if !ok {
		outcome = Failed
	}
	m.items.WithLabelValues(phase, outcome).Inc()
}

// SetNotes records the board size.
func (m *Metrics) SetNotes(n int) {
	if m == nil {
		return
	}
	m.notes.Set(float64(n))
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
