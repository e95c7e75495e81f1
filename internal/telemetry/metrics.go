// Package telemetry exposes sampling engine counters to Prometheus.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dockerstats"

// Label values.
const (
	ResultOK        = "ok"
	ResultAborted   = "aborted"
	ResultEmpty     = "empty"
	ResultError     = "error"
	ResultDuplicate = "duplicate"

	OutcomeRendered  = "rendered"
	OutcomeDiscarded = "discarded"
	OutcomeFailed    = "failed"
)

// Metrics holds the engine's collectors. A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	Ticks             *prometheus.CounterVec
	TickDuration      prometheus.Histogram
	RenderCycles      *prometheus.CounterVec
	Discoveries       *prometheus.CounterVec
	TrackedContainers prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ticks_total",
				Help:      "Sampling ticks by result (ok/aborted)",
			},
			[]string{"result"},
		),
		TickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tick_duration_seconds",
				Help:      "Wall time from tick start until every stats fetch returned",
				Buckets:   prometheus.DefBuckets,
			},
		),
		RenderCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "render_cycles_total",
				Help:      "Render cycles by outcome (rendered/discarded/failed)",
			},
			[]string{"outcome"},
		),
		Discoveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "discoveries_total",
				Help:      "Registry refreshes by result (ok/empty/duplicate/error)",
			},
			[]string{"result"},
		),
		TrackedContainers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tracked_containers",
				Help:      "Containers in the current generation",
			},
		),
	}

	m.Registry.MustRegister(m.Ticks, m.TickDuration, m.RenderCycles, m.Discoveries, m.TrackedContainers)
	return m
}

// ObserveTick records one tick's result and duration.
func (m *Metrics) ObserveTick(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Ticks.WithLabelValues(result).Inc()
	m.TickDuration.Observe(d.Seconds())
}

// RenderCycle records how a render cycle ended.
func (m *Metrics) RenderCycle(outcome string) {
	if m == nil {
		return
	}
	m.RenderCycles.WithLabelValues(outcome).Inc()
}

// Discovery records one discovery attempt.
func (m *Metrics) Discovery(result string) {
	if m == nil {
		return
	}
	m.Discoveries.WithLabelValues(result).Inc()
}

// SetTracked records the size of the current generation.
func (m *Metrics) SetTracked(n int) {
	if m == nil {
		return
	}
	m.TrackedContainers.Set(float64(n))
}
