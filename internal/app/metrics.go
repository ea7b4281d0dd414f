package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// runtimeMetrics instruments metric computations on a private registry so
// the /metrics endpoint exposes only this application's series.
type runtimeMetrics struct {
	registry            *prometheus.Registry
	computationsTotal   *prometheus.CounterVec
	computationDuration prometheus.Histogram
	activeComputations  prometheus.Gauge
	sprintListingsTotal prometheus.Counter
}

func newRuntimeMetrics() *runtimeMetrics {
	registry := prometheus.NewRegistry()

	m := &runtimeMetrics{
		registry: registry,
		computationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "team_status_computations_total",
			Help: "Metric computations by outcome.",
		}, []string{"outcome"}),
		computationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "team_status_computation_duration_seconds",
			Help:    "Wall-clock duration of metric computations.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		activeComputations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "team_status_active_computations",
			Help: "Metric computations currently in flight.",
		}),
		sprintListingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "team_status_sprint_listings_total",
			Help: "Board sprint listing requests served.",
		}),
	}

	registry.MustRegister(
		m.computationsTotal,
		m.computationDuration,
		m.activeComputations,
		m.sprintListingsTotal,
	)
	return m
}

func (m *runtimeMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
