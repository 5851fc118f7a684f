package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulseboard/pulse/registry"
)

// Metrics records discovery outcomes. It implements registry.Observer.
type Metrics struct {
	registry *prometheus.Registry

	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
	active   *prometheus.GaugeVec
}

// NewMetrics registers the discovery metrics, plus the Go and process
// collectors, on a dedicated Prometheus registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_discovery_outcomes_total",
			Help: "Provider discovery outcomes by domain and outcome.",
		}, []string{"domain", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulse_discovery_candidate_duration_seconds",
			Help:    "Time spent probing and constructing one provider candidate.",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"domain"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pulse_active_providers",
			Help: "Providers activated by discovery, per domain.",
		}, []string{"domain"}),
	}
	reg.MustRegister(
		m.outcomes,
		m.duration,
		m.active,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe implements registry.Observer.
func (m *Metrics) Observe(e registry.Event) {
	m.outcomes.WithLabelValues(e.Domain, string(e.Outcome)).Inc()
	if e.Provider != "" {
		m.duration.WithLabelValues(e.Domain).Observe(e.Duration.Seconds())
	}
}

// RecordStatus sets the active provider gauge from a registry status
// snapshot. Domains without providers are reported as zero.
func (m *Metrics) RecordStatus(status map[string][]string) {
	for domain, names := range status {
		m.active.WithLabelValues(domain).Set(float64(len(names)))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the underlying registry for tests and embedding.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
