// Package metrics exposes Prometheus instruments for generation runs and provider calls.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
	"time"
)

// Metrics holds the instruments. A nil *Metrics records nothing, which keeps tests and tools free of wiring.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	stageDuration    *prometheus.HistogramVec
	providerRequests *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	providerTokens   *prometheus.CounterVec
	runsInFlight     prometheus.Gauge
}

// New registers the instruments on a fresh registry together with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dossier_report_runs_total",
				Help: "Total number of report generation runs by investigation type and outcome",
			},
			[]string{"type", "outcome"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dossier_report_run_duration_seconds",
				Help:    "Report generation run duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
			},
			[]string{"type"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dossier_report_stage_duration_seconds",
				Help:    "Duration of a single generation stage in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{"stage"},
		),
		providerRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dossier_ai_provider_requests_total",
				Help: "Total number of AI provider requests by operation and status",
			},
			[]string{"provider", "operation", "status"},
		),
		providerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dossier_ai_provider_request_duration_seconds",
				Help:    "AI provider request duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{"provider", "operation"},
		),
		providerTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dossier_ai_provider_tokens_total",
				Help: "Total number of tokens consumed per provider",
			},
			[]string{"provider"},
		),
		runsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dossier_report_runs_in_flight",
			Help: "Number of report generation runs currently in flight",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry for inspection.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// RunStarted counts a run in flight and returns the function that finishes it with outcome.
func (m *Metrics) RunStarted(investigationType string) func(outcome string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	m.runsInFlight.Inc()
	return func(outcome string) {
		m.runsInFlight.Dec()
		m.runsTotal.WithLabelValues(investigationType, outcome).Inc()
		m.runDuration.WithLabelValues(investigationType).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveProvider records one provider request. Status is "success" or the failure kind.
func (m *Metrics) ObserveProvider(provider, operation, status string, tokens int, d time.Duration) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(provider, operation, status).Inc()
	m.providerDuration.WithLabelValues(provider, operation).Observe(d.Seconds())
	if tokens > 0 {
		m.providerTokens.WithLabelValues(provider).Add(float64(tokens))
	}
}
