// Package metrics exposes extraction pipeline counters on a dedicated
// Prometheus registry. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventextract"

// Metrics groups the collectors for one process.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	strategyRuns     *prometheus.CounterVec
	candidatesTotal  *prometheus.CounterVec
	eventsReturned   prometheus.Histogram
	paginationPages  prometheus.Histogram
	renderDuration   *prometheus.HistogramVec
	renderFailures   *prometheus.CounterVec
	inFlightRequests prometheus.Gauge
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Extraction requests by response method and outcome",
	}, []string{"method", "outcome"})
	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "End-to-end extraction latency",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90, 180},
	}, []string{"outcome"})
	m.strategyRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "strategy_runs_total",
		Help:      "Extraction strategy executions by status",
	}, []string{"strategy", "status"})
	m.candidatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidates_total",
		Help:      "Candidate events produced per strategy",
	}, []string{"strategy"})
	m.eventsReturned = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "events_returned",
		Help:      "Validated events per response",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 9),
	})
	m.paginationPages = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pagination_pages",
		Help:      "Pages discovered per response",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
	})
	m.renderDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "render_duration_seconds",
		Help:      "Time spent rendering target pages",
		Buckets:   prometheus.DefBuckets,
	}, []string{"backend"})
	m.renderFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "render_failures_total",
		Help:      "Render failures by kind",
	}, []string{"kind"})
	m.inFlightRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "in_flight_requests",
		Help:      "Extraction requests currently running",
	})

	m.registry.MustRegister(
		m.requestsTotal, m.requestDuration, m.strategyRuns, m.candidatesTotal,
		m.eventsReturned, m.paginationPages, m.renderDuration, m.renderFailures,
		m.inFlightRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the dedicated registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RequestStarted increments the in-flight gauge and returns its release func.
func (m *Metrics) RequestStarted() func() {
	if m == nil {
		return func() {}
	}
	m.inFlightRequests.Inc()
	return m.inFlightRequests.Dec
}

// ObserveRequest records one finished extraction.
func (m *Metrics) ObserveRequest(method, outcome string, events, pages int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, outcome).Inc()
	m.requestDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	m.eventsReturned.Observe(float64(events))
	m.paginationPages.Observe(float64(pages))
}

// ObserveStrategy records one strategy run.
func (m *Metrics) ObserveStrategy(strategy string, candidates int, failed bool) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "failed"
	}
	m.strategyRuns.WithLabelValues(strategy, status).Inc()
	m.candidatesTotal.WithLabelValues(strategy).Add(float64(candidates))
}

// ObserveRender records a render attempt; kind is empty on success.
func (m *Metrics) ObserveRender(backend, kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.renderDuration.WithLabelValues(backend).Observe(elapsed.Seconds())
	if kind != "" {
		m.renderFailures.WithLabelValues(kind).Inc()
	}
}
