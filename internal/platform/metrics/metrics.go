package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the portal's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	profileAttempts *prometheus.CounterVec
	writes          *prometheus.CounterVec
	outboxDepth     prometheus.Gauge
	activeClients   prometheus.Gauge
}

// New registers the portal collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		profileAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_profile_lookup_attempts_total",
			Help: "Profile lookups performed while resolving sessions.",
		}, []string{"outcome"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_remote_writes_total",
			Help: "Remote persistence attempts for optimistic writes.",
		}, []string{"kind", "outcome"}),
		outboxDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portal_outbox_depth",
			Help: "Writes waiting for a retry.",
		}),
		activeClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portal_active_clients",
			Help: "Browser clients with a live portal state.",
		}),
	}
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.httpInFlight, m.httpRequestsTotal, m.httpRequestDuration,
		m.profileAttempts, m.writes, m.outboxDepth, m.activeClients,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpRequestDuration.WithLabelValues(method, route, code).Observe(elapsed.Seconds())
	m.httpRequestsTotal.WithLabelValues(method, route, code).Inc()
}

// TrackInFlight increments the in-flight gauge and returns the matching decrement.
func (m *Metrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.httpInFlight.Inc()
	return m.httpInFlight.Dec
}

// ProfileLookup counts one lookup with outcome "found", "missing", "error" or "cancelled".
func (m *Metrics) ProfileLookup(outcome string) {
	if m == nil {
		return
	}
	m.profileAttempts.WithLabelValues(outcome).Inc()
}

// RemoteWrite counts one persistence attempt with outcome "ok" or "failed".
func (m *Metrics) RemoteWrite(kind, outcome string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(kind, outcome).Inc()
}

// SetOutboxDepth reports the number of queued retries.
func (m *Metrics) SetOutboxDepth(n int) {
	if m == nil {
		return
	}
	m.outboxDepth.Set(float64(n))
}

// SetActiveClients reports the number of live client states.
func (m *Metrics) SetActiveClients(n int) {
	if m == nil {
		return
	}
	m.activeClients.Set(float64(n))
}
