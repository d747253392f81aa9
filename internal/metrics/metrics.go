package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// RequestLatency tracks HTTP request latency by endpoint and method
	RequestLatency *prometheus.HistogramVec
	// HTTPRequestsTotal total HTTP requests
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestsInFlight current HTTP requests being processed
	HTTPRequestsInFlight prometheus.Gauge
	// PlatformCalls counts outbound platform calls by endpoint and outcome
	PlatformCalls *prometheus.CounterVec
	// TokenRefreshes counts token refresh attempts by outcome
	TokenRefreshes *prometheus.CounterVec
	// SyncPages counts sync pages processed by outcome
	SyncPages *prometheus.CounterVec
	// SyncItems counts individual items pushed by outcome
	SyncItems *prometheus.CounterVec
	// SyncProgress tracks synced item count against total
	SyncProgress *prometheus.GaugeVec
	// ErrorCounter counts errors by type and endpoint
	ErrorCounter *prometheus.CounterVec
	// registry is the custom registry for this metrics instance
	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_latency_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		PlatformCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "platform_calls_total",
				Help:      "Total number of outbound platform API calls",
			},
			[]string{"endpoint", "outcome"},
		),
		TokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "Total number of access token refresh attempts",
			},
			[]string{"outcome"},
		),
		SyncPages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_pages_total",
				Help:      "Total number of content sync pages processed",
			},
			[]string{"outcome"},
		),
		SyncItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_items_total",
				Help:      "Total number of content items pushed",
			},
			[]string{"outcome"},
		),
		SyncProgress: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sync_progress",
				Help:      "Content sync progress counters",
			},
			[]string{"kind"},
		),
		ErrorCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors",
			},
			[]string{"type", "endpoint", "method"},
		),
	}

	registry.MustRegister(
		m.RequestLatency,
		m.HTTPRequestsTotal,
		m.HTTPRequestsInFlight,
		m.PlatformCalls,
		m.TokenRefreshes,
		m.SyncPages,
		m.SyncItems,
		m.SyncProgress,
		m.ErrorCounter,
	)

	return m
}

// RecordRequestLatency records the latency of an HTTP request
func (m *Metrics) RecordRequestLatency(endpoint, method, status string, seconds float64) {
	m.RequestLatency.WithLabelValues(endpoint, method, status).Observe(seconds)
}

// RecordHTTPRequest increments the total HTTP request counter
func (m *Metrics) RecordHTTPRequest(endpoint, method, status string) {
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// IncHTTPRequestsInFlight increments the in-flight request gauge
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight decrements the in-flight request gauge
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordPlatformCall counts an outbound platform API call
func (m *Metrics) RecordPlatformCall(endpoint, outcome string) {
	m.PlatformCalls.WithLabelValues(endpoint, outcome).Inc()
}

// RecordTokenRefresh counts a token refresh attempt
func (m *Metrics) RecordTokenRefresh(outcome string) {
	m.TokenRefreshes.WithLabelValues(outcome).Inc()
}

// RecordSyncPage counts a processed sync page
func (m *Metrics) RecordSyncPage(outcome string) {
	m.SyncPages.WithLabelValues(outcome).Inc()
}

// RecordSyncItem counts a pushed content item
func (m *Metrics) RecordSyncItem(outcome string) {
	m.SyncItems.WithLabelValues(outcome).Inc()
}

// SetSyncProgress records sync progress counters
func (m *Metrics) SetSyncProgress(kind string, value float64) {
	m.SyncProgress.WithLabelValues(kind).Set(value)
}

// RecordError increments the error counter
func (m *Metrics) RecordError(errType, endpoint, method string) {
	m.ErrorCounter.WithLabelValues(errType, endpoint, method).Inc()
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
