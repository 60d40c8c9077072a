package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exported by the service.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	authDenials     *prometheus.CounterVec
}

// NewMetrics registers collectors on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "HTTP errors by domain error code.",
		}, []string{"method", "route", "code"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "request_status_transitions_total",
			Help: "Service request status transitions.",
		}, []string{"from", "to"}),
		authDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authorization_denials_total",
			Help: "Requests denied by the permission gate.",
		}, []string{"permission"}),
	}
	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.errorsTotal,
		m.transitions,
		m.authDenials,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordRequest counts a finished request and observes its latency.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordError counts a rendered error response.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(method, route, code).Inc()
}

// RecordTransition counts a successful workflow transition.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// RecordDenial counts a permission missing from a denied request.
func (m *Metrics) RecordDenial(permission string) {
	if m == nil {
		return
	}
	m.authDenials.WithLabelValues(permission).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
