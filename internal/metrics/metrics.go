package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for the formdesk client.
type Metrics struct {
	registry *prometheus.Registry

	// Outbound HTTP metrics.
	ClientRequestsTotal   *prometheus.CounterVec
	ClientRequestDuration *prometheus.HistogramVec
	TransportErrorsTotal  *prometheus.CounterVec

	// Operation lifecycle metrics.
	OperationsTotal    *prometheus.CounterVec
	OperationsInFlight *prometheus.GaugeVec

	// Session metrics.
	SessionInvalidationsTotal prometheus.Counter

	StartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		ClientRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formdesk_client_requests_total",
			Help: "Total number of backend requests issued.",
		}, []string{"method", "path_pattern", "status_code"}),

		ClientRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formdesk_client_request_duration_seconds",
			Help:    "Backend request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		TransportErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formdesk_client_transport_errors_total",
			Help: "Total number of requests that failed before a response was read.",
		}, []string{"kind"}),

		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formdesk_operations_total",
			Help: "Total number of settled operations.",
		}, []string{"operation", "outcome"}),

		OperationsInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "formdesk_operations_in_flight",
			Help: "Number of operations currently outstanding.",
		}, []string{"operation"}),

		SessionInvalidationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formdesk_session_invalidations_total",
			Help: "Total number of sessions dropped after the backend rejected the token.",
		}),

		StartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "formdesk_start_time_seconds",
			Help: "Unix timestamp when the process started.",
		}),
	}

	reg.MustRegister(
		m.ClientRequestsTotal,
		m.ClientRequestDuration,
		m.TransportErrorsTotal,
		m.OperationsTotal,
		m.OperationsInFlight,
		m.SessionInvalidationsTotal,
		m.StartTime,
	)

	m.StartTime.Set(float64(time.Now().Unix()))

	reg.MustRegister(collectors.NewGoCollector())

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterPendingCollector registers a collector that reports the number of
// outstanding operations per slice at gather time.
func (m *Metrics) RegisterPendingCollector(statFunc PendingStatFunc) {
	m.registry.MustRegister(NewPendingCollector(statFunc))
}

// IncClientRequests increments the request counter. A zero status code means
// no response was received.
func (m *Metrics) IncClientRequests(method, pathPattern string, statusCode int) {
	m.ClientRequestsTotal.WithLabelValues(method, pathPattern, strconv.Itoa(statusCode)).Inc()
}

// ObserveClientDuration records a request duration.
func (m *Metrics) ObserveClientDuration(method, pathPattern string, seconds float64) {
	m.ClientRequestDuration.WithLabelValues(method, pathPattern).Observe(seconds)
}

// IncTransportError increments the transport error counter.
func (m *Metrics) IncTransportError(kind string) {
	m.TransportErrorsTotal.WithLabelValues(kind).Inc()
}

// IncOperation counts a settled operation.
func (m *Metrics) IncOperation(op, outcome string) {
	m.OperationsTotal.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) IncOperationsInFlight(op string) {
	m.OperationsInFlight.WithLabelValues(op).Inc()
}

func (m *Metrics) DecOperationsInFlight(op string) {
	m.OperationsInFlight.WithLabelValues(op).Dec()
}

// IncSessionInvalidations counts a dropped session.
func (m *Metrics) IncSessionInvalidations() {
	m.SessionInvalidationsTotal.Inc()
}
