package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angeloszaimis/health-router/internal/endpoint"
)

// Exporter publishes router activity as Prometheus series on its own registry.
type Exporter struct {
	registry *prometheus.Registry

	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	EndpointHealthy     *prometheus.GaugeVec
	ConsecutiveFailures *prometheus.GaugeVec
	SelectionExhausted  prometheus.Counter
	ForwardFailures     *prometheus.CounterVec
}

// NewExporter registers every series on a fresh registry.
func NewExporter() *Exporter {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Exporter{
		registry: reg,

		// RequestsTotal counts recorded outcomes by service, endpoint, method and status code
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthrouter_requests_total",
				Help: "Total number of recorded request outcomes",
			},
			[]string{"service", "endpoint", "method", "code"},
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "healthrouter_request_duration_seconds",
				Help:    "Latency of recorded requests in seconds",
				Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"service", "endpoint"},
		),

		// EndpointHealthy is 1 while the endpoint's last probe was healthy
		EndpointHealthy: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "healthrouter_endpoint_healthy",
				Help: "Whether the endpoint is currently classified healthy",
			},
			[]string{"endpoint"},
		),

		ConsecutiveFailures: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "healthrouter_endpoint_consecutive_failures",
				Help: "Consecutive failed health probes per endpoint",
			},
			[]string{"endpoint"},
		),

		SelectionExhausted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "healthrouter_selection_exhausted_total",
				Help: "Requests rejected because no endpoint was healthy",
			},
		),

		ForwardFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthrouter_forward_failures_total",
				Help: "Forwards that ended in a timeout or connection failure",
			},
			[]string{"endpoint"},
		),
	}
}

// ObserveMetric counts one forwarded request outcome.
func (e *Exporter) ObserveMetric(m Metric) {
	e.RequestsTotal.WithLabelValues(m.Service, m.Endpoint, m.Method, strconv.Itoa(m.StatusCode)).Inc()
	e.RequestDuration.WithLabelValues(m.Service, m.Endpoint).Observe(m.Latency.Seconds())
}

// ObserveHealth mirrors a health record into the endpoint gauges.
func (e *Exporter) ObserveHealth(rec endpoint.HealthRecord) {
	healthy := 0.0
	if rec.Healthy() {
		healthy = 1
	}
	e.EndpointHealthy.WithLabelValues(rec.Endpoint).Set(healthy)
	e.ConsecutiveFailures.WithLabelValues(rec.Endpoint).Set(float64(rec.ConsecutiveFailures))
}

// ObserveSelectionExhausted counts one request rejected with no healthy endpoint.
func (e *Exporter) ObserveSelectionExhausted() {
	e.SelectionExhausted.Inc()
}

// ObserveForwardFailure counts one failed forward to the named endpoint.
func (e *Exporter) ObserveForwardFailure(name string) {
	e.ForwardFailures.WithLabelValues(name).Inc()
}

// Registry returns the registry the series are registered on.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the exposition format for the exporter's registry.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}
