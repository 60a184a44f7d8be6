package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/angeloszaimis/health-router/internal/alert"
	"github.com/angeloszaimis/health-router/internal/dashboard"
	"github.com/angeloszaimis/health-router/internal/endpoint"
	"github.com/angeloszaimis/health-router/internal/healthcheck"
	"github.com/angeloszaimis/health-router/internal/metrics"
	"github.com/angeloszaimis/health-router/internal/proxy"
	"github.com/angeloszaimis/health-router/internal/strategy"
)

const DefaultService = "load_balancer"

// Options tunes a Router. Zero values take the package defaults.
type Options struct {
	Service         string
	Strategy        string
	HealthInterval  time.Duration
	HealthTimeout   time.Duration
	HealthPath      string
	ProxyTimeout    time.Duration
	MetricsCapacity int
	Thresholds      alert.Thresholds
	Transport       http.RoundTripper
}

// Router is the explicitly constructed owner of all routing state.
type Router struct {
	service string
	logger  *slog.Logger

	registry   *endpoint.Registry
	selector   *strategy.RoundRobin
	prober     *healthcheck.Prober
	forwarder  *proxy.Forwarder
	collector  *metrics.Collector
	exporter   *metrics.Exporter
	evaluator  *alert.Evaluator
	aggregator *dashboard.Aggregator
}

// New validates the endpoint set and wires every component. Zero endpoints is
// a configuration error.
func New(endpoints []*endpoint.Endpoint, opts Options, logger *slog.Logger) (*Router, error) {
	registry, err := endpoint.NewRegistry(endpoints)
	if err != nil {
		return nil, fmt.Errorf("create registry: %w", err)
	}

	selector, err := strategy.New(opts.Strategy, registry)
	if err != nil {
		return nil, fmt.Errorf("create strategy: %w", err)
	}

	if selector.Name() == strategy.TypeNaive {
		logger.Warn("Naive rotation selected, requests may be routed to endpoints known to be down")
	}

	service := opts.Service
	if service == "" {
		service = DefaultService
	}

	exporter := metrics.NewExporter()
	collector := metrics.NewCollector(opts.MetricsCapacity)

	for _, rec := range registry.Snapshot() {
		exporter.ObserveHealth(rec)
	}

	prober := healthcheck.NewProber(registry, opts.HealthInterval, logger,
		healthcheck.WithTimeout(opts.HealthTimeout),
		healthcheck.WithPath(opts.HealthPath),
		healthcheck.WithObserver(func(_, cur endpoint.HealthRecord) {
			exporter.ObserveHealth(cur)
		}),
	)
	forwarder := proxy.NewForwarder(registry.Endpoints(), opts.ProxyTimeout, opts.Transport, logger)
	evaluator := alert.NewEvaluator(registry, collector, opts.Thresholds)

	return &Router{
		service:    service,
		logger:     logger,
		registry:   registry,
		selector:   selector,
		prober:     prober,
		forwarder:  forwarder,
		collector:  collector,
		exporter:   exporter,
		evaluator:  evaluator,
		aggregator: dashboard.NewAggregator(registry, collector, evaluator),
	}, nil
}

// Start launches background health probing.
func (r *Router) Start(ctx context.Context) {
	r.prober.Start(ctx)
}

// Stop ends background probing and waits for the prober to exit.
func (r *Router) Stop() {
	r.prober.Stop()
}

// Next selects the endpoint for one request.
func (r *Router) Next() (*endpoint.Endpoint, error) {
	e, err := r.selector.Next()
	if errors.Is(err, strategy.ErrNoHealthyEndpoint) {
		r.exporter.ObserveSelectionExhausted()
	}
	return e, err
}

// Forward performs the single forwarding attempt for req and records its
// outcome.
func (r *Router) Forward(w http.ResponseWriter, req *http.Request, e *endpoint.Endpoint) proxy.Outcome {
	outcome := r.forwarder.Forward(w, req, e)

	if outcome.Failed() {
		r.exporter.ObserveForwardFailure(e.Name())
	}

	m := metrics.Metric{
		Service:    r.service,
		Endpoint:   e.Name(),
		Method:     req.Method,
		StatusCode: outcome.StatusCode,
		Latency:    outcome.Latency,
		Timestamp:  time.Now(),
	}
	r.collector.Record(m)
	r.exporter.ObserveMetric(m)

	return outcome
}

func (r *Router) Service() string                   { return r.service }
func (r *Router) Registry() *endpoint.Registry      { return r.registry }
func (r *Router) Selector() *strategy.RoundRobin    { return r.selector }
func (r *Router) Prober() *healthcheck.Prober       { return r.prober }
func (r *Router) Collector() *metrics.Collector     { return r.collector }
func (r *Router) Exporter() *metrics.Exporter       { return r.exporter }
func (r *Router) Evaluator() *alert.Evaluator       { return r.evaluator }
func (r *Router) Aggregator() *dashboard.Aggregator { return r.aggregator }
