package main

import (
	"net/http"

	"github.com/angeloszaimis/health-router/config"
	"github.com/angeloszaimis/health-router/internal/alert"
	"github.com/angeloszaimis/health-router/internal/handler"
	"github.com/angeloszaimis/health-router/internal/router"
)

func setupAdminRouter(api *handler.APIHandler, rt *router.Router) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", api.Health)
	mux.HandleFunc("GET /health/{name}", api.EndpointHealth)
	mux.HandleFunc("POST /metrics", api.IngestMetric)
	mux.HandleFunc("GET /metrics", api.QueryMetrics)
	mux.HandleFunc("GET /metrics/summary", api.Summary)
	mux.Handle("GET /metrics/prometheus", rt.Exporter().Handler())
	mux.HandleFunc("GET /alerts", api.Alerts)
	mux.HandleFunc("GET /dashboard", api.Dashboard)

	return mux
}

func routerOptions(cfg *config.Config) router.Options {
	return router.Options{
		Service:         cfg.Metrics.ServiceName,
		Strategy:        cfg.Strategy.Type,
		HealthInterval:  cfg.HealthCheck.IntervalDuration(),
		HealthTimeout:   cfg.HealthCheck.TimeoutDuration(),
		HealthPath:      cfg.HealthCheck.Path,
		ProxyTimeout:    cfg.Proxy.TimeoutDuration(),
		MetricsCapacity: cfg.Metrics.Capacity,
		Thresholds: alert.Thresholds{
			Window:    cfg.Alerts.WindowDuration(),
			ErrorRate: cfg.Alerts.ErrorRate,
			Latency:   cfg.Alerts.LatencyDuration(),
		},
	}
}
