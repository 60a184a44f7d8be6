// Package dashboard composes endpoint health, the metrics summary and the
// current alerts into a single read-only view.
package dashboard

import (
	"time"

	"github.com/angeloszaimis/health-router/internal/alert"
	"github.com/angeloszaimis/health-router/internal/endpoint"
	"github.com/angeloszaimis/health-router/internal/metrics"
)

// AlertView wraps the evaluated alerts with their count.
type AlertView struct {
	Alerts      []alert.Alert `json:"alerts"`
	TotalAlerts int           `json:"total_alerts"`
}

// View is the dashboard payload.
type View struct {
	Health    map[string]endpoint.HealthRecord `json:"health"`
	Summary   metrics.Summary                  `json:"summary"`
	Alerts    AlertView                        `json:"alerts"`
	Timestamp time.Time                        `json:"timestamp"`
}

type HealthSource interface {
	Snapshot() []endpoint.HealthRecord
}

type SummarySource interface {
	Summary() metrics.Summary
}

type AlertSource interface {
	Evaluate() []alert.Alert
}

// Aggregator reads its sources on every call and adds no logic of its own.
type Aggregator struct {
	health  HealthSource
	summary SummarySource
	alerts  AlertSource
	now     func() time.Time
}

func NewAggregator(health HealthSource, summary SummarySource, alerts AlertSource) *Aggregator {
	return &Aggregator{
		health:  health,
		summary: summary,
		alerts:  alerts,
		now:     time.Now,
	}
}

// Health returns every endpoint's record keyed by endpoint name.
func (a *Aggregator) Health() map[string]endpoint.HealthRecord {
	records := a.health.Snapshot()
	out := make(map[string]endpoint.HealthRecord, len(records))
	for _, rec := range records {
		out[rec.Endpoint] = rec
	}
	return out
}

// Alerts evaluates the current alerts.
func (a *Aggregator) Alerts() AlertView {
	alerts := a.alerts.Evaluate()
	return AlertView{Alerts: alerts, TotalAlerts: len(alerts)}
}

// Dashboard returns the composed view.
func (a *Aggregator) Dashboard() View {
	return View{
		Health:    a.Health(),
		Summary:   a.summary.Summary(),
		Alerts:    a.Alerts(),
		Timestamp: a.now(),
	}
}
