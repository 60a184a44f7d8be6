// Package alert derives alerts on demand from the current endpoint health and
// the trailing metrics window. Nothing is stored between evaluations, so an
// alert disappears as soon as its condition stops holding.
package alert

import (
	"fmt"
	"time"

	"github.com/angeloszaimis/health-router/internal/endpoint"
	"github.com/angeloszaimis/health-router/internal/metrics"
)

type Type string

const (
	TypeServiceUnhealthy Type = "service_unhealthy"
	TypeHighErrorRate    Type = "high_error_rate"
	TypeHighLatency      Type = "high_latency"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

const (
	DefaultWindow           = 5 * time.Minute
	DefaultErrorRateLimit   = 0.10
	DefaultLatencyThreshold = 2 * time.Second
)

// Alert is computed fresh on every evaluation.
type Alert struct {
	Type      Type      `json:"type"`
	Service   string    `json:"service,omitempty"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthSource exposes the current health records.
type HealthSource interface {
	Snapshot() []endpoint.HealthRecord
}

// WindowSource exposes the trailing metrics window.
type WindowSource interface {
	WindowSince(d time.Duration) []metrics.Metric
}

// Thresholds configures when the metric based rules fire.
type Thresholds struct {
	Window    time.Duration
	ErrorRate float64
	Latency   time.Duration
}

// DefaultThresholds returns a 5 minute window, 10% error rate and 2s latency.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Window:    DefaultWindow,
		ErrorRate: DefaultErrorRateLimit,
		Latency:   DefaultLatencyThreshold,
	}
}

// Evaluator applies the alert rules. It only reads its sources.
type Evaluator struct {
	health     HealthSource
	window     WindowSource
	thresholds Thresholds
	now        func() time.Time
}

// NewEvaluator creates an evaluator. Zero threshold fields take their defaults.
func NewEvaluator(health HealthSource, window WindowSource, t Thresholds) *Evaluator {
	def := DefaultThresholds()
	if t.Window <= 0 {
		t.Window = def.Window
	}
	if t.ErrorRate <= 0 {
		t.ErrorRate = def.ErrorRate
	}
	if t.Latency <= 0 {
		t.Latency = def.Latency
	}

	return &Evaluator{
		health:     health,
		window:     window,
		thresholds: t,
		now:        time.Now,
	}
}

// WithClock overrides the evaluation timestamp source.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// Thresholds returns the effective thresholds.
func (e *Evaluator) Thresholds() Thresholds {
	return e.thresholds
}

// Evaluate runs every rule independently and returns the alerts in rule
// order: service_unhealthy per endpoint, then high_error_rate, then
// high_latency.
func (e *Evaluator) Evaluate() []Alert {
	at := e.now()
	alerts := make([]Alert, 0)

	for _, rec := range e.health.Snapshot() {
		if rec.Healthy() {
			continue
		}
		alerts = append(alerts, Alert{
			Type:      TypeServiceUnhealthy,
			Service:   rec.Endpoint,
			Message:   fmt.Sprintf("Service %s is %s", rec.Endpoint, rec.Status),
			Severity:  SeverityHigh,
			Timestamp: at,
		})
	}

	recent := e.window.WindowSince(e.thresholds.Window)
	if len(recent) == 0 {
		return alerts
	}

	errorRate := float64(metrics.ErrorCount(recent)) / float64(len(recent))
	if errorRate > e.thresholds.ErrorRate {
		alerts = append(alerts, Alert{
			Type:      TypeHighErrorRate,
			Message:   fmt.Sprintf("High error rate: %.2f%%", errorRate*100),
			Severity:  SeverityMedium,
			Timestamp: at,
		})
	}

	mean := metrics.MeanLatency(recent)
	if mean > e.thresholds.Latency {
		alerts = append(alerts, Alert{
			Type:      TypeHighLatency,
			Message:   fmt.Sprintf("High latency: %.2fs", mean.Seconds()),
			Severity:  SeverityMedium,
			Timestamp: at,
		})
	}

	return alerts
}
