package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/angeloszaimis/health-router/internal/endpoint"
	"github.com/angeloszaimis/health-router/internal/envelope"
	"github.com/angeloszaimis/health-router/internal/metrics"
	"github.com/angeloszaimis/health-router/internal/router"
)

const maxIngestBytes = 1 << 20

const (
	SelfHealthy  = "healthy"
	SelfDegraded = "degraded"
)

var methodPattern = regexp.MustCompile(`^[A-Z]+$`)

// SelfHealth is the router's own health report.
type SelfHealth struct {
	Status           string                           `json:"status"`
	Service          string                           `json:"service"`
	Strategy         string                           `json:"strategy"`
	HealthyEndpoints int                              `json:"healthy_endpoints"`
	TotalEndpoints   int                              `json:"total_endpoints"`
	Endpoints        map[string]endpoint.HealthRecord `json:"endpoints"`
	UptimeSeconds    float64                          `json:"uptime_seconds"`
	Timestamp        time.Time                        `json:"timestamp"`
}

// IngestRequest is the body accepted by POST /metrics.
type IngestRequest struct {
	Service        string     `json:"service"`
	Endpoint       string     `json:"endpoint"`
	Method         string     `json:"method"`
	StatusCode     int        `json:"status_code"`
	LatencySeconds *float64   `json:"latency_seconds"`
	Timestamp      *time.Time `json:"timestamp"`
}

func (r IngestRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Service, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.Endpoint, validation.Required, validation.Length(1, 512)),
		validation.Field(&r.Method, validation.Required, validation.Match(methodPattern).Error("must be an upper case HTTP method")),
		validation.Field(&r.StatusCode, validation.Required, validation.Min(100), validation.Max(599)),
		validation.Field(&r.LatencySeconds, validation.NotNil, validation.Min(0.0)),
	)
}

// Metric converts a validated request, stamping now when no timestamp was sent.
func (r IngestRequest) Metric(now time.Time) metrics.Metric {
	ts := now
	if r.Timestamp != nil {
		ts = *r.Timestamp
	}

	return metrics.Metric{
		Service:    r.Service,
		Endpoint:   r.Endpoint,
		Method:     r.Method,
		StatusCode: r.StatusCode,
		Latency:    time.Duration(*r.LatencySeconds * float64(time.Second)),
		Timestamp:  ts,
	}
}

type APIHandler struct {
	logger  *slog.Logger
	router  *router.Router
	started time.Time
	now     func() time.Time
}

func NewAPIHandler(logger *slog.Logger, r *router.Router) *APIHandler {
	return &APIHandler{
		logger:  logger,
		router:  r,
		started: time.Now(),
		now:     time.Now,
	}
}

// Health answers GET /health.
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	records := h.router.Aggregator().Health()

	healthy := 0
	for _, rec := range records {
		if rec.Healthy() {
			healthy++
		}
	}

	status := SelfHealthy
	if healthy == 0 {
		status = SelfDegraded
	}

	h.write(w, http.StatusOK, envelope.Success(SelfHealth{
		Status:           status,
		Service:          h.router.Service(),
		Strategy:         h.router.Selector().Name(),
		HealthyEndpoints: healthy,
		TotalEndpoints:   len(records),
		Endpoints:        records,
		UptimeSeconds:    h.now().Sub(h.started).Seconds(),
		Timestamp:        h.now(),
	}))
}

// EndpointHealth answers GET /health/{name}.
func (h *APIHandler) EndpointHealth(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	rec, ok := h.router.Registry().Health(name)
	if !ok {
		h.write(w, http.StatusNotFound, envelope.Failure(fmt.Sprintf("endpoint not found: %s", name)))
		return
	}

	h.write(w, http.StatusOK, envelope.Success(rec))
}

// IngestMetric answers POST /metrics.
func (h *APIHandler) IngestMetric(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBytes)).Decode(&req); err != nil {
		h.write(w, http.StatusBadRequest, envelope.Failure("invalid JSON body"))
		return
	}

	if err := req.Validate(); err != nil {
		h.write(w, http.StatusBadRequest, envelope.Failure(err.Error()))
		return
	}

	h.router.Collector().Record(req.Metric(h.now()))
	h.write(w, http.StatusOK, envelope.Acknowledge("metric recorded"))
}

// QueryMetrics answers GET /metrics?service=&endpoint=&limit=.
func (h *APIHandler) QueryMetrics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := metrics.DefaultQueryLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err == nil {
			err = validation.Validate(n, validation.Min(1))
		}
		if err != nil {
			h.write(w, http.StatusBadRequest, envelope.Failure("limit must be a positive integer"))
			return
		}
		limit = n
	}

	h.write(w, http.StatusOK, envelope.Success(h.router.Collector().Query(metrics.Filter{
		Service:  q.Get("service"),
		Endpoint: q.Get("endpoint"),
		Limit:    limit,
	})))
}

// Summary answers GET /metrics/summary.
func (h *APIHandler) Summary(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK, envelope.Success(h.router.Collector().Summary()))
}

// Alerts answers GET /alerts.
func (h *APIHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK, envelope.Success(h.router.Aggregator().Alerts()))
}

// Dashboard answers GET /dashboard.
func (h *APIHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK, envelope.Success(h.router.Aggregator().Dashboard()))
}

func (h *APIHandler) write(w http.ResponseWriter, code int, env envelope.Envelope) {
	if err := envelope.Write(w, code, env); err != nil {
		h.logger.Debug("Failed to write response", slog.Any("err", err))
	}
}
