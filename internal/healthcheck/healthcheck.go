package healthcheck

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/health-router/internal/endpoint"
)

const (
	DefaultInterval = 30 * time.Second
	DefaultTimeout  = 5 * time.Second
	DefaultPath     = "/health"
)

// Observer is notified after every applied probe result.
type Observer func(prev, cur endpoint.HealthRecord)

// Prober refreshes an endpoint registry on a fixed interval. It is the only
// writer of health records.
type Prober struct {
	registry *endpoint.Registry
	client   *http.Client
	timeout  time.Duration
	path     string
	interval time.Duration
	logger   *slog.Logger
	observer Observer
	now      func() time.Time

	mutex  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Prober)

// WithTimeout bounds every probe request, whatever client is in use.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Prober) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithPath sets the health path probed on each endpoint.
func WithPath(path string) Option {
	return func(p *Prober) {
		if path != "" {
			p.path = path
		}
	}
}

// WithClient replaces the HTTP client used for probes. The client's own
// timeout is kept unless WithTimeout is also given.
func WithClient(client *http.Client) Option {
	return func(p *Prober) {
		if client != nil {
			p.client = client
		}
	}
}

// WithClock replaces the time source used for check timestamps and latency.
func WithClock(now func() time.Time) Option {
	return func(p *Prober) {
		if now != nil {
			p.now = now
		}
	}
}

// WithObserver registers a callback invoked after each probe result is applied.
func WithObserver(o Observer) Option {
	return func(p *Prober) {
		p.observer = o
	}
}

// NewProber creates a prober for the registry. A non-positive interval falls
// back to DefaultInterval.
func NewProber(registry *endpoint.Registry, interval time.Duration, logger *slog.Logger, opts ...Option) *Prober {
	if interval <= 0 {
		interval = DefaultInterval
	}

	p := &Prober{
		registry: registry,
		client:   &http.Client{Timeout: DefaultTimeout},
		path:     DefaultPath,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.timeout > 0 {
		client := *p.client
		client.Timeout = p.timeout
		p.client = &client
	}

	return p
}

// Interval returns the refresh cadence.
func (p *Prober) Interval() time.Duration {
	return p.interval
}

// Probe issues one health request against e and classifies the outcome:
// 200 is healthy, any other status is unhealthy and a transport failure is
// unreachable.
func (p *Prober) Probe(ctx context.Context, e *endpoint.Endpoint) endpoint.ProbeResult {
	healthURL := e.URL().JoinPath(p.path)
	start := p.now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL.String(), nil)
	if err != nil {
		p.logger.Error("Failed to build health request",
			slog.String("endpoint", e.Name()),
			slog.Any("err", err))
		return endpoint.ProbeResult{Status: endpoint.StatusUnreachable, CheckedAt: start}
	}

	res, err := p.client.Do(req)
	latency := p.now().Sub(start)
	if err != nil {
		p.logger.Warn("Health probe failed",
			slog.String("endpoint", e.Name()),
			slog.Duration("latency", latency),
			slog.Any("err", err))
		return endpoint.ProbeResult{Status: endpoint.StatusUnreachable, CheckedAt: start, Latency: latency}
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 64<<10))

	status := endpoint.StatusHealthy
	if res.StatusCode != http.StatusOK {
		status = endpoint.StatusUnhealthy
	}

	p.logger.Debug("Health probe completed",
		slog.String("endpoint", e.Name()),
		slog.String("status", string(status)),
		slog.Int("code", res.StatusCode),
		slog.Duration("latency", latency))

	return endpoint.ProbeResult{
		Status:     status,
		CheckedAt:  start,
		Latency:    latency,
		StatusCode: res.StatusCode,
	}
}

// Refresh probes every endpoint concurrently and applies the results. Results
// produced after ctx is done are dropped so shutdown does not mark endpoints
// unreachable.
func (p *Prober) Refresh(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)

	for _, e := range p.registry.Endpoints() {
		g.Go(func() error {
			res := p.Probe(gctx, e)
			if ctx.Err() != nil {
				return nil
			}
			p.apply(e, res)
			return nil
		})
	}

	_ = g.Wait()
}

func (p *Prober) apply(e *endpoint.Endpoint, res endpoint.ProbeResult) {
	prev, cur, err := p.registry.Observe(e.Name(), res)
	if err != nil {
		p.logger.Error("Failed to record probe result",
			slog.String("endpoint", e.Name()),
			slog.Any("err", err))
		return
	}

	if prev.Status != cur.Status {
		if cur.Healthy() {
			p.logger.Info("Endpoint recovered",
				slog.String("endpoint", e.Name()),
				slog.String("previous", string(prev.Status)))
		} else {
			p.logger.Warn("Endpoint degraded",
				slog.String("endpoint", e.Name()),
				slog.String("status", string(cur.Status)),
				slog.Int("consecutive_failures", cur.ConsecutiveFailures))
		}
	}

	if p.observer != nil {
		p.observer(prev, cur)
	}
}

// Start launches the background loop: one refresh immediately, then one per
// interval until ctx is done or Stop is called. Calling Start twice is a no-op.
func (p *Prober) Start(ctx context.Context) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(ctx, p.done)
}

func (p *Prober) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	p.logger.Info("Health prober started",
		slog.Int("endpoints", p.registry.Len()),
		slog.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Health prober stopped")
			return
		case <-ticker.C:
			p.Refresh(ctx)
		}
	}
}

// Stop cancels the loop and waits for it to exit.
func (p *Prober) Stop() {
	p.mutex.Lock()
	cancel, done := p.cancel, p.done
	p.mutex.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}
