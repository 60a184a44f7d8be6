// Package loadtest drives concurrent HTTP traffic at the proxy listener and
// reports status codes, latency percentiles and the per-endpoint distribution.
// The serving endpoint is read from a "backend" field in JSON responses, as
// returned by the demo backend, or from the X-Backend-Server header.
package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/health-router/internal/metrics"
)

const unknownBackend = "(unknown)"

type Options struct {
	URL         string
	Method      string
	Body        string
	ContentType string
	Concurrency int
	Requests    int
	Timeout     time.Duration
	Client      *http.Client
}

// Report is the outcome of one run.
type Report struct {
	Requests    int             `json:"requests"`
	Success     int             `json:"success"`
	Failure     int             `json:"failure"`
	StatusCodes map[int]int     `json:"status_codes"`
	Duration    float64         `json:"duration_seconds"`
	Throughput  float64         `json:"requests_per_second"`
	Summary     metrics.Summary `json:"summary"`
}

// Distribution returns the number of requests served by each endpoint.
func (r Report) Distribution() map[string]int64 {
	out := make(map[string]int64)
	for _, svc := range r.Summary.Services {
		for name, c := range svc.Endpoints {
			out[name] += c.Requests
		}
	}
	return out
}

func (o *Options) defaults() {
	if o.Method == "" {
		o.Method = http.MethodGet
	}
	if o.ContentType == "" {
		o.ContentType = "application/json"
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 10
	}
	if o.Requests <= 0 {
		o.Requests = 100
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Client == nil {
		o.Client = &http.Client{Timeout: o.Timeout}
	}
}

// Run sends opts.Requests requests using opts.Concurrency workers. Transport
// errors count as failures with status code 0.
func Run(ctx context.Context, opts Options) (Report, error) {
	opts.defaults()

	if _, err := http.NewRequest(opts.Method, opts.URL, nil); err != nil {
		return Report{}, fmt.Errorf("build request: %w", err)
	}

	collector := metrics.NewCollector(opts.Requests)
	jobs := make(chan int)

	var (
		mutex       sync.Mutex
		statusCodes = make(map[int]int)
	)

	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := 0; i < opts.Requests; i++ {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < opts.Concurrency; w++ {
		g.Go(func() error {
			for range jobs {
				m := shoot(gctx, opts)
				collector.Record(m)

				mutex.Lock()
				statusCodes[m.StatusCode]++
				mutex.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	elapsed := time.Since(start)
	summary := collector.Summary()

	report := Report{
		Requests:    int(summary.TotalRequests),
		Failure:     int(summary.TotalErrors) + statusCodes[0],
		StatusCodes: statusCodes,
		Duration:    elapsed.Seconds(),
		Summary:     summary,
	}
	report.Success = report.Requests - report.Failure
	if elapsed > 0 {
		report.Throughput = float64(report.Requests) / elapsed.Seconds()
	}

	return report, nil
}

func shoot(ctx context.Context, opts Options) metrics.Metric {
	m := metrics.Metric{
		Service:   "loadtest",
		Endpoint:  unknownBackend,
		Method:    opts.Method,
		Timestamp: time.Now(),
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, opts.URL, bytes.NewBufferString(opts.Body))
	if err != nil {
		return m
	}
	req.Header.Set("Content-Type", opts.ContentType)

	resp, err := opts.Client.Do(req)
	m.Latency = time.Since(m.Timestamp)
	if err != nil {
		return m
	}
	defer resp.Body.Close()

	m.StatusCode = resp.StatusCode
	m.Endpoint = backendOf(resp)
	return m
}

func backendOf(resp *http.Response) string {
	if name := resp.Header.Get("X-Backend-Server"); name != "" {
		io.Copy(io.Discard, resp.Body)
		return name
	}

	var body struct {
		Backend string `json:"backend"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Backend != "" {
		return body.Backend
	}
	return unknownBackend
}
