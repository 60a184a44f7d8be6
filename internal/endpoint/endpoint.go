package endpoint

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// Status classifies the outcome of the most recent health probe.
type Status string

const (
	StatusHealthy     Status = "healthy"
	StatusUnhealthy   Status = "unhealthy"
	StatusUnreachable Status = "unreachable"
)

// Endpoint is the immutable identity of one backend server.
type Endpoint struct {
	name string
	url  *url.URL
}

// New creates an Endpoint with the given name and base URL.
func New(name string, u *url.URL) *Endpoint {
	return &Endpoint{
		name: name,
		url:  u,
	}
}

// Parse builds an Endpoint from a raw base URL. An empty name defaults to the
// URL's host.
func Parse(name, rawURL string) (*Endpoint, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint url %q: %w", rawURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("endpoint url %q: scheme must be http or https", rawURL)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("endpoint url %q: missing host", rawURL)
	}

	if name == "" {
		name = u.Host
	}

	return New(name, u), nil
}

// Name returns the endpoint's identifier.
func (e *Endpoint) Name() string {
	return e.name
}

// URL returns a copy of the endpoint's base URL.
func (e *Endpoint) URL() *url.URL {
	u := *e.url
	return &u
}

func (e *Endpoint) String() string {
	return e.name + " (" + e.url.String() + ")"
}

// HealthRecord is the last known health state of one endpoint.
type HealthRecord struct {
	Endpoint            string
	URL                 string
	Status              Status
	LastChecked         time.Time
	Latency             time.Duration
	StatusCode          int
	ConsecutiveFailures int
}

// Healthy reports whether the record classifies its endpoint as routable.
func (r HealthRecord) Healthy() bool {
	return r.Status == StatusHealthy
}

type healthRecordJSON struct {
	Endpoint            string     `json:"endpoint"`
	URL                 string     `json:"url"`
	Status              Status     `json:"status"`
	LastCheck           *time.Time `json:"last_check"`
	Latency             float64    `json:"latency"`
	StatusCode          int        `json:"status_code,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
}

// MarshalJSON renders latency in seconds and a null last_check for records
// that have never been probed.
func (r HealthRecord) MarshalJSON() ([]byte, error) {
	out := healthRecordJSON{
		Endpoint:            r.Endpoint,
		URL:                 r.URL,
		Status:              r.Status,
		Latency:             r.Latency.Seconds(),
		StatusCode:          r.StatusCode,
		ConsecutiveFailures: r.ConsecutiveFailures,
	}

	if !r.LastChecked.IsZero() {
		t := r.LastChecked
		out.LastCheck = &t
	}

	return json.Marshal(out)
}

// ProbeResult is the raw outcome of a single health probe.
type ProbeResult struct {
	Status     Status
	CheckedAt  time.Time
	Latency    time.Duration
	StatusCode int
}
