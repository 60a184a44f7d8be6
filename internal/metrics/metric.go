package metrics

import (
	"encoding/json"
	"time"
)

// Metric is one recorded request outcome. It is never modified after Record.
type Metric struct {
	Service    string
	Endpoint   string
	Method     string
	StatusCode int
	Latency    time.Duration
	Timestamp  time.Time
}

// IsError reports whether the outcome counts toward error_count.
func (m Metric) IsError() bool {
	return m.StatusCode >= 400
}

type metricJSON struct {
	Service        string    `json:"service"`
	Endpoint       string    `json:"endpoint"`
	Method         string    `json:"method"`
	StatusCode     int       `json:"status_code"`
	LatencySeconds float64   `json:"latency_seconds"`
	Timestamp      time.Time `json:"timestamp"`
}

func (m Metric) MarshalJSON() ([]byte, error) {
	return json.Marshal(metricJSON{
		Service:        m.Service,
		Endpoint:       m.Endpoint,
		Method:         m.Method,
		StatusCode:     m.StatusCode,
		LatencySeconds: m.Latency.Seconds(),
		Timestamp:      m.Timestamp,
	})
}

func (m *Metric) UnmarshalJSON(data []byte) error {
	var raw metricJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = Metric{
		Service:    raw.Service,
		Endpoint:   raw.Endpoint,
		Method:     raw.Method,
		StatusCode: raw.StatusCode,
		Latency:    secondsToDuration(raw.LatencySeconds),
		Timestamp:  raw.Timestamp,
	}
	return nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Key identifies a counter series.
type Key struct {
	Service  string `json:"service"`
	Endpoint string `json:"endpoint"`
}

// Counter holds the derived totals for one Key.
type Counter struct {
	Requests int64 `json:"request_count"`
	Errors   int64 `json:"error_count"`
}
