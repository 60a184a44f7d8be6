package metrics

import (
	"slices"
	"sort"
	"time"
)

// Summary is the aggregate view over a set of metrics. Latencies are in
// seconds and ErrorRate is a percentage.
type Summary struct {
	TotalRequests int64                       `json:"total_requests"`
	TotalErrors   int64                       `json:"total_errors"`
	ErrorRate     float64                     `json:"error_rate"`
	AvgLatency    float64                     `json:"avg_latency"`
	P50Latency    float64                     `json:"p50_latency"`
	P95Latency    float64                     `json:"p95_latency"`
	P99Latency    float64                     `json:"p99_latency"`
	Services      map[string]ServiceBreakdown `json:"per_service_breakdown"`
	Period        Period                      `json:"period"`
}

// ServiceBreakdown aggregates the metrics of one service.
type ServiceBreakdown struct {
	TotalRequests int64              `json:"total_requests"`
	Errors        int64              `json:"errors"`
	ErrorRate     float64            `json:"error_rate"`
	AvgLatency    float64            `json:"avg_latency"`
	Endpoints     map[string]Counter `json:"endpoints"`
}

// Period spans the oldest and newest timestamps summarized.
type Period struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// Summarize aggregates ms. An empty input yields zero totals and an empty
// breakdown.
func Summarize(ms []Metric) Summary {
	s := Summary{Services: make(map[string]ServiceBreakdown)}
	if len(ms) == 0 {
		return s
	}

	latencies := make([]time.Duration, 0, len(ms))
	perService := make(map[string][]time.Duration)

	start, end := ms[0].Timestamp, ms[0].Timestamp

	for _, m := range ms {
		s.TotalRequests++
		if m.IsError() {
			s.TotalErrors++
		}
		latencies = append(latencies, m.Latency)

		sb := s.Services[m.Service]
		if sb.Endpoints == nil {
			sb.Endpoints = make(map[string]Counter)
		}
		sb.TotalRequests++
		ctr := sb.Endpoints[m.Endpoint]
		ctr.Requests++
		if m.IsError() {
			sb.Errors++
			ctr.Errors++
		}
		sb.Endpoints[m.Endpoint] = ctr
		s.Services[m.Service] = sb
		perService[m.Service] = append(perService[m.Service], m.Latency)

		if m.Timestamp.Before(start) {
			start = m.Timestamp
		}
		if m.Timestamp.After(end) {
			end = m.Timestamp
		}
	}

	s.ErrorRate = percent(s.TotalErrors, s.TotalRequests)

	sorted := slices.Clone(latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	s.AvgLatency = average(sorted).Seconds()
	s.P50Latency = percentile(sorted, 0.50).Seconds()
	s.P95Latency = percentile(sorted, 0.95).Seconds()
	s.P99Latency = percentile(sorted, 0.99).Seconds()

	for name, sb := range s.Services {
		sb.ErrorRate = percent(sb.Errors, sb.TotalRequests)
		sb.AvgLatency = average(perService[name]).Seconds()
		s.Services[name] = sb
	}

	s.Period = Period{Start: &start, End: &end}
	return s
}

// MeanLatency returns the arithmetic mean latency of ms, or 0 for no input.
func MeanLatency(ms []Metric) time.Duration {
	if len(ms) == 0 {
		return 0
	}

	var sum time.Duration
	for _, m := range ms {
		sum += m.Latency
	}
	return sum / time.Duration(len(ms))
}

// ErrorCount returns how many of ms have a status code of 400 or above.
func ErrorCount(ms []Metric) int {
	n := 0
	for _, m := range ms {
		if m.IsError() {
			n++
		}
	}
	return n
}

func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
