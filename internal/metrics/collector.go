package metrics

import (
	"sync"
	"time"
)

const (
	DefaultCapacity   = 1000
	DefaultQueryLimit = 100
)

// Collector is a fixed-capacity FIFO store of request outcomes.
type Collector struct {
	mutex    sync.RWMutex
	buf      []Metric
	head     int
	size     int
	counters map[Key]*Counter

	now func() time.Time
}

type CollectorOption func(*Collector)

// WithClock overrides the time source used for default timestamps and windows.
func WithClock(now func() time.Time) CollectorOption {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCollector creates a collector holding at most capacity metrics. A
// non-positive capacity falls back to DefaultCapacity.
func NewCollector(capacity int, opts ...CollectorOption) *Collector {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	c := &Collector{
		buf:      make([]Metric, capacity),
		counters: make(map[Key]*Counter),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Capacity returns the maximum number of retained metrics.
func (c *Collector) Capacity() int {
	return len(c.buf)
}

// Len returns the number of metrics currently retained.
func (c *Collector) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.size
}

// Record appends m, evicting the oldest entry when the buffer is full. A zero
// timestamp is replaced with the current time.
func (c *Collector) Record(m Metric) {
	if m.Timestamp.IsZero() {
		m.Timestamp = c.now()
	}

	c.mutex.Lock()
	if c.size == len(c.buf) {
		c.uncount(c.buf[c.head])
		c.buf[c.head] = m
		c.head = (c.head + 1) % len(c.buf)
	} else {
		c.buf[(c.head+c.size)%len(c.buf)] = m
		c.size++
	}
	c.count(m)
	c.mutex.Unlock()
}

func (c *Collector) count(m Metric) {
	k := Key{Service: m.Service, Endpoint: m.Endpoint}
	ctr, ok := c.counters[k]
	if !ok {
		ctr = &Counter{}
		c.counters[k] = ctr
	}

	ctr.Requests++
	if m.IsError() {
		ctr.Errors++
	}
}

func (c *Collector) uncount(m Metric) {
	k := Key{Service: m.Service, Endpoint: m.Endpoint}
	ctr, ok := c.counters[k]
	if !ok {
		return
	}

	ctr.Requests--
	if m.IsError() {
		ctr.Errors--
	}

	if ctr.Requests <= 0 {
		delete(c.counters, k)
	}
}

// snapshot returns the retained metrics oldest first. Callers hold the lock.
func (c *Collector) snapshot() []Metric {
	out := make([]Metric, c.size)
	for i := 0; i < c.size; i++ {
		out[i] = c.buf[(c.head+i)%len(c.buf)]
	}
	return out
}

// All returns every retained metric, oldest first.
func (c *Collector) All() []Metric {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.snapshot()
}

// Filter selects metrics for Query. Empty fields match everything.
type Filter struct {
	Service  string
	Endpoint string
	Limit    int
}

// QueryResult carries the selected metrics plus how many matched in total.
type QueryResult struct {
	Metrics  []Metric `json:"metrics"`
	Total    int      `json:"total"`
	Returned int      `json:"returned"`
}

// Query returns the most recent metrics matching f, most recent last,
// truncated to f.Limit (DefaultQueryLimit when not positive).
func (c *Collector) Query(f Filter) QueryResult {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	c.mutex.RLock()
	all := c.snapshot()
	c.mutex.RUnlock()

	matched := make([]Metric, 0, len(all))
	for _, m := range all {
		if f.Service != "" && m.Service != f.Service {
			continue
		}
		if f.Endpoint != "" && m.Endpoint != f.Endpoint {
			continue
		}
		matched = append(matched, m)
	}

	recent := matched
	if len(recent) > limit {
		recent = recent[len(recent)-limit:]
	}

	return QueryResult{
		Metrics:  recent,
		Total:    len(matched),
		Returned: len(recent),
	}
}

// WindowSince returns every metric whose timestamp falls within the trailing
// duration d, oldest first.
func (c *Collector) WindowSince(d time.Duration) []Metric {
	cutoff := c.now().Add(-d)

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	out := make([]Metric, 0, c.size)
	for i := 0; i < c.size; i++ {
		m := c.buf[(c.head+i)%len(c.buf)]
		if m.Timestamp.After(cutoff) {
			out = append(out, m)
		}
	}
	return out
}

// Counters returns a copy of the per (service, endpoint) counters.
func (c *Collector) Counters() map[Key]Counter {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	out := make(map[Key]Counter, len(c.counters))
	for k, v := range c.counters {
		out[k] = *v
	}
	return out
}

// Summary aggregates the retained metrics.
func (c *Collector) Summary() Summary {
	return Summarize(c.All())
}
