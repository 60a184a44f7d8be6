package endpoint

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNoEndpoints       = errors.New("at least one endpoint is required")
	ErrDuplicateEndpoint = errors.New("duplicate endpoint name")
	ErrUnknownEndpoint   = errors.New("unknown endpoint")
)

// Registry owns exactly one HealthRecord per Endpoint. Reads never block on
// probe I/O; the prober computes a result first and then applies it here.
type Registry struct {
	endpoints []*Endpoint
	index     map[string]int

	mutex   sync.RWMutex
	records []HealthRecord
}

// NewRegistry creates a registry over a fixed, ordered endpoint list. Every
// endpoint starts healthy with a zero LastChecked so traffic can flow before
// the first probe round completes.
func NewRegistry(endpoints []*Endpoint) (*Registry, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	r := &Registry{
		endpoints: make([]*Endpoint, len(endpoints)),
		index:     make(map[string]int, len(endpoints)),
		records:   make([]HealthRecord, len(endpoints)),
	}

	for i, e := range endpoints {
		if e == nil {
			return nil, fmt.Errorf("endpoint %d is nil", i)
		}

		if _, exists := r.index[e.Name()]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEndpoint, e.Name())
		}

		r.endpoints[i] = e
		r.index[e.Name()] = i
		r.records[i] = HealthRecord{
			Endpoint: e.Name(),
			URL:      e.url.String(),
			Status:   StatusHealthy,
		}
	}

	return r, nil
}

// Len returns the number of endpoints. It never changes after construction.
func (r *Registry) Len() int {
	return len(r.endpoints)
}

// At returns the endpoint at ring position i.
func (r *Registry) At(i int) *Endpoint {
	return r.endpoints[i]
}

// Endpoints returns the ordered endpoint list.
func (r *Registry) Endpoints() []*Endpoint {
	out := make([]*Endpoint, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}

// IsHealthy reports whether the endpoint at ring position i is healthy.
func (r *Registry) IsHealthy(i int) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.records[i].Healthy()
}

// Health returns the most recent record for the named endpoint.
func (r *Registry) Health(name string) (HealthRecord, bool) {
	i, ok := r.index[name]
	if !ok {
		return HealthRecord{}, false
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.records[i], true
}

// Snapshot returns every record in ring order.
func (r *Registry) Snapshot() []HealthRecord {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]HealthRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Observe applies a probe result to the named endpoint and returns the records
// before and after. A healthy result resets the consecutive failure count, any
// other result increments it.
func (r *Registry) Observe(name string, res ProbeResult) (prev, cur HealthRecord, err error) {
	i, ok := r.index[name]
	if !ok {
		return HealthRecord{}, HealthRecord{}, fmt.Errorf("%w: %s", ErrUnknownEndpoint, name)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	prev = r.records[i]
	cur = prev
	cur.Status = res.Status
	cur.LastChecked = res.CheckedAt
	cur.Latency = res.Latency
	cur.StatusCode = res.StatusCode

	if res.Status == StatusHealthy {
		cur.ConsecutiveFailures = 0
	} else {
		cur.ConsecutiveFailures++
	}

	r.records[i] = cur
	return prev, cur, nil
}
