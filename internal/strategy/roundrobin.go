package strategy

import (
	"sync/atomic"

	"github.com/angeloszaimis/health-router/internal/endpoint"
)

// RoundRobin rotates a shared cursor over the registry's ring.
type RoundRobin struct {
	registry    *endpoint.Registry
	healthAware bool
	cursor      atomic.Uint64
}

// NewHealthAware returns a rotation that skips endpoints not currently healthy.
func NewHealthAware(registry *endpoint.Registry) *RoundRobin {
	return &RoundRobin{registry: registry, healthAware: true}
}

// NewNaive returns a rotation that ignores health entirely.
func NewNaive(registry *endpoint.Registry) *RoundRobin {
	return &RoundRobin{registry: registry}
}

// Name returns the strategy type.
func (rr *RoundRobin) Name() string {
	if rr.healthAware {
		return TypeHealthAware
	}
	return TypeNaive
}

// Cursor returns the number of ring positions consumed so far.
func (rr *RoundRobin) Cursor() uint64 {
	return rr.cursor.Load()
}

// Next reserves one ring position and scans forward from it for at most one
// full cycle. The cursor ends up advanced by one position per endpoint
// examined, so a sequence of calls walks the ring in order with unhealthy
// entries skipped in place.
func (rr *RoundRobin) Next() (*endpoint.Endpoint, error) {
	n := uint64(rr.registry.Len())

	start := rr.cursor.Add(1) - 1

	for offset := uint64(0); offset < n; offset++ {
		pos := int((start + offset) % n)

		if !rr.healthAware || rr.registry.IsHealthy(pos) {
			if offset > 0 {
				rr.cursor.Add(offset)
			}
			return rr.registry.At(pos), nil
		}
	}

	rr.cursor.Add(n - 1)
	return nil, ErrNoHealthyEndpoint
}
