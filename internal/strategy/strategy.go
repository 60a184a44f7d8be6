package strategy

import (
	"errors"
	"fmt"

	"github.com/angeloszaimis/health-router/internal/endpoint"
)

const (
	TypeHealthAware = "health-aware"
	TypeNaive       = "naive"
)

// ErrNoHealthyEndpoint is returned when a full ring cycle finds no healthy
// endpoint.
var ErrNoHealthyEndpoint = errors.New("no healthy endpoint available")

// ErrUnknownStrategy is returned by New for an unsupported strategy type.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Selector picks the next endpoint for a request.
type Selector interface {
	Next() (*endpoint.Endpoint, error)
}

// New builds the selector named by kind.
func New(kind string, registry *endpoint.Registry) (*RoundRobin, error) {
	switch kind {
	case TypeHealthAware, "":
		return NewHealthAware(registry), nil
	case TypeNaive:
		return NewNaive(registry), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, kind)
	}
}
