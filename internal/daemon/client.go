// Package daemon defines the contract with the external profiling daemon:
// an optional process that can push on-demand configuration and report GPU
// context counts. The daemon is a collaborator, not part of the control
// plane; without a registered client factory, daemon polling is a no-op.
package daemon

import (
	"context"
	"sync"
)

// Client is the two-call daemon contract. Implementations must bound their
// own timeouts; the scheduler does not cancel an in-flight call.
type Client interface {
	// ReadOnDemandConfig returns pending on-demand config text, or empty
	// when nothing is pending. events and activities state which profiler
	// kinds the caller can currently accept.
	ReadOnDemandConfig(ctx context.Context, events, activities bool) (string, error)

	// GPUContextCount returns the daemon's context count for a GPU device.
	GPUContextCount(ctx context.Context, device uint32) (int, error)
}

// Factory produces a daemon client. It is invoked lazily, once, by the
// controller that ends up owning the client.
type Factory func() (Client, error)

var registry struct {
	mu      sync.Mutex
	factory Factory
}

// RegisterFactory registers the process-wide client factory. Must be called
// before the controller is constructed; the last registration wins.
func RegisterFactory(f Factory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.factory = f
}

// NewFromRegistered builds a client from the registered factory. Returns
// (nil, nil) when no factory is registered.
func NewFromRegistered() (Client, error) {
	registry.mu.Lock()
	f := registry.factory
	registry.mu.Unlock()

	if f == nil {
		return nil, nil
	}
	return f()
}
