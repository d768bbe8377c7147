package pubsub

import (
	"sync"

	"goa.design/wamp/telemetry"
)

type (
	// Registry owns named buses. Lookup creates a bus on first access with
	// first-write-wins semantics; subsequent lookups of the same name return
	// the same bus. The zero Registry is not usable; construct with
	// NewRegistry.
	Registry struct {
		logger  telemetry.Logger
		metrics telemetry.Metrics

		mu    sync.Mutex
		buses map[string]*Bus
	}

	// RegistryOption configures a Registry.
	RegistryOption func(*Registry)
)

// WithLogger sets the logger propagated to buses created by the registry.
func WithLogger(logger telemetry.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// WithMetrics sets the metrics recorder propagated to buses created by the
// registry.
func WithMetrics(metrics telemetry.Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = metrics }
}

// NewRegistry constructs an empty bus registry. Logging and metrics default
// to no-ops.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logger:  telemetry.NewNoopLogger(),
		metrics: telemetry.NewNoopMetrics(),
		buses:   make(map[string]*Bus),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Named returns the bus registered under name, creating it on first access.
func (r *Registry) Named(name string) *Bus {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buses[name]
	if !ok {
		b = newBus(name, r.logger, r.metrics)
		r.buses[name] = b
	}
	return b
}

// defaultRegistry backs the package-level Named lookup. Components that want
// isolation inject their own Registry; the package-level lookup is sugar for
// the common process-wide case.
var defaultRegistry = NewRegistry()

// Named returns the process-wide bus registered under name, creating it on
// first access.
func Named(name string) *Bus {
	return defaultRegistry.Named(name)
}
