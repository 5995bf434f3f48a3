package domain

import (
	"context"
	"time"
)

// Transport speaks one vendor's wire dialect. Generate performs the network
// call and returns an ordered particle sequence; the channel is closed after
// the final particle. Failures to open the call (connection errors, HTTP
// status errors) are returned synchronously so the retry layer above can
// classify them; failures after the first particle arrive in-band as error
// particles. A transport must observe ctx and stop producing promptly when it
// is cancelled.
type Transport interface {
	// Generate opens the call and returns the particle stream.
	Generate(ctx context.Context, req *GenRequest) (<-chan Particle, error)

	// Name returns the transport identifier (vendor label).
	Name() string

	// Supports checks whether the transport can serve the given model.
	Supports(ctx context.Context, model string) bool
}

// TransportRegistry manages available transports.
type TransportRegistry interface {
	// Register adds a transport to the registry.
	Register(ctx context.Context, t Transport) error

	// Get retrieves a transport by name.
	Get(ctx context.Context, name string) (Transport, error)

	// GetByModel routes a model reference to a transport that supports it.
	GetByModel(ctx context.Context, model string) (Transport, error)

	// List returns all registered transport names.
	List(ctx context.Context) ([]string, error)
}

// ModelRegistry is the read-only source of each model's declared initial
// parameter values and pricing. The orchestrator only consumes resolved
// values.
type ModelRegistry interface {
	// Spec returns the registry entry for a model reference.
	Spec(ctx context.Context, model string) (ModelSpec, error)
}

// CostCalculator calculates cost based on token usage.
type CostCalculator interface {
	// Calculate returns the cost breakdown for a given model and usage.
	Calculate(ctx context.Context, model string, usage Usage) (CostBreakdown, error)
}

// PricingRegistry maintains pricing information for models.
type PricingRegistry interface {
	// GetPricing returns pricing config for a model.
	GetPricing(ctx context.Context, model string) (PricingConfig, error)

	// RegisterPricing adds pricing for a model.
	RegisterPricing(ctx context.Context, model string, config PricingConfig) error
}

// ResponseCache stores completed non-streaming results keyed by request hash.
type ResponseCache interface {
	// Get returns the cached message or ErrCacheMiss.
	Get(ctx context.Context, key string) (*Message, error)

	// Set stores a message under key with a TTL.
	Set(ctx context.Context, key string, msg *Message, ttl time.Duration) error
}

// RateLimitHook is an optional vendor hook awaited once per call before the
// transport is invoked. It may suspend (to pace requests) or reject.
type RateLimitHook func(ctx context.Context, model string) error

// DebugSink receives one structured frame per call for developer inspection.
// Recording has no effect on the generation result.
type DebugSink interface {
	Record(frame DebugFrame)
}
