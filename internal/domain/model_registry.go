package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// InMemoryModelRegistry stores model specs in memory. It doubles as the
// pricing source for registered models.
type InMemoryModelRegistry struct {
	mu    sync.RWMutex
	specs map[string]ModelSpec
}

// NewInMemoryModelRegistry creates a new in-memory model registry.
func NewInMemoryModelRegistry() *InMemoryModelRegistry {
	return &InMemoryModelRegistry{
		specs: make(map[string]ModelSpec),
	}
}

// Register adds a model spec to the registry.
func (r *InMemoryModelRegistry) Register(_ context.Context, spec ModelSpec) error {
	if spec.ID == "" {
		return errors.New("model id cannot be empty")
	}
	if spec.Vendor == "" {
		return errors.New("model vendor cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.specs[spec.ID]; exists {
		return fmt.Errorf("model %s already registered", spec.ID)
	}

	r.specs[spec.ID] = spec
	return nil
}

// Spec retrieves the registry entry for a model reference.
func (r *InMemoryModelRegistry) Spec(_ context.Context, model string) (ModelSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, exists := r.specs[model]
	if !exists {
		return ModelSpec{}, fmt.Errorf("model not registered: %s", model)
	}

	return spec, nil
}

// GetPricing implements PricingRegistry over the registered specs.
func (r *InMemoryModelRegistry) GetPricing(ctx context.Context, model string) (PricingConfig, error) {
	spec, err := r.Spec(ctx, model)
	if err != nil {
		return PricingConfig{}, err
	}
	return spec.Pricing, nil
}

// RegisterPricing updates pricing for an already registered model.
func (r *InMemoryModelRegistry) RegisterPricing(
	_ context.Context,
	model string,
	config PricingConfig,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	spec, exists := r.specs[model]
	if !exists {
		return fmt.Errorf("model not registered: %s", model)
	}
	spec.Pricing = config
	r.specs[model] = spec
	return nil
}
