// Package registry implements the transport registry used to route model
// references to the vendor transport that serves them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pyre-llm/pyre/internal/domain"
)

// Registry implements the domain.TransportRegistry interface.
type Registry struct {
	mu         sync.RWMutex
	transports map[string]domain.Transport
}

// NewRegistry creates a new transport registry.
func NewRegistry() *Registry {
	return &Registry{
		transports: make(map[string]domain.Transport),
	}
}

// Register adds a transport to the registry.
func (r *Registry) Register(_ context.Context, t domain.Transport) error {
	if t == nil {
		return errors.New("transport cannot be nil")
	}

	name := t.Name()
	if name == "" {
		return errors.New("transport name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.transports[name]; exists {
		return fmt.Errorf("transport %s already registered", name)
	}

	r.transports[name] = t
	return nil
}

// Get retrieves a transport by name.
func (r *Registry) Get(_ context.Context, name string) (domain.Transport, error) {
	if name == "" {
		return nil, errors.New("transport name cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.transports[name]
	if !exists {
		return nil, fmt.Errorf("transport %s not found", name)
	}
	return t, nil
}

// GetByModel routes a model reference to a transport that supports it.
func (r *Registry) GetByModel(ctx context.Context, model string) (domain.Transport, error) {
	if model == "" {
		return nil, errors.New("model cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.transports {
		if t.Supports(ctx, model) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("no transport found for model: %s", model)
}

// List returns all registered transport names.
func (r *Registry) List(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.transports))
	for name := range r.transports {
		names = append(names, name)
	}
	return names, nil
}
