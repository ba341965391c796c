package providers

import (
	"errors"
	"sync"

	"github.com/postpulse/ai-router/models"
)

var (
	// ErrAdapterNotFound is returned when a provider is not registered.
	ErrAdapterNotFound = errors.New("provider adapter not found")

	// ErrAdapterAlreadyRegistered is returned on duplicate registration.
	ErrAdapterAlreadyRegistered = errors.New("provider adapter already registered")
)

// Registry holds the set of configured provider adapters. It is safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.ProviderID]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[models.ProviderID]Adapter),
	}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return errors.New("adapter cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := adapter.Type()
	if !id.Valid() {
		return errors.New("adapter has unknown provider type")
	}
	if _, exists := r.adapters[id]; exists {
		return ErrAdapterAlreadyRegistered
	}

	r.adapters[id] = adapter
	return nil
}

// Get retrieves an adapter by provider ID.
func (r *Registry) Get(id models.ProviderID) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, exists := r.adapters[id]
	if !exists {
		return nil, ErrAdapterNotFound
	}
	return adapter, nil
}

// List returns the registered provider IDs in the canonical order.
func (r *Registry) List() []models.ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]models.ProviderID, 0, len(r.adapters))
	for _, id := range models.AllProviders {
		if _, ok := r.adapters[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Count returns the number of registered adapters.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}
