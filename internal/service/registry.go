package service

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	// ErrRegistryFrozen is returned by Register once Freeze has been called.
	ErrRegistryFrozen = errors.New("engine registry is frozen")

	// ErrEngineNotFound is returned by Lookup for an unregistered engine type.
	ErrEngineNotFound = errors.New("engine type not registered")
)

// Factory builds the Invoker serving one service configuration.
type Factory func(cfg Config) (Invoker, error)

// Registry maps engine-type strings to factories.
//
// A Registry is populated once at startup and then frozen. Register after
// Freeze is rejected. Lookup is safe for concurrent use; after Freeze the
// map is never written again so readers do not take the lock.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	frozen    atomic.Bool
}

// NewRegistry creates an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for engineType.
func (r *Registry) Register(engineType string, f Factory) error {
	if engineType == "" {
		return fmt.Errorf("register: empty engine type")
	}
	if f == nil {
		return fmt.Errorf("register %q: nil factory", engineType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return fmt.Errorf("register %q: %w", engineType, ErrRegistryFrozen)
	}
	if _, exists := r.factories[engineType]; exists {
		return fmt.Errorf("register %q: engine type already registered", engineType)
	}
	r.factories[engineType] = f
	return nil
}

// Freeze ends the registration phase. It is idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Lookup returns the factory for engineType.
func (r *Registry) Lookup(engineType string) (Factory, error) {
	if r.frozen.Load() {
		return r.lookup(engineType)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(engineType)
}

func (r *Registry) lookup(engineType string) (Factory, error) {
	f, ok := r.factories[engineType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEngineNotFound, engineType)
	}
	return f, nil
}

// EngineTypes returns the registered engine types in sorted order.
func (r *Registry) EngineTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
