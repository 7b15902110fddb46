package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/grantsync/pkg/config"
	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/logger"
)

// Factory opens a backend from its configuration section.
type Factory func(ctx context.Context, cfg *config.StoreConfig) (Client, error)

// Registry maps backend names to factories. Backends register themselves
// from init, so a binary only offers the backends it imports.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a backend factory under name.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("store backend %s already registered", name))
	}
	r.factories[name] = factory
	return nil
}

// Open creates the backend selected by cfg.Type.
func (r *Registry) Open(ctx context.Context, cfg *config.StoreConfig) (Client, error) {
	r.mu.RLock()
	factory, exists := r.factories[cfg.Type]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("store backend %s not found", cfg.Type))
	}

	client, err := factory(ctx, cfg)
	if err != nil {
		if errors.HasType(err, errors.ErrorTypeStoreUnavailable) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to open store backend %s", cfg.Type))
	}
	logger.Named("store_registry").Info("store backend opened", zap.String("backend", cfg.Type))
	return client, nil
}

// List returns the registered backend names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has checks if a backend is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[name]
	return exists
}

// Register adds a backend to the global registry. It panics on duplicates
// since it is only called from init.
func Register(name string, factory Factory) {
	if err := globalRegistry.Register(name, factory); err != nil {
		panic(err)
	}
}

// Open creates a backend from the global registry.
func Open(ctx context.Context, cfg *config.StoreConfig) (Client, error) {
	return globalRegistry.Open(ctx, cfg)
}

// Backends lists the globally registered backends.
func Backends() []string {
	return globalRegistry.List()
}

// Close closes client if it holds resources.
func Close(client Client) error {
	if c, ok := client.(Closer); ok {
		return c.Close()
	}
	return nil
}
