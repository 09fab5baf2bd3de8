// Package networks defines the common interface for share count sources
package networks

import (
	"context"
	"sort"
	"sync"
)

// Adapter defines the minimal interface that every network integration must implement
type Adapter interface {
	// Name returns the network identifier (e.g., "facebook", "twitter")
	Name() string

	// Fetch retrieves the share count for url. Failures are reported through
	// the error only; a successful count is never negative except for
	// networks that report the unknown count on purpose.
	Fetch(ctx context.Context, url string) (int, error)
}

// FetchFunc adapts a plain function to the Adapter interface
type FetchFunc func(ctx context.Context, url string) (int, error)

type funcAdapter struct {
	name string
	fn   FetchFunc
}

// AdapterFunc returns an Adapter named name that calls fn
func AdapterFunc(name string, fn FetchFunc) Adapter {
	return &funcAdapter{name: name, fn: fn}
}

func (a *funcAdapter) Name() string { return a.name }

func (a *funcAdapter) Fetch(ctx context.Context, url string) (int, error) {
	return a.fn(ctx, url)
}

// Registry manages available network adapters
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates a new adapter registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register adds an adapter to the registry, replacing any adapter with the same name
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Name()] = adapter
}

// Get retrieves an adapter by network name
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, exists := r.adapters[name]
	return adapter, exists
}

// List returns all registered network names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// IsValidNetwork reports whether name has a registered adapter
func (r *Registry) IsValidNetwork(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// InvalidNetworks returns the names that have no registered adapter, in input order
func (r *Registry) InvalidNetworks(names []string) []string {
	var invalid []string
	for _, name := range names {
		if !r.IsValidNetwork(name) {
			invalid = append(invalid, name)
		}
	}
	return invalid
}
