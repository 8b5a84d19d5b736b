package plugin

import (
	"fmt"
	"sort"
	"sync"
)

// OptionBuildMode is the option key under which the effective build mode is
// handed to every builtin factory.
const OptionBuildMode = "buildMode"

// Factory builds a builtin plugin from its config options.
type Factory func(options map[string]any) (Plugin, error)

// Registry maps builtin plugin names to factories so config can refer to them by name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Returns an error if the name is already taken.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("plugin name is required")
	}
	if factory == nil {
		return fmt.Errorf("cannot register nil factory for %s", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("plugin %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// New instantiates the builtin named name.
func (r *Registry) New(name string, options map[string]any) (Plugin, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("plugin %s not found", name)
	}
	p, err := factory(options)
	if err != nil {
		return nil, fmt.Errorf("create plugin %s: %w", name, err)
	}
	return p, nil
}

// Has checks if a builtin with the given name exists.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
