package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// InTreeRegistry is the set of plugin factories compiled into the binary.
// Sources of the form builtin:<name> are served from it.
type InTreeRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewInTreeRegistry creates an empty in-tree registry.
func NewInTreeRegistry() *InTreeRegistry {
	return &InTreeRegistry{factories: make(map[string]Factory)}
}

// Register adds a factory under name.
func (r *InTreeRegistry) Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("in-tree plugin needs a name and a factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("in-tree plugin %q is already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister is Register that panics on error. Meant for init-time tables.
func (r *InTreeRegistry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Names returns the registered names, sorted.
func (r *InTreeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sources returns a builtin: source for every registered name, sorted.
func (r *InTreeRegistry) Sources() []string {
	names := r.Names()
	sources := make([]string, 0, len(names))
	for _, name := range names {
		sources = append(sources, SchemeBuiltin+":"+name)
	}
	return sources
}

// Len returns the number of registered factories.
func (r *InTreeRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}

// Load implements ModuleLoader. The module exposes the factory as NewPlugin.
func (r *InTreeRegistry) Load(_ context.Context, ref string) (Module, error) {
	r.mu.RLock()
	factory, ok := r.factories[ref]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no in-tree plugin named %q", ref)
	}
	return symbolModule{SymbolNewPlugin: factory}, nil
}
