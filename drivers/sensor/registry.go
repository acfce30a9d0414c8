package sensor

import (
	"sort"
	"sync"
)

// Factory builds a fresh, unconfigured driver instance.
type Factory func() Driver

// Registry maps sensor type names to factories. Instances are explicit:
// construct one, register the types you ship, and hand it to the module.
// There is no package-level default.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds a type name to a factory. A duplicate name is rejected and
// logged; the first registration wins.
func (r *Registry) Register(typeName string, f Factory) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[typeName]; exists {
		println("Warn: sensor registry: duplicate type", typeName, "rejected")
		return false
	}
	r.factories[typeName] = f
	return true
}

// Create instantiates a driver by type name, nil when unknown.
func (r *Registry) Create(typeName string) Driver {
	r.mu.Lock()
	f := r.factories[typeName]
	r.mu.Unlock()
	if f == nil {
		return nil
	}
	return f()
}

// Has reports whether a type name is registered.
func (r *Registry) Has(typeName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.factories[typeName]
	return ok
}

// Types lists registered type names, sorted for stable display.
func (r *Registry) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
