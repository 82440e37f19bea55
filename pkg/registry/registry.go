// Package registry keeps the set of responders the intent classifier may
// route to.
package registry

import (
	"log/slog"
	"sort"
	"sync"

	"orbit/pkg/actor"
)

// Registration binds a responder name to the props that build it.
type Registration struct {
	Name        string
	Description string
	Props       actor.Props
}

// Registry maps responder names to registrations. It is safe for concurrent
// use; registrations are never replaced once made.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Registration
	order   []string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Registration)}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry, creating it on first use.
// Prefer passing a *Registry explicitly; Default exists for init-time
// registration from responder packages.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = New()
	})
	return defaultRegistry
}

// Register adds a responder. Registering a name twice keeps the first entry
// and reports false.
func (r *Registry) Register(name string, props actor.Props, description string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		slog.Debug("Responder already registered, keeping first", "name", name)
		return false
	}
	r.entries[name] = Registration{Name: name, Description: description, Props: props}
	r.order = append(r.order, name)
	slog.Debug("Responder registered", "name", name)
	return true
}

// Get looks up a responder by name.
func (r *Registry) Get(name string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[name]
	return reg, ok
}

// Descriptions returns a snapshot of name to description.
func (r *Registry) Descriptions() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(r.entries))
	for name, reg := range r.entries {
		out[name] = reg.Description
	}
	return out
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len reports how many responders are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// SortedNames returns registered names alphabetically.
func (r *Registry) SortedNames() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}
