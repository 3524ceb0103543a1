package application

import (
	"strings"
	"sync"
)

// ToolRegistry holds the ordered set of tool names the next run is allowed
// to call. Changes never affect a run already in flight; the session reads
// a snapshot when it creates the run.
type ToolRegistry struct {
	mu    sync.Mutex
	names []string
}

func NewToolRegistry(names ...string) *ToolRegistry {
	registry := &ToolRegistry{}
	for _, name := range names {
		registry.Allow(name)
	}
	return registry
}

// Allow adds name to the registry and reports whether the set changed.
func (r *ToolRegistry) Allow(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.names {
		if existing == name {
			return false
		}
	}
	r.names = append(r.names, name)
	return true
}

// Disallow removes name from the registry and reports whether the set changed.
func (r *ToolRegistry) Disallow(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.names {
		if existing == name {
			r.names = append(r.names[:i], r.names[i+1:]...)
			return true
		}
	}
	return false
}

// Allowed returns the registered names in insertion order.
func (r *ToolRegistry) Allowed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}
