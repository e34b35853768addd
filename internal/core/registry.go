// Package core defines the InvokerRegistry that maps invoke types to factories.
package core

import (
	"sort"
	"strings"
	"sync"
)

// InvokerRegistry maps invoke type names to Invoker factories. A registry may
// be shared by a machine and the machines it invokes.
type InvokerRegistry struct {
	mu        sync.RWMutex
	factories map[string]InvokerFactory
}

// NewInvokerRegistry creates an empty registry.
func NewInvokerRegistry() *InvokerRegistry {
	return &InvokerRegistry{factories: make(map[string]InvokerFactory)}
}

// Register binds a type name to a factory, replacing any previous binding.
func (r *InvokerRegistry) Register(typ string, factory InvokerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[normalizeInvokeType(typ)] = factory
}

// Unregister removes a type binding.
func (r *InvokerRegistry) Unregister(typ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, normalizeInvokeType(typ))
}

// Lookup returns the factory for a type name.
func (r *InvokerRegistry) Lookup(typ string) (InvokerFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[normalizeInvokeType(typ)]
	return f, ok && f != nil
}

// Types returns the registered type names, sorted.
func (r *InvokerRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func normalizeInvokeType(typ string) string {
	return strings.TrimSuffix(strings.TrimSpace(typ), "/")
}
