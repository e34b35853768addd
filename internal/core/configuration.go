package core

import (
	"sync"

	"github.com/comalice/chartx/internal/model"
)

// Configuration is the set of active states. Reads are safe from any goroutine;
// only the step loop mutates it.
type Configuration struct {
	mu     sync.RWMutex
	doc    *model.Document
	active map[model.NodeID]struct{}
}

// NewConfiguration creates an empty configuration over doc.
func NewConfiguration(doc *model.Document) *Configuration {
	return &Configuration{doc: doc, active: make(map[model.NodeID]struct{})}
}

// Add marks n active.
func (c *Configuration) Add(n model.NodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[n] = struct{}{}
}

// Remove marks n inactive.
func (c *Configuration) Remove(n model.NodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, n)
}

// Has reports whether n is active.
func (c *Configuration) Has(n model.NodeID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.active[n]
	return ok
}

// HasID reports whether the state with the given id is active.
func (c *Configuration) HasID(id string) bool {
	n, ok := c.doc.Lookup(id)
	return ok && c.Has(n)
}

// Len returns the number of active states.
func (c *Configuration) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.active)
}

// List returns the active states in document order.
func (c *Configuration) List() []model.NodeID {
	c.mu.RLock()
	out := make([]model.NodeID, 0, len(c.active))
	for n := range c.active {
		out = append(out, n)
	}
	c.mu.RUnlock()
	c.doc.SortDocumentOrder(out)
	return out
}

// Atomic returns the active atomic states in document order.
func (c *Configuration) Atomic() []model.NodeID {
	all := c.List()
	out := all[:0]
	for _, n := range all {
		if c.doc.Node(n).IsAtomic() {
			out = append(out, n)
		}
	}
	return out
}

// IDs returns the active state ids in document order.
func (c *Configuration) IDs() []string {
	return c.doc.IDs(c.List())
}

// Clear empties the configuration.
func (c *Configuration) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = make(map[model.NodeID]struct{})
}

// Contains returns a membership predicate over the current configuration.
func (c *Configuration) Contains() func(model.NodeID) bool {
	return c.Has
}
