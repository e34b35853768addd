// Package primitives provides foundational data structures for the chart engine.
// Context is the scoped variable store the evaluators read and write.
package primitives

import (
	"reflect"
	"sync"
)

// Reserved system variable names bound by the executor into the root context.
const (
	VarSessionID    = "_sessionid"
	VarName         = "_name"
	VarEvent        = "_event"
	VarIOProcessors = "_ioprocessors"
	VarIn           = "_in"
)

// Context is a thread-safe scoped key-value store.
// Lookups check local variables first and then delegate to the parent scope.
type Context struct {
	mu     sync.RWMutex
	vars   map[string]any
	parent *Context
}

// NewContext creates an empty root context.
func NewContext() *Context {
	return &Context{vars: make(map[string]any)}
}

// NewChildContext creates an empty context delegating lookups to parent.
func NewChildContext(parent *Context) *Context {
	return &Context{vars: make(map[string]any), parent: parent}
}

// Parent returns the enclosing scope, nil for a root context.
func (c *Context) Parent() *Context {
	return c.parent
}

// Get retrieves a value by name, searching enclosing scopes.
func (c *Context) Get(name string) (any, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		v, ok := cur.vars[name]
		cur.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

// Has reports whether name is defined in this scope or an enclosing one.
func (c *Context) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

// Set assigns name in the nearest scope that defines it, or locally when no
// scope does.
func (c *Context) Set(name string, val any) {
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		if _, ok := cur.vars[name]; ok {
			cur.vars[name] = val
			cur.mu.Unlock()
			return
		}
		cur.mu.Unlock()
	}
	c.SetLocal(name, val)
}

// SetLocal always assigns name in this scope, shadowing enclosing scopes.
func (c *Context) SetLocal(name string, val any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vars[name] = val
}

// Delete removes a local variable.
func (c *Context) Delete(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.vars, name)
}

// Vars returns a copy of the local variables.
func (c *Context) Vars() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.vars))
	for k, v := range c.vars {
		out[k] = v
	}
	return out
}

// Snapshot returns a serializable copy of the local variables, skipping
// interpreter-bound system variables and function values.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := make(map[string]any, len(c.vars))
	for k, v := range c.vars {
		if isSystemVar(k) || isFunc(v) {
			continue
		}
		snap[k] = v
	}
	return snap
}

// Restore replaces the local variables (system variables are preserved).
func (c *Context) Restore(snap map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.vars {
		if !isSystemVar(k) {
			delete(c.vars, k)
		}
	}
	for k, v := range snap {
		c.vars[k] = v
	}
}

func isSystemVar(name string) bool {
	switch name {
	case VarSessionID, VarName, VarEvent, VarIOProcessors, VarIn:
		return true
	}
	return false
}

func isFunc(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}
