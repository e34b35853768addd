// Package primitives defines the foundational data structures for the chart engine.
// TransitionConfig defines a transition: event descriptors, guard, targets, actions.
//
// Event holds space separated descriptors ("a.b c *"); empty means eventless.
// Target holds space separated state ids; empty means targetless.
// Cond is an expression for the datamodel evaluator; Guard is a Go predicate.
// When both are set both must hold.
package primitives

import (
	"fmt"
	"strings"
)

// GuardFunc is a Go guard evaluated against the data context and the current event.
type GuardFunc func(ctx *Context, evt Event) bool

// TransitionType selects external or internal transition semantics.
type TransitionType string

const (
	ExternalTransition TransitionType = "external"
	InternalTransition TransitionType = "internal"
)

// TransitionConfig defines a single transition.
type TransitionConfig struct {
	Event   string         `json:"event,omitempty" yaml:"event,omitempty"`
	Cond    string         `json:"cond,omitempty" yaml:"cond,omitempty"`
	Guard   GuardFunc      `json:"-" yaml:"-"`
	Target  string         `json:"target,omitempty" yaml:"target,omitempty"`
	Type    TransitionType `json:"type,omitempty" yaml:"type,omitempty"`
	Actions []ActionConfig `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// Events splits Event into descriptors.
func (t *TransitionConfig) Events() []string {
	return strings.Fields(t.Event)
}

// Targets splits Target into state ids.
func (t *TransitionConfig) Targets() []string {
	return strings.Fields(t.Target)
}

// IsInternal reports whether the transition is declared internal.
func (t *TransitionConfig) IsInternal() bool {
	return t.Type == InternalTransition
}

// Validate checks descriptor syntax, the transition type and the actions.
func (t *TransitionConfig) Validate() error {
	switch t.Type {
	case "", ExternalTransition, InternalTransition:
	default:
		return CloneError(ErrInvalidConfig, fmt.Sprintf("invalid transition type %q", t.Type), nil, nil)
	}
	for _, desc := range t.Events() {
		if desc == "*" {
			continue
		}
		trimmed := strings.TrimSuffix(desc, ".*")
		if trimmed == "" || strings.HasPrefix(trimmed, ".") || strings.Contains(trimmed, "..") || strings.Contains(trimmed, "*") {
			return CloneError(ErrInvalidConfig, fmt.Sprintf("invalid event descriptor %q", desc), nil, nil)
		}
	}
	if len(t.Events()) == 0 && len(t.Targets()) == 0 && len(t.Actions) == 0 && t.Cond == "" && t.Guard == nil {
		return CloneError(ErrInvalidConfig, "transition has no event, target, guard or actions", nil, nil)
	}
	return ValidateActions(t.Actions)
}
