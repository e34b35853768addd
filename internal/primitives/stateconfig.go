// Package primitives defines the foundational data structures for the chart engine.
//
// StateConfig represents a state in the chart: atomic, compound, parallel, final,
// or a history pseudostate, with ordered transitions, actions, invocations and
// hierarchical nesting.
package primitives

import (
	"fmt"
	"strings"
)

// StateType defines the possible types of states in the chart.
type StateType string

const (
	Atomic         StateType = "atomic"
	Compound       StateType = "compound"
	Parallel       StateType = "parallel"
	Final          StateType = "final"
	ShallowHistory StateType = "shallowHistory"
	DeepHistory    StateType = "deepHistory"
)

// IsHistory reports whether the type is one of the history pseudostates.
func (t StateType) IsHistory() bool {
	return t == ShallowHistory || t == DeepHistory
}

// StateConfig defines a state configuration, supporting hierarchical nesting.
//
// Children and Transitions are ordered; that order is document order.
// For compound states Initial names the initial target(s) (space separated) and
// defaults to the first non-history child. For history pseudostates Initial
// names the default targets used when no history has been recorded yet.
type StateConfig struct {
	ID             string             `json:"id" yaml:"id"`
	Type           StateType          `json:"type,omitempty" yaml:"type,omitempty"`
	Initial        string             `json:"initial,omitempty" yaml:"initial,omitempty"`
	InitialActions []ActionConfig     `json:"initialActions,omitempty" yaml:"initialActions,omitempty"`
	Transitions    []TransitionConfig `json:"transitions,omitempty" yaml:"transitions,omitempty"`
	Entry          []ActionConfig     `json:"entry,omitempty" yaml:"entry,omitempty"`
	Exit           []ActionConfig     `json:"exit,omitempty" yaml:"exit,omitempty"`
	Invokes        []InvokeConfig     `json:"invokes,omitempty" yaml:"invokes,omitempty"`
	DoneData       []ParamConfig      `json:"donedata,omitempty" yaml:"donedata,omitempty"`
	Children       []*StateConfig     `json:"children,omitempty" yaml:"children,omitempty"`
}

// NewStateConfig creates a new StateConfig with ID and Type.
func NewStateConfig(id string, typ StateType) *StateConfig {
	return &StateConfig{
		ID:   id,
		Type: typ,
	}
}

// Kind returns the declared type, inferring atomic or compound when unset.
func (s *StateConfig) Kind() StateType {
	if s.Type != "" {
		return s.Type
	}
	for _, child := range s.Children {
		if !child.Kind().IsHistory() {
			return Compound
		}
	}
	return Atomic
}

// InitialTargets splits Initial into target ids.
func (s *StateConfig) InitialTargets() []string {
	return strings.Fields(s.Initial)
}

// WithInitial sets the initial target(s).
func (s *StateConfig) WithInitial(initial ...string) *StateConfig {
	s.Initial = strings.Join(initial, " ")
	return s
}

// AddTransition appends a transition, preserving document order.
func (s *StateConfig) AddTransition(trans TransitionConfig) *StateConfig {
	s.Transitions = append(s.Transitions, trans)
	return s
}

// AddEntry appends entry actions.
func (s *StateConfig) AddEntry(actions ...ActionConfig) *StateConfig {
	s.Entry = append(s.Entry, actions...)
	return s
}

// AddExit appends exit actions.
func (s *StateConfig) AddExit(actions ...ActionConfig) *StateConfig {
	s.Exit = append(s.Exit, actions...)
	return s
}

// AddInvoke appends an invocation declaration.
func (s *StateConfig) AddInvoke(inv InvokeConfig) *StateConfig {
	s.Invokes = append(s.Invokes, inv)
	return s
}

// AddChild appends a child state.
func (s *StateConfig) AddChild(child *StateConfig) *StateConfig {
	s.Children = append(s.Children, child)
	return s
}

// State creates and adds a child state (atomic by default, or specified type).
// Returns the child for fluent chaining.
func (s *StateConfig) State(id string, typ ...StateType) *StateConfig {
	t := Atomic
	if len(typ) > 0 {
		t = typ[0]
	}
	child := NewStateConfig(id, t)
	s.AddChild(child)
	return child
}

// Transition adds a transition from event to target(s). An empty event makes
// it eventless, an empty target makes it targetless.
func (s *StateConfig) Transition(event, target string, opts ...TransitionConfig) *StateConfig {
	trans := TransitionConfig{}
	if len(opts) > 0 {
		trans = opts[0]
	}
	trans.Event = event
	trans.Target = target
	return s.AddTransition(trans)
}

// Walk visits the state and its descendants in document order.
func (s *StateConfig) Walk(fn func(*StateConfig)) {
	fn(s)
	for _, child := range s.Children {
		child.Walk(fn)
	}
}

// Validate performs recursive local validation of the StateConfig tree.
// Cross-references (targets, initial ids, duplicate ids) are checked when the
// document is compiled.
func (s *StateConfig) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return CloneError(ErrInvalidConfig, "state ID is required", nil, nil)
	}

	kind := s.Kind()
	switch kind {
	case Atomic, Compound, Parallel, Final, ShallowHistory, DeepHistory:
	default:
		return CloneError(ErrInvalidKind, fmt.Sprintf("invalid state type %q for state %s", s.Type, s.ID), nil,
			map[string]any{"state": s.ID})
	}

	switch kind {
	case Atomic:
		if s.Initial != "" {
			return s.invalid("atomic state %s cannot have Initial", s.ID)
		}
		if len(s.Children) > 0 {
			return s.invalid("atomic state %s cannot have Children", s.ID)
		}
	case Final:
		if len(s.Children) > 0 || s.Initial != "" {
			return s.invalid("final state %s cannot have Children or Initial", s.ID)
		}
		if len(s.Transitions) > 0 || len(s.Invokes) > 0 {
			return s.invalid("final state %s cannot have transitions or invocations", s.ID)
		}
	case Compound:
		if !s.hasRegularChild() {
			return s.invalid("compound state %s requires Children", s.ID)
		}
	case Parallel:
		if !s.hasRegularChild() {
			return s.invalid("parallel state %s requires Children", s.ID)
		}
		if s.Initial != "" {
			return s.invalid("parallel state %s cannot have Initial", s.ID)
		}
	case ShallowHistory, DeepHistory:
		if len(s.Children) > 0 {
			return s.invalid("history state %s cannot have Children (restored at runtime)", s.ID)
		}
		if len(s.Transitions) > 0 || len(s.Entry) > 0 || len(s.Exit) > 0 || len(s.Invokes) > 0 {
			return s.invalid("history state %s can only declare a default transition", s.ID)
		}
	}
	if len(s.DoneData) > 0 && kind != Final {
		return s.invalid("donedata is only allowed on final states (state %s)", s.ID)
	}

	for i := range s.Transitions {
		if err := s.Transitions[i].Validate(); err != nil {
			return CloneError(ErrInvalidConfig, fmt.Sprintf("transition %d of %s failed validation", i, s.ID), err,
				map[string]any{"state": s.ID})
		}
	}
	for _, list := range [][]ActionConfig{s.Entry, s.Exit, s.InitialActions} {
		if err := ValidateActions(list); err != nil {
			return CloneError(ErrInvalidAction, fmt.Sprintf("state %s has an invalid action", s.ID), err,
				map[string]any{"state": s.ID})
		}
	}
	for i := range s.Invokes {
		if err := s.Invokes[i].Validate(); err != nil {
			return CloneError(ErrInvalidConfig, fmt.Sprintf("invoke %d of %s failed validation", i, s.ID), err,
				map[string]any{"state": s.ID})
		}
	}

	for i, child := range s.Children {
		if child == nil {
			return s.invalid("child %d of %s is nil", i, s.ID)
		}
		if err := child.Validate(); err != nil {
			return err
		}
	}

	return nil
}

func (s *StateConfig) hasRegularChild() bool {
	for _, child := range s.Children {
		if child != nil && !child.Kind().IsHistory() {
			return true
		}
	}
	return false
}

func (s *StateConfig) invalid(format string, args ...any) error {
	return CloneError(ErrInvalidConfig, fmt.Sprintf(format, args...), nil, map[string]any{"state": s.ID})
}
