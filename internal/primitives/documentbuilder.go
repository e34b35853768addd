// Package primitives includes builder helpers for DocumentConfig.
package primitives

import (
	"fmt"
	"strings"
)

// DocumentBuilder builds hierarchical DocumentConfig values fluently.
//
// Compound and Parallel open a container: states added afterwards become its
// children until Up closes it. Transition, entry, exit and invoke helpers apply
// to the most recently added state.
//
//	doc, err := NewDocumentBuilder("door").
//		Compound("s1").
//			Atomic("s1.1").On("foo", "s1.2").
//			Atomic("s1.2").
//		Up().
//		Build()
type DocumentBuilder struct {
	doc   *DocumentConfig
	stack []*StateConfig
	cur   *StateConfig
	err   error
}

// NewDocumentBuilder creates a builder for a named document.
func NewDocumentBuilder(name string) *DocumentBuilder {
	return &DocumentBuilder{doc: &DocumentConfig{Name: name}}
}

func (b *DocumentBuilder) add(id string, typ StateType) *StateConfig {
	s := NewStateConfig(id, typ)
	if n := len(b.stack); n > 0 {
		b.stack[n-1].AddChild(s)
	} else {
		b.doc.States = append(b.doc.States, s)
	}
	b.cur = s
	return s
}

// Compound opens a compound state.
func (b *DocumentBuilder) Compound(id string) *DocumentBuilder {
	b.stack = append(b.stack, b.add(id, Compound))
	return b
}

// Parallel opens a parallel state.
func (b *DocumentBuilder) Parallel(id string) *DocumentBuilder {
	b.stack = append(b.stack, b.add(id, Parallel))
	return b
}

// Atomic adds an atomic state to the open container.
func (b *DocumentBuilder) Atomic(id string) *DocumentBuilder {
	b.add(id, Atomic)
	return b
}

// State is sugar for Atomic.
func (b *DocumentBuilder) State(id string) *DocumentBuilder {
	return b.Atomic(id)
}

// Final adds a final state to the open container.
func (b *DocumentBuilder) Final(id string, donedata ...ParamConfig) *DocumentBuilder {
	s := b.add(id, Final)
	s.DoneData = append(s.DoneData, donedata...)
	return b
}

// History adds a history pseudostate with optional default targets.
func (b *DocumentBuilder) History(id string, deep bool, defaults ...string) *DocumentBuilder {
	typ := ShallowHistory
	if deep {
		typ = DeepHistory
	}
	b.add(id, typ).WithInitial(defaults...)
	return b
}

// Up closes the innermost open container; the container becomes current.
func (b *DocumentBuilder) Up() *DocumentBuilder {
	n := len(b.stack)
	if n == 0 {
		b.fail("Up called with no open state")
		return b
	}
	b.cur = b.stack[n-1]
	b.stack = b.stack[:n-1]
	return b
}

// Initial sets the initial target(s) of the open container, or of the document
// when no container is open.
func (b *DocumentBuilder) Initial(targets ...string) *DocumentBuilder {
	if n := len(b.stack); n > 0 {
		b.stack[n-1].WithInitial(targets...)
		return b
	}
	b.doc.Initial = strings.Join(targets, " ")
	return b
}

// InitialActions sets the actions of the open container's initial transition.
func (b *DocumentBuilder) InitialActions(actions ...ActionConfig) *DocumentBuilder {
	n := len(b.stack)
	if n == 0 {
		b.fail("InitialActions requires an open compound state")
		return b
	}
	b.stack[n-1].InitialActions = append(b.stack[n-1].InitialActions, actions...)
	return b
}

// On adds a transition to the current state. Optional opts supply guard,
// type and actions.
func (b *DocumentBuilder) On(event, target string, opts ...TransitionConfig) *DocumentBuilder {
	if s := b.current("On"); s != nil {
		s.Transition(event, target, opts...)
	}
	return b
}

// Always adds an eventless transition to the current state.
func (b *DocumentBuilder) Always(target string, opts ...TransitionConfig) *DocumentBuilder {
	return b.On("", target, opts...)
}

// OnEntry appends entry actions to the current state.
func (b *DocumentBuilder) OnEntry(actions ...ActionConfig) *DocumentBuilder {
	if s := b.current("OnEntry"); s != nil {
		s.AddEntry(actions...)
	}
	return b
}

// OnExit appends exit actions to the current state.
func (b *DocumentBuilder) OnExit(actions ...ActionConfig) *DocumentBuilder {
	if s := b.current("OnExit"); s != nil {
		s.AddExit(actions...)
	}
	return b
}

// Invoke adds an invocation to the current state.
func (b *DocumentBuilder) Invoke(inv InvokeConfig) *DocumentBuilder {
	if s := b.current("Invoke"); s != nil {
		s.AddInvoke(inv)
	}
	return b
}

// Datamodel selects the evaluator by name.
func (b *DocumentBuilder) Datamodel(name string) *DocumentBuilder {
	b.doc.Datamodel = name
	return b
}

// Data declares a datamodel variable initialised from an expression.
func (b *DocumentBuilder) Data(id, expr string) *DocumentBuilder {
	b.doc.Data = append(b.doc.Data, DataConfig{ID: id, Expr: expr})
	return b
}

// DataValue declares a datamodel variable initialised to a literal value.
func (b *DocumentBuilder) DataValue(id string, value any) *DocumentBuilder {
	b.doc.Data = append(b.doc.Data, DataConfig{ID: id, Value: value})
	return b
}

// Build validates and returns the document.
func (b *DocumentBuilder) Build() (*DocumentConfig, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.stack) > 0 {
		return nil, CloneError(ErrInvalidConfig, fmt.Sprintf("state %s was never closed with Up", b.stack[len(b.stack)-1].ID), nil, nil)
	}
	if err := b.doc.Validate(); err != nil {
		return nil, err
	}
	return b.doc, nil
}

// MustBuild is Build that panics on error, for tests and examples.
func (b *DocumentBuilder) MustBuild() *DocumentConfig {
	doc, err := b.Build()
	if err != nil {
		panic(err)
	}
	return doc
}

func (b *DocumentBuilder) current(op string) *StateConfig {
	if b.cur == nil {
		b.fail(op + " called before any state was added")
	}
	return b.cur
}

func (b *DocumentBuilder) fail(msg string) {
	if b.err == nil {
		b.err = CloneError(ErrInvalidConfig, msg, nil, nil)
	}
}
