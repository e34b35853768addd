package core

import (
	"context"
	"time"

	"github.com/comalice/chartx/internal/primitives"
)

// Evaluator is the datamodel capability: it evaluates expressions, conditions,
// locations, assignments and scripts against a scoped Context.
type Evaluator interface {
	NewContext(parent *primitives.Context) *primitives.Context
	Eval(ctx *primitives.Context, expr string) (any, error)
	EvalCond(ctx *primitives.Context, expr string) (bool, error)
	EvalLocation(ctx *primitives.Context, location string) (any, error)
	EvalAssign(ctx *primitives.Context, location string, value any) error
	EvalScript(ctx *primitives.Context, script string) error
}

// ErrorReporter receives diagnostics. Implementations must not panic.
type ErrorReporter interface {
	Report(code, detail, node string)
}

// Parent is the handle an invoked child uses to reach its invoking machine.
type Parent interface {
	SessionID() string
	// Deliver routes an event from the invocation with the given id back into
	// the parent. Events for invocations that are no longer alive are dropped.
	Deliver(invokeID string, evt primitives.Event)
}

// Invoker is an external service bound to the lifetime of a state.
type Invoker interface {
	InvokeID() string
	SetInvokeID(id string)
	SetParent(p Parent)
	Invoke(ctx context.Context, src string, params map[string]any) error
	InvokeContent(ctx context.Context, content any, params map[string]any) error
	Cancel(ctx context.Context) error
	// ParentEvent delivers an event from the parent to the running service.
	ParentEvent(evt primitives.Event) error
}

// InvokerFactory creates a fresh Invoker for one invocation.
type InvokerFactory func() Invoker

// Listener observes configuration changes.
type Listener interface {
	OnEntry(state string)
	OnExit(state string)
	// OnTransition is called for every taken transition; evt is nil for
	// eventless transitions.
	OnTransition(from string, to []string, evt *primitives.Event)
}

// EventSource feeds external events into a running machine.
type EventSource interface {
	Events() <-chan primitives.Event
}

// Persister stores machine snapshots.
type Persister interface {
	Save(ctx context.Context, snapshot Snapshot) error
	Load(ctx context.Context, sessionID string) (Snapshot, error)
}

// StepRecord describes the machine after a macrostep.
type StepRecord struct {
	SessionID string    `json:"sessionID" yaml:"sessionID"`
	Name      string    `json:"name,omitempty" yaml:"name,omitempty"`
	Event     string    `json:"event,omitempty" yaml:"event,omitempty"`
	Active    []string  `json:"active" yaml:"active"`
	Final     bool      `json:"final" yaml:"final"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Publisher receives a StepRecord after every macrostep.
type Publisher interface {
	Publish(ctx context.Context, record StepRecord) error
	Close() error
}
