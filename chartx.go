// Package chartx is a hierarchical, parallel statechart interpreter with
// run-to-completion semantics, history, invocations and a pluggable datamodel.
//
// Charts are declared as DocumentConfig values, built in code with
// NewDocumentBuilder or loaded from YAML/JSON with LoadFile, compiled with
// Compile and executed by an Executor:
//
//	cfg, _ := chartx.NewDocumentBuilder("door").
//		Atomic("closed").On("open", "opened").
//		Atomic("opened").On("close", "closed").
//		Build()
//	doc, _ := chartx.Compile(cfg)
//	ex, _ := chartx.NewExecutor(doc)
//	_ = ex.Start(ctx)
//	_ = ex.TriggerEvent(ctx, chartx.NewEvent("open", nil))
package chartx

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"

	"github.com/comalice/chartx/internal/core"
	"github.com/comalice/chartx/internal/model"
	"github.com/comalice/chartx/internal/primitives"
)

type (
	Event            = primitives.Event
	EventType        = primitives.EventType
	Context          = primitives.Context
	DocumentConfig   = primitives.DocumentConfig
	DocumentBuilder  = primitives.DocumentBuilder
	StateConfig      = primitives.StateConfig
	StateType        = primitives.StateType
	TransitionConfig = primitives.TransitionConfig
	TransitionType   = primitives.TransitionType
	ActionConfig     = primitives.ActionConfig
	ActionContext    = primitives.ActionContext
	ActionFn         = primitives.ActionFn
	GuardFunc        = primitives.GuardFunc
	IfBranch         = primitives.IfBranch
	InvokeConfig     = primitives.InvokeConfig
	ParamConfig      = primitives.ParamConfig
	DataConfig       = primitives.DataConfig

	Document = model.Document

	Executor         = core.Machine
	Option           = core.Option
	Status           = core.Status
	Snapshot         = core.Snapshot
	InvocationRecord = core.InvocationRecord
	StepRecord       = core.StepRecord
	Evaluator        = core.Evaluator
	ErrorReporter    = core.ErrorReporter
	Logger           = core.Logger
	FieldsLogger     = core.FieldsLogger
	NopLogger        = core.NopLogger
	Listener         = core.Listener
	EventSource      = core.EventSource
	Persister        = core.Persister
	Publisher        = core.Publisher
	Invoker          = core.Invoker
	InvokerFactory   = core.InvokerFactory
	InvokerRegistry  = core.InvokerRegistry
	Parent           = core.Parent
)

const (
	Atomic         = primitives.Atomic
	Compound       = primitives.Compound
	Parallel       = primitives.Parallel
	Final          = primitives.Final
	ShallowHistory = primitives.ShallowHistory
	DeepHistory    = primitives.DeepHistory

	ExternalTransition = primitives.ExternalTransition
	InternalTransition = primitives.InternalTransition
)

var (
	NewEvent           = primitives.NewEvent
	NewDocumentBuilder = primitives.NewDocumentBuilder
	NewInvokerRegistry = core.NewInvokerRegistry
	NewFmtLogger       = core.NewFmtLogger
	ErrorCode          = primitives.ErrorCode

	Raise       = primitives.Raise
	Assign      = primitives.Assign
	AssignValue = primitives.AssignValue
	Log         = primitives.Log
	Script      = primitives.Script
	Send        = primitives.Send
	SendAfter   = primitives.SendAfter
	Cancel      = primitives.Cancel
	Foreach     = primitives.Foreach
	If          = primitives.If
	When        = primitives.When
	Otherwise   = primitives.Otherwise
	Do          = primitives.Do

	WithEvaluator       = core.WithEvaluator
	WithErrorReporter   = core.WithErrorReporter
	WithLogger          = core.WithLogger
	WithListener        = core.WithListener
	WithEventSource     = core.WithEventSource
	WithPersister       = core.WithPersister
	WithPublisher       = core.WithPublisher
	WithInvokerRegistry = core.WithInvokerRegistry
	WithInvoker         = core.WithInvoker
	WithTracerProvider  = core.WithTracerProvider
	WithMicrostepLimit  = core.WithMicrostepLimit
	WithLegalityCheck   = core.WithLegalityCheck
	WithStrictLegality  = core.WithStrictLegality
	WithSessionID       = core.WithSessionID
	WithName            = core.WithName
	WithParent          = core.WithParent
	WithInitialData     = core.WithInitialData
)

// ErrNilDocument is returned by NewExecutor for a nil document.
var ErrNilDocument = goerrors.New("document is nil", goerrors.CategoryValidation).
	WithTextCode("NIL_DOCUMENT")

// Compile validates a document and builds its runtime form. Structural errors
// are go-errors values in the validation category.
func Compile(cfg *DocumentConfig) (*Document, error) {
	return model.Compile(cfg)
}

// NewExecutor creates an idle executor. The evaluator is chosen from the
// document's datamodel unless WithEvaluator overrides it, and nested charts are
// invocable under the "scxml" type unless the registry already binds it.
func NewExecutor(doc *Document, opts ...Option) (*Executor, error) {
	if doc == nil {
		return nil, primitives.CloneError(ErrNilDocument, "", nil, nil)
	}
	ev, err := EvaluatorFor(doc.Datamodel)
	if err != nil {
		return nil, err
	}
	all := make([]Option, 0, len(opts)+1)
	all = append(all, core.WithEvaluator(ev))
	all = append(all, opts...)
	m := core.NewMachine(doc, all...)
	registerChartInvoker(m.Registry())
	return m, nil
}

// MustCompile is Compile that panics on error, for examples and tests.
func MustCompile(cfg *DocumentConfig) *Document {
	doc, err := Compile(cfg)
	if err != nil {
		panic(fmt.Sprintf("chartx: %v", err))
	}
	return doc
}
