package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/comalice/chartx/internal/model"
	"github.com/comalice/chartx/internal/primitives"
)

const tracerName = "github.com/comalice/chartx"

// DefaultMicrostepLimit bounds the microsteps of one macrostep.
const DefaultMicrostepLimit = 1000

const (
	attrSession    = "chartx.session"
	attrEvent      = "chartx.event"
	attrConfig     = "chartx.config"
	attrState      = "chartx.state"
	attrInvokeID   = "chartx.invoke.id"
	attrInvokeType = "chartx.invoke.type"
)

type lifecycle int32

const (
	lifecycleIdle lifecycle = iota
	lifecycleRunning
	lifecycleFinal
	lifecycleStopped
)

func (l lifecycle) String() string {
	switch l {
	case lifecycleIdle:
		return "idle"
	case lifecycleRunning:
		return "running"
	case lifecycleFinal:
		return "final"
	case lifecycleStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Option applies configuration to Machine via functional options pattern.
type Option func(*Machine)

// Status is a point-in-time view of a machine.
type Status struct {
	SessionID string   `json:"sessionID" yaml:"sessionID"`
	Active    []string `json:"active" yaml:"active"`
	Atomic    []string `json:"atomic" yaml:"atomic"`
	Final     bool     `json:"final" yaml:"final"`
	Running   bool     `json:"running" yaml:"running"`
}

// Machine executes a compiled document with run-to-completion semantics.
// One step runs at a time; Enqueue, Deliver and Status are safe from any
// goroutine. Actions must reach the machine through their ActionContext, never
// through the Machine methods, which would deadlock on the step lock.
type Machine struct {
	doc       *model.Document
	name      string
	sessionID string

	engine  *Engine
	config  *Configuration
	history *HistoryManager
	invokes *invocationManager
	data    *primitives.Context

	state atomic.Int32

	stepMu   sync.Mutex
	internal []primitives.Event
	pending  []pendingInvoke
	current  *primitives.Event
	finished bool
	doneData any
	restored *Snapshot

	queueMu  sync.Mutex
	external []primitives.Event
	inbox    []primitives.Event

	notify  chan struct{}
	doneMu  sync.Mutex
	done    chan struct{}
	srcOnce sync.Once

	parent         Parent
	parentInvokeID string
	initialData    map[string]any

	evaluator      Evaluator
	reporter       ErrorReporter
	logger         Logger
	listeners      []Listener
	sources        []EventSource
	persister      Persister
	publisher      Publisher
	registry       *InvokerRegistry
	tracer         trace.Tracer
	microstepLimit int
	legality       bool
	strict         bool

	// eventless is set while eventless transitions are selected; guardFailures
	// holds the eventless guards already reported in the current macrostep.
	eventless     bool
	guardFailures map[*model.Transition]bool

	delayed delayedSends
}

// NewMachine creates a machine over a compiled document. The machine is idle
// until Start.
func NewMachine(doc *model.Document, opts ...Option) *Machine {
	m := &Machine{
		doc:            doc,
		name:           doc.Name,
		sessionID:      uuid.NewString(),
		history:        NewHistoryManager(),
		invokes:        newInvocationManager(),
		notify:         make(chan struct{}, 1),
		done:           make(chan struct{}),
		evaluator:      contextEvaluator{},
		logger:         NopLogger{},
		registry:       NewInvokerRegistry(),
		tracer:         otel.GetTracerProvider().Tracer(tracerName),
		microstepLimit: DefaultMicrostepLimit,
		legality:       true,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.engine = NewEngine(doc, m.history)
	m.config = NewConfiguration(doc)
	m.logger = withLoggerFields(m.logger, map[string]any{"session": m.sessionID, "chart": m.name})
	return m
}

// SessionID implements Parent.
func (m *Machine) SessionID() string { return m.sessionID }

// Name returns the chart name.
func (m *Machine) Name() string { return m.name }

// Document returns the compiled document.
func (m *Machine) Document() *model.Document { return m.doc }

// Logger returns the machine logger, carrying its session fields.
func (m *Machine) Logger() Logger { return m.logger }

// Registry returns the invoker registry. Machines created by invokers may
// share it.
func (m *Machine) Registry() *InvokerRegistry { return m.registry }

// RegisterInvokerType binds an invoke type on the machine's registry.
func (m *Machine) RegisterInvokerType(typ string, factory InvokerFactory) {
	m.registry.Register(typ, factory)
}

// UnregisterInvokerType removes an invoke type from the machine's registry.
func (m *Machine) UnregisterInvokerType(typ string) {
	m.registry.Unregister(typ)
}

// Datamodel returns the root data scope. It is nil before Start.
func (m *Machine) Datamodel() *primitives.Context {
	m.stepMu.Lock()
	defer m.stepMu.Unlock()
	return m.data
}

// DoneData returns the donedata of the top-level final state reached, if any.
func (m *Machine) DoneData() any {
	m.stepMu.Lock()
	defer m.stepMu.Unlock()
	return m.doneData
}

// Done is closed when the machine stops or reaches a top-level final state.
func (m *Machine) Done() <-chan struct{} {
	m.doneMu.Lock()
	defer m.doneMu.Unlock()
	return m.done
}

func (m *Machine) lifecycle() lifecycle { return lifecycle(m.state.Load()) }

func (m *Machine) setLifecycle(l lifecycle) { m.state.Store(int32(l)) }

func (m *Machine) running() bool { return m.lifecycle() == lifecycleRunning }

// Start initialises the datamodel and takes the initial transition, running
// the first macrostep to completion. A pending Restore is applied instead.
func (m *Machine) Start(ctx context.Context) error {
	m.stepMu.Lock()
	defer m.stepMu.Unlock()

	if l := m.lifecycle(); l != lifecycleIdle {
		return cloneError(ErrAlreadyStarted, "", nil, map[string]any{"session": m.sessionID, "state": l.String()})
	}

	ctx, span := m.tracer.Start(ctx, "chartx.start", trace.WithAttributes(attribute.String(attrSession, m.sessionID)))
	defer span.End()

	m.initSystemData()
	m.setLifecycle(lifecycleRunning)

	if snap := m.restored; snap != nil {
		m.restored = nil
		if err := m.applySnapshot(snap); err != nil {
			m.setLifecycle(lifecycleIdle)
			span.RecordError(err)
			span.SetStatus(codes.Error, errorMessage(err))
			return err
		}
		m.logger.Info("restored %d active states", m.config.Len())
	} else {
		m.initDatamodel()
		m.logger.Info("starting chart")
		m.microstep(ctx, []*model.Transition{m.doc.Root().Initial}, nil)
	}
	if m.running() {
		m.macrostep(ctx)
	}

	err := m.afterStep(ctx, "")
	span.SetAttributes(attribute.String(attrConfig, strings.Join(m.doc.IDs(m.config.List()), " ")))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errorMessage(err))
	}
	return err
}

func (m *Machine) initSystemData() {
	m.data = m.evaluator.NewContext(nil)
	m.data.SetLocal(primitives.VarSessionID, m.sessionID)
	m.data.SetLocal(primitives.VarName, m.name)
	m.data.SetLocal(primitives.VarIOProcessors, map[string]any{
		"scxml": map[string]any{"location": "#_scxml_" + m.sessionID},
	})
	m.data.SetLocal(primitives.VarIn, func(id string) bool { return m.config.HasID(id) })
}

// initDatamodel evaluates the top-level data declarations and script. Values
// passed by an invoking parent replace declarations of the same name.
func (m *Machine) initDatamodel() {
	for _, d := range m.doc.Data {
		if v, ok := m.initialData[d.ID]; ok {
			m.data.SetLocal(d.ID, v)
			continue
		}
		if d.Value != nil || d.Expr == "" {
			m.data.SetLocal(d.ID, d.Value)
			continue
		}
		v, err := m.evaluator.Eval(m.data, d.Expr)
		if err != nil {
			m.executionError(wrapExpr(err, d.Expr), model.RootID)
			v = nil
		}
		m.data.SetLocal(d.ID, v)
	}
	for k, v := range m.initialData {
		if !m.data.Has(k) {
			m.data.SetLocal(k, v)
		}
	}
	if m.doc.Script != "" {
		if err := m.evaluator.EvalScript(m.data, m.doc.Script); err != nil {
			m.executionError(wrapExpr(err, m.doc.Script), model.RootID)
		}
	}
}

// Enqueue appends an event to the external queue without processing it.
func (m *Machine) Enqueue(evt primitives.Event) error {
	switch m.lifecycle() {
	case lifecycleIdle, lifecycleStopped:
		return cloneError(ErrNotRunning, "", nil, map[string]any{"event": evt.Name})
	case lifecycleFinal:
		return nil
	}
	if evt.Type != primitives.PlatformEvent {
		evt.Type = primitives.ExternalEvent
	}
	m.pushExternal(evt)
	m.signal()
	return nil
}

// TriggerEvent enqueues an event and processes queued work until the machine
// is quiescent.
func (m *Machine) TriggerEvent(ctx context.Context, evt primitives.Event) error {
	if err := m.Enqueue(evt); err != nil {
		return err
	}
	return m.RunToQuiescence(ctx)
}

// Step runs one macrostep for queued work: events from invocations first, then
// the oldest external event. It reports whether any work was processed.
func (m *Machine) Step(ctx context.Context) (bool, error) {
	m.stepMu.Lock()
	defer m.stepMu.Unlock()

	switch m.lifecycle() {
	case lifecycleIdle, lifecycleStopped:
		return false, cloneError(ErrNotRunning, "", nil, map[string]any{"session": m.sessionID})
	case lifecycleFinal:
		m.discardQueued()
		return false, nil
	}

	m.dispatchDue()
	inbox, evt, ok := m.takeWork()
	if len(inbox) == 0 && !ok {
		return false, nil
	}

	name := evt.Name
	if len(inbox) > 0 {
		name = inbox[0].Name
	}
	ctx, span := m.tracer.Start(ctx, "chartx.macrostep", trace.WithAttributes(
		attribute.String(attrSession, m.sessionID),
		attribute.String(attrEvent, name),
	))
	defer span.End()

	if len(inbox) > 0 {
		m.internal = append(m.internal, inbox...)
		m.macrostep(ctx)
	} else {
		m.processExternal(ctx, evt)
	}

	err := m.afterStep(ctx, name)
	span.SetAttributes(attribute.String(attrConfig, strings.Join(m.doc.IDs(m.config.List()), " ")))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errorMessage(err))
	}
	return true, err
}

// RunToQuiescence steps until no queued work remains.
func (m *Machine) RunToQuiescence(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		progressed, err := m.Step(ctx)
		if err != nil {
			return err
		}
		if !progressed {
			return nil
		}
	}
}

// Run processes events as they arrive until ctx is done, the machine stops or
// it reaches a top-level final state. Configured event sources are drained
// into the external queue.
func (m *Machine) Run(ctx context.Context) error {
	if m.lifecycle() == lifecycleIdle {
		return cloneError(ErrNotRunning, "", nil, map[string]any{"session": m.sessionID})
	}
	m.srcOnce.Do(func() { m.startSources(ctx) })
	done := m.Done()
	for {
		switch m.lifecycle() {
		case lifecycleFinal, lifecycleStopped:
			return nil
		}
		if err := m.RunToQuiescence(ctx); err != nil {
			if m.lifecycle() == lifecycleStopped {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return nil
		case <-m.notify:
		}
	}
}

func (m *Machine) startSources(ctx context.Context) {
	done := m.Done()
	for _, src := range m.sources {
		events := src.Events()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-done:
					return
				case evt, ok := <-events:
					if !ok {
						return
					}
					if err := m.Enqueue(evt); err != nil {
						m.logger.Warn("event source: %s", errorMessage(err))
						return
					}
				}
			}
		}()
	}
}

// Stop cancels live invocations and stops the machine. The configuration is
// kept; Stop on a stopped machine is a no-op.
func (m *Machine) Stop(ctx context.Context) error {
	m.stepMu.Lock()
	defer m.stepMu.Unlock()
	if m.lifecycle() == lifecycleStopped {
		return nil
	}
	m.cancelAll(ctx)
	m.delayed.stopAll()
	m.pending = nil
	m.internal = nil
	m.setLifecycle(lifecycleStopped)
	m.closeDone()
	m.logger.Info("stopped")
	return nil
}

// Reset cancels invocations and returns the machine to idle with an empty
// configuration, history and datamodel. The session id is kept.
func (m *Machine) Reset(ctx context.Context) {
	m.stepMu.Lock()
	defer m.stepMu.Unlock()
	m.resetLocked(ctx)
}

func (m *Machine) resetLocked(ctx context.Context) {
	m.cancelAll(ctx)
	m.delayed.stopAll()
	m.invokes.reset()
	m.queueMu.Lock()
	m.external = nil
	m.inbox = nil
	m.queueMu.Unlock()
	m.internal = nil
	m.pending = nil
	m.current = nil
	m.history.Reset()
	m.config.Clear()
	m.data = nil
	m.finished = false
	m.doneData = nil
	m.restored = nil
	m.setLifecycle(lifecycleIdle)

	m.doneMu.Lock()
	select {
	case <-m.done:
		m.done = make(chan struct{})
	default:
	}
	m.doneMu.Unlock()
	m.srcOnce = sync.Once{}
}

// Status returns the active states and lifecycle flags.
func (m *Machine) Status() Status {
	active := m.config.List()
	var atomicIDs []string
	for _, n := range active {
		if m.doc.Node(n).IsAtomic() {
			atomicIDs = append(atomicIDs, m.doc.Node(n).ID)
		}
	}
	return Status{
		SessionID: m.sessionID,
		Active:    m.doc.IDs(active),
		Atomic:    atomicIDs,
		Final:     m.lifecycle() == lifecycleFinal,
		Running:   m.lifecycle() == lifecycleRunning,
	}
}

// IsActive reports whether the state with the given id is active.
func (m *Machine) IsActive(id string) bool {
	return m.config.HasID(id)
}

func (m *Machine) processExternal(ctx context.Context, evt primitives.Event) {
	m.setEvent(evt)
	m.applyFinalize(ctx, evt)
	m.autoForward(evt)
	if enabled := m.engine.SelectTransitions(m.config, &evt, m.guardCheck); len(enabled) > 0 {
		m.microstep(ctx, enabled, &evt)
	}
	if m.running() {
		m.macrostep(ctx)
	}
}

// macrostep takes eventless transitions, then internal events, until both are
// exhausted, then starts the invocations the macrostep scheduled. Invocations
// that raise into the machine keep the macrostep going.
//
// Every selection pass counts toward the microstep limit, including passes
// that consume an internal event without taking a transition.
func (m *Machine) macrostep(ctx context.Context) {
	m.guardFailures = make(map[*model.Transition]bool)
	defer func() { m.guardFailures = nil }()
	steps := 0
	for m.running() {
		for m.running() {
			var evt *primitives.Event
			m.eventless = true
			enabled := m.engine.SelectTransitions(m.config, nil, m.guardCheck)
			m.eventless = false
			if len(enabled) == 0 {
				next, ok := m.popInternal()
				if !ok {
					break
				}
				evt = &next
				m.setEvent(next)
				m.applyFinalize(ctx, next)
				enabled = m.engine.SelectTransitions(m.config, evt, m.guardCheck)
			}
			steps++
			if m.microstepLimit > 0 && steps > m.microstepLimit {
				m.report(CodeMicrostepLimit, fmt.Sprintf("macrostep exceeded %d microsteps", m.microstepLimit), "")
				m.internal = nil
				return
			}
			if len(enabled) == 0 {
				continue
			}
			m.microstep(ctx, enabled, evt)
		}
		if !m.running() {
			return
		}
		m.startPending(ctx)
		if len(m.internal) == 0 {
			return
		}
	}
}

// microstep applies one plan: record history, exit, run transition content,
// enter, and raise completion events for the final states entered.
func (m *Machine) microstep(ctx context.Context, transitions []*model.Transition, evt *primitives.Event) {
	plan := m.engine.Plan(m.config, transitions)

	for h, rec := range plan.History {
		m.history.Record(h, rec)
	}

	for _, s := range plan.Exit {
		m.cancelInvocations(ctx, s)
		m.dropPending(s)
		m.runBlock(ctx, m.doc.Node(s).Exit, s)
		m.config.Remove(s)
		m.logger.Trace("exit %s", m.doc.Node(s).ID)
		for _, l := range m.listeners {
			l.OnExit(m.doc.Node(s).ID)
		}
	}

	for _, t := range plan.Transitions {
		if t.Source != model.RootID {
			from := m.doc.Node(t.Source).ID
			to := m.doc.IDs(t.Targets)
			m.logger.Trace("transition %s -> %v", from, to)
			for _, l := range m.listeners {
				l.OnTransition(from, to, evt)
			}
		}
		m.runBlock(ctx, t.Actions, t.Source)
	}

	var finals []model.NodeID
	for _, s := range plan.Enter {
		node := m.doc.Node(s)
		m.config.Add(s)
		m.logger.Trace("enter %s", node.ID)
		for _, l := range m.listeners {
			l.OnEntry(node.ID)
		}
		m.runBlock(ctx, node.Entry, s)
		if plan.DefaultEntry[s] && node.Initial != nil {
			m.runBlock(ctx, node.Initial.Actions, s)
		}
		if t := plan.HistoryContent[s]; t != nil {
			m.runBlock(ctx, t.Actions, s)
		}
		if len(node.Invokes) > 0 {
			m.scheduleInvokes(s)
		}
		if node.Kind == model.Final {
			finals = append(finals, s)
		}
	}
	m.complete(finals)
}

// complete raises done.state events for the final states entered in a
// microstep. A parallel is done once every region is in a final state; each
// parallel is reported at most once per microstep.
func (m *Machine) complete(finals []model.NodeID) {
	raised := make(map[model.NodeID]bool)
	for _, f := range finals {
		parent := m.doc.Node(f).Parent
		if parent == model.RootID {
			m.doneData = m.evalDoneData(f)
			m.setLifecycle(lifecycleFinal)
			m.logger.Info("reached final state %s", m.doc.Node(f).ID)
			continue
		}
		// a final directly under a parallel completes only its region set
		g := parent
		if m.doc.Node(parent).Kind != model.Parallel {
			m.raise(primitives.DoneStateEvent(m.doc.Node(parent).ID, m.evalDoneData(f)))
			g = m.doc.Node(parent).Parent
		}
		for ; g != model.RootID && g != model.NoNode; g = m.doc.Node(g).Parent {
			if m.doc.Node(g).Kind != model.Parallel || !m.doc.InFinalState(g, m.config.Has) {
				break
			}
			if raised[g] {
				break
			}
			raised[g] = true
			m.raise(primitives.DoneStateEvent(m.doc.Node(g).ID, nil))
		}
	}
}

// afterStep runs once per macrostep: finishing a final machine, the legality
// check, publication and persistence.
func (m *Machine) afterStep(ctx context.Context, eventName string) error {
	if m.lifecycle() == lifecycleFinal && !m.finished {
		m.finish(ctx)
	}

	var err error
	if m.legality {
		if ok, diag := IsLegal(m.doc, m.config.List()); !ok {
			m.report(CodeIllegalConfig, diag, "")
			if m.strict {
				err = cloneError(ErrIllegalConfig, diag, nil, map[string]any{"session": m.sessionID})
			}
		}
	}

	if m.publisher != nil {
		record := StepRecord{
			SessionID: m.sessionID,
			Name:      m.name,
			Event:     eventName,
			Active:    m.doc.IDs(m.config.List()),
			Final:     m.lifecycle() == lifecycleFinal,
			Timestamp: time.Now().UTC(),
		}
		if perr := m.publisher.Publish(ctx, record); perr != nil {
			m.logger.Warn("publish step: %s", errorMessage(perr))
		}
	}
	if m.persister != nil {
		if perr := m.persister.Save(ctx, m.snapshotLocked()); perr != nil {
			m.logger.Warn("persist snapshot: %s", errorMessage(perr))
		}
	}
	m.logger.Debug("macrostep complete event=%q active=%v", eventName, m.doc.IDs(m.config.List()))
	return err
}

// finish cancels invocations and notifies the parent once the machine reaches
// a top-level final state. The configuration is left in place.
func (m *Machine) finish(ctx context.Context) {
	m.finished = true
	m.cancelAll(ctx)
	m.delayed.stopAll()
	m.pending = nil
	m.internal = nil
	m.discardQueued()
	if m.parent != nil {
		m.parent.Deliver(m.parentInvokeID, primitives.DoneInvokeEvent(m.parentInvokeID, m.doneData))
	}
	m.closeDone()
}

func (m *Machine) evalDoneData(final model.NodeID) any {
	params := m.doc.Node(final).DoneData
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]any, len(params))
	for _, p := range params {
		v, err := m.paramValue(p)
		if err != nil {
			m.executionError(err, final)
			continue
		}
		out[p.Name] = v
	}
	return out
}

func (m *Machine) setEvent(evt primitives.Event) {
	m.current = &evt
	m.data.SetLocal(primitives.VarEvent, evt)
}

func (m *Machine) currentEvent() primitives.Event {
	if m.current == nil {
		return primitives.Event{}
	}
	return *m.current
}

func (m *Machine) raise(evt primitives.Event) {
	if evt.Type == primitives.ExternalEvent {
		evt.Type = primitives.InternalEvent
	}
	m.internal = append(m.internal, evt)
}

func (m *Machine) popInternal() (primitives.Event, bool) {
	if len(m.internal) == 0 {
		return primitives.Event{}, false
	}
	evt := m.internal[0]
	m.internal = m.internal[1:]
	return evt, true
}

func (m *Machine) pushExternal(evt primitives.Event) {
	m.queueMu.Lock()
	m.external = append(m.external, evt)
	m.queueMu.Unlock()
}

func (m *Machine) takeWork() ([]primitives.Event, primitives.Event, bool) {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	if len(m.inbox) > 0 {
		inbox := m.inbox
		m.inbox = nil
		return inbox, primitives.Event{}, false
	}
	if len(m.external) == 0 {
		return nil, primitives.Event{}, false
	}
	evt := m.external[0]
	m.external = m.external[1:]
	return nil, evt, true
}

func (m *Machine) discardQueued() {
	m.queueMu.Lock()
	m.external = nil
	m.inbox = nil
	m.queueMu.Unlock()
}

func (m *Machine) signal() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *Machine) closeDone() {
	m.doneMu.Lock()
	defer m.doneMu.Unlock()
	select {
	case <-m.done:
	default:
		close(m.done)
	}
}

// report logs a diagnostic at warn and forwards it to the configured reporter.
func (m *Machine) report(code, detail, node string) {
	m.logger.Warn("%s: %s (node=%q)", code, detail, node)
	if m.reporter != nil {
		m.reporter.Report(code, detail, node)
	}
}
