package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/comalice/chartx/internal/model"
	"github.com/comalice/chartx/internal/primitives"
)

// SCXMLEventProcessor is the origin type stamped on events exchanged between machines.
const SCXMLEventProcessor = "http://www.w3.org/TR/scxml/#SCXMLEventProcessor"

var _ Parent = (*Machine)(nil)

type invocation struct {
	id      string
	state   model.NodeID
	index   int
	decl    *primitives.InvokeConfig
	invoker Invoker
}

// pendingInvoke is an invocation whose state was entered during the current
// macrostep. Params are resolved at entry; the service starts at quiescence.
type pendingInvoke struct {
	state  model.NodeID
	index  int
	params map[string]any
	src    string
	id     string
}

// invocationManager tracks live invocations. The step loop mutates it; Deliver
// reads it from other goroutines.
type invocationManager struct {
	mu        sync.RWMutex
	live      map[string]*invocation
	order     []string
	cancelled map[string]struct{}
}

func newInvocationManager() *invocationManager {
	return &invocationManager{
		live:      make(map[string]*invocation),
		cancelled: make(map[string]struct{}),
	}
}

func (im *invocationManager) add(inv *invocation) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.live[inv.id] = inv
	im.order = append(im.order, inv.id)
	delete(im.cancelled, inv.id)
}

func (im *invocationManager) remove(id string) {
	im.mu.Lock()
	defer im.mu.Unlock()
	if _, ok := im.live[id]; !ok {
		return
	}
	delete(im.live, id)
	im.cancelled[id] = struct{}{}
	for i, x := range im.order {
		if x == id {
			im.order = append(im.order[:i], im.order[i+1:]...)
			break
		}
	}
}

func (im *invocationManager) get(id string) (*invocation, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	inv, ok := im.live[id]
	return inv, ok
}

func (im *invocationManager) alive(id string) bool {
	_, ok := im.get(id)
	return ok
}

func (im *invocationManager) wasCancelled(id string) bool {
	im.mu.RLock()
	defer im.mu.RUnlock()
	_, ok := im.cancelled[id]
	return ok
}

// all returns live invocations in start order.
func (im *invocationManager) all() []*invocation {
	im.mu.RLock()
	defer im.mu.RUnlock()
	out := make([]*invocation, 0, len(im.order))
	for _, id := range im.order {
		out = append(out, im.live[id])
	}
	return out
}

func (im *invocationManager) forState(state model.NodeID) []*invocation {
	var out []*invocation
	for _, inv := range im.all() {
		if inv.state == state {
			out = append(out, inv)
		}
	}
	return out
}

func (im *invocationManager) reset() {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.live = make(map[string]*invocation)
	im.order = nil
	im.cancelled = make(map[string]struct{})
}

// scheduleInvokes resolves the invoke declarations of a state just entered.
func (m *Machine) scheduleInvokes(s model.NodeID) {
	node := m.doc.Node(s)
	for i := range node.Invokes {
		decl := &node.Invokes[i]
		params, err := m.invokeParams(decl)
		if err != nil {
			m.executionError(err, s)
			continue
		}
		src := decl.Src
		if decl.SrcExpr != "" {
			v, err := m.evaluator.Eval(m.data, decl.SrcExpr)
			if err != nil {
				m.executionError(wrapExpr(err, decl.SrcExpr), s)
				continue
			}
			src = fmt.Sprint(v)
		}
		m.pending = append(m.pending, pendingInvoke{state: s, index: i, params: params, src: src})
	}
}

func (m *Machine) invokeParams(decl *primitives.InvokeConfig) (map[string]any, error) {
	if len(decl.Params) == 0 && len(decl.Namelist) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(decl.Params)+len(decl.Namelist))
	for _, name := range decl.Namelist {
		v, err := m.evaluator.EvalLocation(m.data, name)
		if err != nil {
			return nil, wrapExpr(err, name)
		}
		params[name] = v
	}
	for _, p := range decl.Params {
		v, err := m.paramValue(p)
		if err != nil {
			return nil, err
		}
		params[p.Name] = v
	}
	return params, nil
}

func (m *Machine) dropPending(s model.NodeID) {
	kept := m.pending[:0]
	for _, p := range m.pending {
		if p.state != s {
			kept = append(kept, p)
		}
	}
	m.pending = kept
}

// startPending starts the invocations due from this macrostep whose state is
// still active, in entry order.
func (m *Machine) startPending(ctx context.Context) {
	pending := m.pending
	m.pending = nil
	for _, p := range pending {
		if !m.config.Has(p.state) {
			continue
		}
		m.startInvocation(ctx, p)
	}
}

func (m *Machine) startInvocation(ctx context.Context, p pendingInvoke) {
	node := m.doc.Node(p.state)
	decl := &node.Invokes[p.index]
	typ := decl.InvokeType()

	ctx, span := m.tracer.Start(ctx, "chartx.invoke", trace.WithAttributes(
		attribute.String(attrSession, m.sessionID),
		attribute.String(attrState, node.ID),
		attribute.String(attrInvokeType, typ),
	))
	defer span.End()

	factory, ok := m.registry.Lookup(typ)
	if !ok {
		err := cloneError(ErrInvokeFailed, fmt.Sprintf("no invoker registered for type %q", typ), nil,
			map[string]any{"state": node.ID, "type": typ})
		m.invokeFailed(span, err, p.state)
		return
	}

	id := p.id
	if id == "" {
		id = decl.ID
	}
	if id == "" {
		id = node.ID + "." + ulid.Make().String()
		if decl.IDLocation != "" {
			if err := m.evaluator.EvalAssign(m.data, decl.IDLocation, id); err != nil {
				m.executionError(wrapExpr(err, decl.IDLocation), p.state)
			}
		}
	}
	span.SetAttributes(attribute.String(attrInvokeID, id))

	invoker := factory()
	invoker.SetInvokeID(id)
	invoker.SetParent(m)
	m.invokes.add(&invocation{id: id, state: p.state, index: p.index, decl: decl, invoker: invoker})

	var err error
	if p.src != "" {
		err = invoker.Invoke(ctx, p.src, p.params)
	} else {
		err = invoker.InvokeContent(ctx, decl.Content, p.params)
	}
	if err != nil {
		m.invokes.remove(id)
		m.invokeFailed(span, cloneError(ErrInvokeFailed, fmt.Sprintf("invoke %s failed: %s", id, errorMessage(err)), err,
			map[string]any{"state": node.ID, "invokeid": id}), p.state)
		return
	}
	m.logger.Debug("invocation %s started in state %s", id, node.ID)
}

func (m *Machine) invokeFailed(span trace.Span, err error, s model.NodeID) {
	span.RecordError(err)
	span.SetStatus(codes.Error, errorMessage(err))
	m.report(CodeInvokeFailed, errorMessage(err), m.doc.Node(s).ID)
	m.raise(primitives.ErrorEvent(primitives.EventErrorExecution, errorMessage(err)))
}

// cancelInvocations cancels every live invocation bound to a state. It runs
// before the state's exit actions.
func (m *Machine) cancelInvocations(ctx context.Context, s model.NodeID) {
	for _, inv := range m.invokes.forState(s) {
		m.cancelInvocation(ctx, inv)
	}
}

func (m *Machine) cancelInvocation(ctx context.Context, inv *invocation) {
	m.invokes.remove(inv.id)
	if err := inv.invoker.Cancel(ctx); err != nil {
		detail := fmt.Sprintf("cancel %s failed: %s", inv.id, errorMessage(err))
		m.report(CodeCancelFailed, detail, m.doc.Node(inv.state).ID)
		m.raise(primitives.ErrorEvent(primitives.EventErrorExecution, detail))
		return
	}
	m.logger.Debug("invocation %s cancelled", inv.id)
}

func (m *Machine) cancelAll(ctx context.Context) {
	live := m.invokes.all()
	for i := len(live) - 1; i >= 0; i-- {
		m.cancelInvocation(ctx, live[i])
	}
}

// applyFinalize runs the finalize block of the invocation an event came from.
func (m *Machine) applyFinalize(ctx context.Context, evt primitives.Event) {
	if evt.InvokeID == "" {
		return
	}
	inv, ok := m.invokes.get(evt.InvokeID)
	if !ok || len(inv.decl.Finalize) == 0 {
		return
	}
	m.runBlock(ctx, inv.decl.Finalize, inv.state)
}

// autoForward copies an external event to invocations declared with autoforward.
func (m *Machine) autoForward(evt primitives.Event) {
	for _, inv := range m.invokes.all() {
		if !inv.decl.AutoForward {
			continue
		}
		if err := inv.invoker.ParentEvent(evt); err != nil {
			m.communicationError(fmt.Sprintf("forwarding %s to %s: %s", evt.Name, inv.id, errorMessage(err)), inv.state)
		}
	}
}

// sendToInvocation delivers an event from this machine to a child. Events for
// cancelled invocations are dropped.
func (m *Machine) sendToInvocation(id string, evt primitives.Event) error {
	inv, ok := m.invokes.get(id)
	if !ok {
		if m.invokes.wasCancelled(id) {
			m.logger.Debug("dropping %s for cancelled invocation %s", evt.Name, id)
			return nil
		}
		return cloneError(ErrCommunication, fmt.Sprintf("no invocation with id %q", id), nil, map[string]any{"invokeid": id})
	}
	if err := inv.invoker.ParentEvent(evt); err != nil {
		return cloneError(ErrCommunication, fmt.Sprintf("delivering %s to %s: %s", evt.Name, id, errorMessage(err)), err,
			map[string]any{"invokeid": id})
	}
	return nil
}

// Deliver implements Parent. Events from a live invocation are tagged with their
// origin and queued for the next step; others are dropped.
func (m *Machine) Deliver(invokeID string, evt primitives.Event) {
	if !m.invokes.alive(invokeID) {
		m.logger.Debug("dropping %s from inactive invocation %s", evt.Name, invokeID)
		return
	}
	evt.Type = primitives.ExternalEvent
	evt.InvokeID = invokeID
	evt.Origin = primitives.TargetInvokePrefix + invokeID
	evt.OriginType = SCXMLEventProcessor

	m.queueMu.Lock()
	m.inbox = append(m.inbox, evt)
	m.queueMu.Unlock()
	m.signal()
}
