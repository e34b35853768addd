package core

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/comalice/chartx/internal/model"
	"github.com/comalice/chartx/internal/primitives"
)

// errBlockAborted stops the enclosing action block after an error was reported.
var errBlockAborted = stderrors.New("action block aborted")

func wrapExpr(err error, expr string) error {
	if ErrorCode(err) == CodeExpressionError {
		return err
	}
	return cloneError(ErrExpression, fmt.Sprintf("evaluating %q: %s", expr, errorMessage(err)), err,
		map[string]any{"expr": expr})
}

// runBlock executes an action block. An error stops the block; the error is
// reported and error.execution is raised.
func (m *Machine) runBlock(ctx context.Context, actions []primitives.ActionConfig, state model.NodeID) {
	_ = m.execActions(ctx, actions, state)
}

func (m *Machine) execActions(ctx context.Context, actions []primitives.ActionConfig, state model.NodeID) error {
	for i := range actions {
		if err := m.execAction(ctx, &actions[i], state); err != nil {
			if !stderrors.Is(err, errBlockAborted) {
				m.executionError(err, state)
			}
			return errBlockAborted
		}
	}
	return nil
}

// executionError reports err and raises error.execution.
func (m *Machine) executionError(err error, state model.NodeID) {
	code := ErrorCode(err)
	if code == "" {
		code = CodeExpressionError
	}
	detail := errorMessage(err)
	m.report(code, detail, m.nodeID(state))
	m.raise(primitives.ErrorEvent(primitives.EventErrorExecution, detail))
}

func (m *Machine) communicationError(detail string, state model.NodeID) {
	m.report(CodeCommunicationError, detail, m.nodeID(state))
	m.raise(primitives.ErrorEvent(primitives.EventErrorCommunication, detail))
}

func (m *Machine) nodeID(n model.NodeID) string {
	if n == model.NoNode {
		return ""
	}
	return m.doc.Node(n).ID
}

func (m *Machine) execAction(ctx context.Context, a *primitives.ActionConfig, state model.NodeID) error {
	switch a.Kind() {
	case primitives.ActionRaise:
		m.raise(primitives.NewInternalEvent(a.Raise.Event, nil))
		return nil

	case primitives.ActionAssign:
		value := a.Assign.Value
		if a.Assign.Expr != "" {
			v, err := m.evaluator.Eval(m.data, a.Assign.Expr)
			if err != nil {
				return wrapExpr(err, a.Assign.Expr)
			}
			value = v
		}
		if err := m.evaluator.EvalAssign(m.data, a.Assign.Location, value); err != nil {
			return wrapExpr(err, a.Assign.Location)
		}
		return nil

	case primitives.ActionLog:
		var value any
		if a.Log.Expr != "" {
			v, err := m.evaluator.Eval(m.data, a.Log.Expr)
			if err != nil {
				return wrapExpr(err, a.Log.Expr)
			}
			value = v
		}
		switch {
		case a.Log.Label != "" && a.Log.Expr != "":
			m.logger.Info("%s: %v", a.Log.Label, value)
		case a.Log.Label != "":
			m.logger.Info("%s", a.Log.Label)
		default:
			m.logger.Info("%v", value)
		}
		return nil

	case primitives.ActionScript:
		if err := m.evaluator.EvalScript(m.data, a.Script.Source); err != nil {
			return wrapExpr(err, a.Script.Source)
		}
		return nil

	case primitives.ActionSend:
		return m.execSend(a.Send, state)

	case primitives.ActionCancel:
		sendID := a.Cancel.SendID
		if a.Cancel.SendIDExpr != "" {
			v, err := m.evaluator.Eval(m.data, a.Cancel.SendIDExpr)
			if err != nil {
				return wrapExpr(err, a.Cancel.SendIDExpr)
			}
			sendID = fmt.Sprint(v)
		}
		if !m.delayed.cancel(sendID) {
			m.logger.Debug("cancel %q: no pending send", sendID)
		}
		return nil

	case primitives.ActionForeach:
		return m.execForeach(ctx, a.Foreach, state)

	case primitives.ActionIf:
		for _, br := range a.If.Branches {
			ok := true
			if br.Cond != "" {
				v, err := m.evaluator.EvalCond(m.data, br.Cond)
				if err != nil {
					return wrapExpr(err, br.Cond)
				}
				ok = v
			}
			if ok {
				return m.execActions(ctx, br.Actions, state)
			}
		}
		return nil

	case primitives.ActionFunc:
		return m.callFunc(ctx, a, state)

	default:
		return cloneError(ErrUnknownAction, fmt.Sprintf("action %q has no single kind", a.Label()), nil,
			map[string]any{"state": m.nodeID(state)})
	}
}

func (m *Machine) callFunc(ctx context.Context, a *primitives.ActionConfig, state model.NodeID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = cloneError(ErrExpression, fmt.Sprintf("action %s panicked: %v", a.Label(), r), nil,
				map[string]any{"state": m.nodeID(state)})
		}
	}()
	if err := a.Func(&actionContext{m: m, ctx: ctx, state: state}); err != nil {
		return cloneError(ErrExpression, fmt.Sprintf("action %s failed: %s", a.Label(), errorMessage(err)), err,
			map[string]any{"state": m.nodeID(state)})
	}
	return nil
}

func (m *Machine) execSend(s *primitives.SendAction, state model.NodeID) error {
	name := s.Event
	if s.EventExpr != "" {
		v, err := m.evaluator.Eval(m.data, s.EventExpr)
		if err != nil {
			return wrapExpr(err, s.EventExpr)
		}
		name = fmt.Sprint(v)
	}
	target := s.Target
	if s.TargetExpr != "" {
		v, err := m.evaluator.Eval(m.data, s.TargetExpr)
		if err != nil {
			return wrapExpr(err, s.TargetExpr)
		}
		target = fmt.Sprint(v)
	}
	sendID := s.ID
	if sendID == "" {
		sendID = ulid.Make().String()
		if s.IDLocation != "" {
			if err := m.evaluator.EvalAssign(m.data, s.IDLocation, sendID); err != nil {
				return wrapExpr(err, s.IDLocation)
			}
		}
	}
	data, err := m.payload(s.Params, s.Namelist, s.Content)
	if err != nil {
		return err
	}

	delay, err := m.sendDelay(s)
	if err != nil {
		return err
	}

	evt := primitives.NewEvent(name, data)
	evt.SendID = sendID
	if delay > 0 {
		if target == primitives.TargetInternal {
			return cloneError(ErrExpression, fmt.Sprintf("send %s to %s cannot be delayed", name, target), nil,
				map[string]any{"state": m.nodeID(state)})
		}
		m.delayed.schedule(delay, &delayedSend{id: sendID, target: target, evt: evt, state: m.nodeID(state)}, m.signal)
		m.logger.Debug("send %s to %q delayed %s id=%s", name, target, delay, sendID)
		return nil
	}
	if err := m.route(evt, target); err != nil {
		m.communicationError(errorMessage(err), state)
	}
	return nil
}

// sendDelay resolves the delay of a send. Numbers are milliseconds.
func (m *Machine) sendDelay(s *primitives.SendAction) (time.Duration, error) {
	if s.DelayExpr == "" {
		if s.Delay == "" {
			return 0, nil
		}
		d, err := time.ParseDuration(s.Delay)
		if err != nil {
			return 0, wrapExpr(err, s.Delay)
		}
		return d, nil
	}
	v, err := m.evaluator.Eval(m.data, s.DelayExpr)
	if err != nil {
		return 0, wrapExpr(err, s.DelayExpr)
	}
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, wrapExpr(err, s.DelayExpr)
		}
		return parsed, nil
	case int:
		return time.Duration(d) * time.Millisecond, nil
	case int64:
		return time.Duration(d) * time.Millisecond, nil
	case float64:
		return time.Duration(d * float64(time.Millisecond)), nil
	}
	return 0, cloneError(ErrExpression, fmt.Sprintf("delay %q evaluated to %T", s.DelayExpr, v), nil,
		map[string]any{"expr": s.DelayExpr})
}

// execForeach iterates over a snapshot of the array so the body may reassign
// it. An error in the body stops the iteration.
func (m *Machine) execForeach(ctx context.Context, f *primitives.ForeachAction, state model.NodeID) error {
	v, err := m.evaluator.Eval(m.data, f.Array)
	if err != nil {
		return wrapExpr(err, f.Array)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return cloneError(ErrExpression, fmt.Sprintf("foreach array %q is %T, not iterable", f.Array, v), nil,
			map[string]any{"expr": f.Array})
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	for i, item := range items {
		if err := m.evaluator.EvalAssign(m.data, f.Item, item); err != nil {
			return wrapExpr(err, f.Item)
		}
		if f.Index != "" {
			if err := m.evaluator.EvalAssign(m.data, f.Index, i); err != nil {
				return wrapExpr(err, f.Index)
			}
		}
		if err := m.execActions(ctx, f.Actions, state); err != nil {
			return err
		}
	}
	return nil
}

// dispatchDue routes delayed sends whose timers fired. Routing failures are
// queued as error.communication for the next macrostep.
func (m *Machine) dispatchDue() {
	for _, s := range m.delayed.takeDue() {
		if err := m.route(s.evt, s.target); err != nil {
			detail := errorMessage(err)
			m.report(CodeCommunicationError, detail, s.state)
			m.queueMu.Lock()
			m.inbox = append(m.inbox, primitives.ErrorEvent(primitives.EventErrorCommunication, detail))
			m.queueMu.Unlock()
		}
	}
}

// route delivers an event to a send target.
func (m *Machine) route(evt primitives.Event, target string) error {
	self := "#_scxml_" + m.sessionID
	if evt.Origin == "" {
		evt.Origin = self
		evt.OriginType = SCXMLEventProcessor
	}
	switch {
	case target == primitives.TargetInternal:
		evt.Type = primitives.InternalEvent
		m.raise(evt)
	case target == "" || target == self:
		evt.Type = primitives.ExternalEvent
		m.pushExternal(evt)
		m.signal()
	case target == primitives.TargetParent:
		if m.parent == nil {
			return cloneError(ErrCommunication, fmt.Sprintf("no parent for %s", evt.Name), nil, nil)
		}
		m.parent.Deliver(m.parentInvokeID, evt)
	case strings.HasPrefix(target, "#_scxml_"):
		return cloneError(ErrCommunication, fmt.Sprintf("unknown session target %q", target), nil,
			map[string]any{"target": target})
	case strings.HasPrefix(target, primitives.TargetInvokePrefix):
		return m.sendToInvocation(strings.TrimPrefix(target, primitives.TargetInvokePrefix), evt)
	default:
		return cloneError(ErrCommunication, fmt.Sprintf("unsupported target %q", target), nil,
			map[string]any{"target": target})
	}
	return nil
}

func (m *Machine) payload(params []primitives.ParamConfig, namelist []string, content any) (any, error) {
	if len(params) == 0 && len(namelist) == 0 {
		return content, nil
	}
	out := make(map[string]any, len(params)+len(namelist)+1)
	for _, name := range namelist {
		v, err := m.evaluator.EvalLocation(m.data, name)
		if err != nil {
			return nil, wrapExpr(err, name)
		}
		out[name] = v
	}
	for _, p := range params {
		v, err := m.paramValue(p)
		if err != nil {
			return nil, err
		}
		out[p.Name] = v
	}
	if content != nil {
		out["content"] = content
	}
	return out, nil
}

func (m *Machine) paramValue(p primitives.ParamConfig) (any, error) {
	switch {
	case p.Value != nil:
		return p.Value, nil
	case p.Location != "":
		v, err := m.evaluator.EvalLocation(m.data, p.Location)
		if err != nil {
			return nil, wrapExpr(err, p.Location)
		}
		return v, nil
	case p.Expr != "":
		v, err := m.evaluator.Eval(m.data, p.Expr)
		if err != nil {
			return nil, wrapExpr(err, p.Expr)
		}
		return v, nil
	}
	return nil, nil
}

// guardCheck evaluates a transition's condition and Go guard. Errors count as
// false and raise error.execution. An eventless guard that keeps failing is
// reported once per macrostep, so the error event it raises cannot re-trigger
// the same report forever.
func (m *Machine) guardCheck(t *model.Transition) bool {
	if t.Cond != "" {
		ok, err := m.evaluator.EvalCond(m.data, t.Cond)
		if err != nil {
			m.guardError(t, wrapExpr(err, t.Cond))
			return false
		}
		if !ok {
			return false
		}
	}
	if t.Guard != nil {
		ok, err := m.callGuard(t)
		if err != nil {
			m.guardError(t, err)
			return false
		}
		return ok
	}
	return true
}

func (m *Machine) guardError(t *model.Transition, err error) {
	if m.eventless && m.guardFailures != nil {
		if m.guardFailures[t] {
			return
		}
		m.guardFailures[t] = true
	}
	m.executionError(err, t.Source)
}

func (m *Machine) callGuard(t *model.Transition) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = cloneError(ErrExpression, fmt.Sprintf("guard on %s panicked: %v", m.nodeID(t.Source), r), nil,
				map[string]any{"state": m.nodeID(t.Source)})
		}
	}()
	return t.Guard(m.data, m.currentEvent()), nil
}

// actionContext is the handle passed to Go actions.
type actionContext struct {
	m     *Machine
	ctx   context.Context
	state model.NodeID
}

func (a *actionContext) Context() context.Context    { return a.ctx }
func (a *actionContext) Data() *primitives.Context   { return a.m.data }
func (a *actionContext) Event() primitives.Event     { return a.m.currentEvent() }
func (a *actionContext) StateID() string             { return a.m.nodeID(a.state) }
func (a *actionContext) Raise(name string, data any) { a.m.raise(primitives.NewInternalEvent(name, data)) }

func (a *actionContext) Send(evt primitives.Event, target string) error {
	return a.m.route(evt, target)
}
