package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comalice/chartx/internal/model"
	"github.com/comalice/chartx/internal/primitives"
)

func compile(t *testing.T, b *primitives.DocumentBuilder) *model.Document {
	t.Helper()
	cfg, err := b.Build()
	require.NoError(t, err)
	doc, err := model.Compile(cfg)
	require.NoError(t, err)
	return doc
}

func started(t *testing.T, doc *model.Document, opts ...Option) *Machine {
	t.Helper()
	m := NewMachine(doc, opts...)
	require.NoError(t, m.Start(context.Background()))
	return m
}

func trigger(t *testing.T, m *Machine, name string) {
	t.Helper()
	require.NoError(t, m.TriggerEvent(context.Background(), primitives.NewEvent(name, nil)))
}

type reported struct {
	Code, Detail, Node string
}

type recordingReporter struct {
	mu      sync.Mutex
	entries []reported
}

func (r *recordingReporter) Report(code, detail, node string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, reported{code, detail, node})
}

func (r *recordingReporter) codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Code)
	}
	return out
}

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// logAction appends name to the log when it runs.
func logAction(log *callLog, name string) primitives.ActionConfig {
	return primitives.Do(name, func(primitives.ActionContext) error {
		log.add(name)
		return nil
	})
}

type stubInvoker struct {
	log        *callLog
	id         string
	parent     Parent
	src        string
	content    any
	params     map[string]any
	received   []primitives.Event
	failInvoke error
	failCancel error
	onInvoke   func(s *stubInvoker)
}

func (s *stubInvoker) InvokeID() string      { return s.id }
func (s *stubInvoker) SetInvokeID(id string) { s.id = id }
func (s *stubInvoker) SetParent(p Parent)    { s.parent = p }

func (s *stubInvoker) Invoke(_ context.Context, src string, params map[string]any) error {
	s.src = src
	return s.start(params)
}

func (s *stubInvoker) InvokeContent(_ context.Context, content any, params map[string]any) error {
	s.content = content
	return s.start(params)
}

func (s *stubInvoker) start(params map[string]any) error {
	s.params = params
	s.log.add("invoke:" + s.id)
	if s.failInvoke != nil {
		return s.failInvoke
	}
	if s.onInvoke != nil {
		s.onInvoke(s)
	}
	return nil
}

func (s *stubInvoker) Cancel(context.Context) error {
	s.log.add("cancel:" + s.id)
	return s.failCancel
}

func (s *stubInvoker) ParentEvent(evt primitives.Event) error {
	s.received = append(s.received, evt)
	return nil
}

// send delivers an event from the stub to its parent.
func (s *stubInvoker) send(name string, data any) {
	s.parent.Deliver(s.id, primitives.NewEvent(name, data))
}

type stubFactory struct {
	log     *callLog
	created []*stubInvoker
	tweak   func(*stubInvoker)
}

func (f *stubFactory) factory() Invoker {
	s := &stubInvoker{log: f.log}
	if f.tweak != nil {
		f.tweak(s)
	}
	f.created = append(f.created, s)
	return s
}

type recordingListener struct {
	mu     sync.Mutex
	events []string
}

func (l *recordingListener) OnEntry(state string) { l.add("entry:" + state) }
func (l *recordingListener) OnExit(state string)  { l.add("exit:" + state) }
func (l *recordingListener) OnTransition(from string, to []string, evt *primitives.Event) {
	name := ""
	if evt != nil {
		name = evt.Name
	}
	l.add("transition:" + from + ":" + name)
}

func (l *recordingListener) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, s)
}

// locationEvaluator evaluates every expression as a plain location, which is
// enough for actions that only need to read datamodel values.
type locationEvaluator struct{ contextEvaluator }

func (e locationEvaluator) Eval(ctx *primitives.Context, expr string) (any, error) {
	return e.EvalLocation(ctx, expr)
}
