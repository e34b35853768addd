package testutil

import (
	"context"
	"sync"

	"github.com/comalice/chartx"
)

// CallLog is an ordered, concurrency-safe list of labels.
type CallLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *CallLog) Add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

// Calls returns a copy of the recorded labels.
func (l *CallLog) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *CallLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

// LogAction is a Go action that appends label to log when it runs.
func LogAction(log *CallLog, label string) chartx.ActionConfig {
	return chartx.Do(label, func(chartx.ActionContext) error {
		log.Add(label)
		return nil
	})
}

// RecordingInvoker is an Invoker that records its lifecycle as
// "invoke:<id>" and "cancel:<id>" in Log.
type RecordingInvoker struct {
	Log        *CallLog
	FailInvoke error
	FailCancel error
	// OnInvoke runs after a successful start, e.g. to send events back.
	OnInvoke func(*RecordingInvoker)

	mu       sync.Mutex
	id       string
	parent   chartx.Parent
	src      string
	content  any
	params   map[string]any
	received []chartx.Event
	live     bool
}

var _ chartx.Invoker = (*RecordingInvoker)(nil)

func (r *RecordingInvoker) InvokeID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}

func (r *RecordingInvoker) SetInvokeID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.id = id
}

func (r *RecordingInvoker) SetParent(p chartx.Parent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parent = p
}

func (r *RecordingInvoker) Invoke(_ context.Context, src string, params map[string]any) error {
	r.mu.Lock()
	r.src = src
	r.mu.Unlock()
	return r.start(params)
}

func (r *RecordingInvoker) InvokeContent(_ context.Context, content any, params map[string]any) error {
	r.mu.Lock()
	r.content = content
	r.mu.Unlock()
	return r.start(params)
}

func (r *RecordingInvoker) start(params map[string]any) error {
	r.mu.Lock()
	r.params = params
	id := r.id
	r.mu.Unlock()
	r.log("invoke:" + id)
	if r.FailInvoke != nil {
		return r.FailInvoke
	}
	r.mu.Lock()
	r.live = true
	r.mu.Unlock()
	if r.OnInvoke != nil {
		r.OnInvoke(r)
	}
	return nil
}

func (r *RecordingInvoker) Cancel(context.Context) error {
	r.mu.Lock()
	r.live = false
	id := r.id
	r.mu.Unlock()
	r.log("cancel:" + id)
	return r.FailCancel
}

func (r *RecordingInvoker) ParentEvent(evt chartx.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, evt)
	return nil
}

// Send delivers an event from the service to its parent.
func (r *RecordingInvoker) Send(name string, data any) {
	r.mu.Lock()
	parent, id := r.parent, r.id
	r.mu.Unlock()
	if parent != nil {
		parent.Deliver(id, chartx.NewEvent(name, data))
	}
}

func (r *RecordingInvoker) Src() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src
}

func (r *RecordingInvoker) Content() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.content
}

func (r *RecordingInvoker) Params() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.params
}

// Received returns the events forwarded by the parent.
func (r *RecordingInvoker) Received() []chartx.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chartx.Event(nil), r.received...)
}

// Live reports whether the service was started and not yet cancelled.
func (r *RecordingInvoker) Live() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

func (r *RecordingInvoker) log(call string) {
	if r.Log != nil {
		r.Log.Add(call)
	}
}

// InvokerFactory hands out RecordingInvokers sharing one CallLog.
type InvokerFactory struct {
	Log *CallLog
	// Configure adjusts each invoker before it is returned.
	Configure func(*RecordingInvoker)

	mu      sync.Mutex
	created []*RecordingInvoker
}

// Factory satisfies chartx.InvokerFactory.
func (f *InvokerFactory) Factory() chartx.Invoker {
	r := &RecordingInvoker{Log: f.Log}
	if f.Configure != nil {
		f.Configure(r)
	}
	f.mu.Lock()
	f.created = append(f.created, r)
	f.mu.Unlock()
	return r
}

// Created returns every invoker handed out, in order.
func (f *InvokerFactory) Created() []*RecordingInvoker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*RecordingInvoker(nil), f.created...)
}

// Report is one ErrorReporter call.
type Report struct {
	Code, Detail, Node string
}

// RecordingReporter is an ErrorReporter that keeps every report.
type RecordingReporter struct {
	mu      sync.Mutex
	reports []Report
}

var _ chartx.ErrorReporter = (*RecordingReporter)(nil)

func (r *RecordingReporter) Report(code, detail, node string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, Report{Code: code, Detail: detail, Node: node})
}

func (r *RecordingReporter) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Report(nil), r.reports...)
}

// Codes returns the reported codes in order.
func (r *RecordingReporter) Codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.reports))
	for i, rep := range r.reports {
		out[i] = rep.Code
	}
	return out
}

// RecordingListener records "entry:<id>", "exit:<id>" and
// "transition:<from>:<event>" entries.
type RecordingListener struct {
	Log CallLog
}

var _ chartx.Listener = (*RecordingListener)(nil)

func (l *RecordingListener) OnEntry(state string) { l.Log.Add("entry:" + state) }
func (l *RecordingListener) OnExit(state string)  { l.Log.Add("exit:" + state) }

func (l *RecordingListener) OnTransition(from string, _ []string, evt *chartx.Event) {
	name := ""
	if evt != nil {
		name = evt.Name
	}
	l.Log.Add("transition:" + from + ":" + name)
}
