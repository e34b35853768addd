package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/chartx"
)

func TestRecordingInvokerLifecycle(t *testing.T) {
	log := &CallLog{}
	factory := &InvokerFactory{Log: log, Configure: func(r *RecordingInvoker) {
		r.OnInvoke = func(r *RecordingInvoker) { r.Send("ready", nil) }
	}}
	listener := &RecordingListener{}

	cfg, err := chartx.NewDocumentBuilder("svc").
		Atomic("working").
		Invoke(chartx.InvokeConfig{ID: "job", Type: "recorder", Src: "job.yaml"}).
		OnExit(LogAction(log, "exit-action")).
		On("ready", "idle").
		Atomic("idle").
		Build()
	require.NoError(t, err)
	ex, err := chartx.NewExecutor(chartx.MustCompile(cfg),
		chartx.WithLogger(chartx.NopLogger{}),
		chartx.WithInvoker("recorder", factory.Factory),
		chartx.WithListener(listener))
	require.NoError(t, err)

	require.NoError(t, ex.Start(context.Background()))
	require.NoError(t, ex.RunToQuiescence(context.Background()))

	assert.True(t, ex.IsActive("idle"))
	assert.Equal(t, []string{"invoke:job", "cancel:job", "exit-action"}, log.Calls())

	created := factory.Created()
	require.Len(t, created, 1)
	assert.Equal(t, "job.yaml", created[0].Src())
	assert.False(t, created[0].Live())
	assert.Contains(t, listener.Log.Calls(), "transition:working:ready")
}

func TestRecordingInvokerFailure(t *testing.T) {
	reporter := &RecordingReporter{}
	factory := &InvokerFactory{Configure: func(r *RecordingInvoker) {
		r.FailInvoke = errors.New("boom")
	}}

	cfg, err := chartx.NewDocumentBuilder("svc").
		Atomic("working").
		Invoke(chartx.InvokeConfig{ID: "job", Type: "recorder"}).
		On("error.execution", "failed").
		Atomic("failed").
		Build()
	require.NoError(t, err)
	ex, err := chartx.NewExecutor(chartx.MustCompile(cfg),
		chartx.WithLogger(chartx.NopLogger{}),
		chartx.WithInvoker("recorder", factory.Factory),
		chartx.WithErrorReporter(reporter))
	require.NoError(t, err)

	require.NoError(t, ex.Start(context.Background()))
	assert.True(t, ex.IsActive("failed"))
	assert.Contains(t, reporter.Codes(), "INVOKE_FAILED")
}

func TestCallLogReset(t *testing.T) {
	log := &CallLog{}
	log.Add("a")
	log.Add("b")
	assert.Equal(t, []string{"a", "b"}, log.Calls())
	log.Reset()
	assert.Empty(t, log.Calls())
}
