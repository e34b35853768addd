package production

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/chartx/internal/core"
	"github.com/comalice/chartx/internal/primitives"
)

func TestGlogLoggerWritesStructuredOutput(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	logger := NewLogger(buf, "trace", true)

	logger.Info("chart started")
	var l core.Logger = logger
	if fl, ok := l.(core.FieldsLogger); ok {
		l = fl.WithFields(map[string]any{"session_id": "abc"})
	}
	l.WithContext(context.Background()).Warn("step failed")

	out := buf.String()
	assert.Contains(t, out, "chart started")
	assert.Contains(t, out, "step failed")
	assert.Contains(t, out, "session_id")
}

func TestGlogLoggerDrivesMachine(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	ctx := context.Background()
	m := core.NewMachine(trafficDoc(t), core.WithLogger(NewLogger(buf, "debug", true)))
	require.NoError(t, m.Start(ctx))
	require.NoError(t, m.TriggerEvent(ctx, primitives.NewEvent("timer", nil)))
	assert.NotEmpty(t, strings.TrimSpace(buf.String()))
	assert.Contains(t, buf.String(), "session")
}

func TestGlogLoggerNilFallsBack(t *testing.T) {
	t.Parallel()
	var l GlogLogger
	_, ok := l.WithFields(map[string]any{"a": 1}).(*core.FmtLogger)
	assert.True(t, ok)
	_, ok = l.WithContext(context.Background()).(*core.FmtLogger)
	assert.True(t, ok)
}

type capturedLog struct {
	fields map[string]any
	lines  []string
}

type captureLogger struct {
	core.NopLogger
	log *capturedLog
}

func (c captureLogger) Warn(msg string, args ...any) {
	c.log.lines = append(c.log.lines, msg)
}

func (c captureLogger) WithFields(fields map[string]any) core.Logger {
	c.log.fields = fields
	return c
}

func TestLoggingErrorReporter(t *testing.T) {
	t.Parallel()
	log := &capturedLog{}
	r := NewLoggingErrorReporter(captureLogger{log: log})

	r.Report(core.CodeExpressionError, "x is not defined", "s1")
	r.Report(core.CodeExpressionError, "y is not defined", "s2")
	r.Report(core.CodeInvokeFailed, "boom", "s3")

	assert.Equal(t, 2, r.Count(core.CodeExpressionError))
	assert.Equal(t, 1, r.Count(core.CodeInvokeFailed))
	assert.Equal(t, 0, r.Count(core.CodeMicrostepLimit))
	assert.Equal(t, []string{core.CodeExpressionError, core.CodeInvokeFailed}, r.Codes())
	assert.Len(t, log.lines, 3)
	assert.Equal(t, map[string]any{"code": core.CodeInvokeFailed, "node": "s3"}, log.fields)
}

func TestLoggingErrorReporterWithMachine(t *testing.T) {
	t.Parallel()
	cfg, err := primitives.NewDocumentBuilder("bad").
		Atomic("a").OnEntry(primitives.Assign("x", "1 +")).
		Build()
	require.NoError(t, err)
	doc := compileDoc(t, cfg)

	r := NewLoggingErrorReporter(core.NopLogger{})
	m := core.NewMachine(doc, core.WithErrorReporter(r))
	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, 1, r.Count(core.CodeExpressionError))
}
