package extensibility

import (
	"time"

	"github.com/comalice/chartx/internal/core"
	"github.com/comalice/chartx/internal/primitives"
)

var _ core.Evaluator = (*LoggingEvaluator)(nil)

// LoggingEvaluator wraps an Evaluator and traces every evaluation.
type LoggingEvaluator struct {
	inner  core.Evaluator
	logger core.Logger
}

// NewLoggingEvaluator wraps inner. A nil logger falls back to core.FmtLogger.
func NewLoggingEvaluator(inner core.Evaluator, logger core.Logger) *LoggingEvaluator {
	if logger == nil {
		logger = core.NewFmtLogger(nil)
	}
	return &LoggingEvaluator{inner: inner, logger: logger}
}

func (l *LoggingEvaluator) NewContext(parent *primitives.Context) *primitives.Context {
	return l.inner.NewContext(parent)
}

func (l *LoggingEvaluator) Eval(ctx *primitives.Context, expr string) (any, error) {
	start := time.Now()
	v, err := l.inner.Eval(ctx, expr)
	l.done("eval", expr, start, err)
	return v, err
}

func (l *LoggingEvaluator) EvalCond(ctx *primitives.Context, expr string) (bool, error) {
	start := time.Now()
	ok, err := l.inner.EvalCond(ctx, expr)
	l.done("cond", expr, start, err)
	return ok, err
}

func (l *LoggingEvaluator) EvalLocation(ctx *primitives.Context, location string) (any, error) {
	start := time.Now()
	v, err := l.inner.EvalLocation(ctx, location)
	l.done("location", location, start, err)
	return v, err
}

func (l *LoggingEvaluator) EvalAssign(ctx *primitives.Context, location string, value any) error {
	start := time.Now()
	err := l.inner.EvalAssign(ctx, location, value)
	l.done("assign", location, start, err)
	return err
}

func (l *LoggingEvaluator) EvalScript(ctx *primitives.Context, script string) error {
	start := time.Now()
	err := l.inner.EvalScript(ctx, script)
	l.done("script", script, start, err)
	return err
}

func (l *LoggingEvaluator) done(op, expr string, start time.Time, err error) {
	if err != nil {
		l.logger.Debug("%s %q failed after %v: %v", op, expr, time.Since(start), err)
		return
	}
	l.logger.Trace("%s %q completed in %v", op, expr, time.Since(start))
}
