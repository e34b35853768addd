package production

import (
	"context"
	"io"

	"github.com/goliatone/go-logger/glog"

	"github.com/comalice/chartx/internal/core"
)

var (
	_ core.Logger       = GlogLogger{}
	_ core.FieldsLogger = GlogLogger{}
)

// GlogLogger adapts a go-logger logger to core.Logger.
type GlogLogger struct {
	logger glog.Logger
}

// NewGlogLogger wraps an existing go-logger logger.
func NewGlogLogger(logger glog.Logger) GlogLogger {
	return GlogLogger{logger: logger}
}

// NewLogger builds a go-logger logger writing to w at the given level
// ("trace", "debug", "info", ...), as JSON when json is set.
func NewLogger(w io.Writer, level string, json bool) GlogLogger {
	if json {
		return GlogLogger{logger: glog.NewLogger(glog.WithWriter(w), glog.WithLoggerTypeJSON(), glog.WithLevel(level))}
	}
	return GlogLogger{logger: glog.NewLogger(glog.WithWriter(w), glog.WithLevel(level))}
}

func (l GlogLogger) Trace(msg string, args ...any) { l.base().Trace(msg, args...) }
func (l GlogLogger) Debug(msg string, args ...any) { l.base().Debug(msg, args...) }
func (l GlogLogger) Info(msg string, args ...any)  { l.base().Info(msg, args...) }
func (l GlogLogger) Warn(msg string, args ...any)  { l.base().Warn(msg, args...) }
func (l GlogLogger) Error(msg string, args ...any) { l.base().Error(msg, args...) }
func (l GlogLogger) Fatal(msg string, args ...any) { l.base().Fatal(msg, args...) }

func (l GlogLogger) WithContext(ctx context.Context) core.Logger {
	if l.logger == nil {
		return core.NewFmtLogger(nil).WithContext(ctx)
	}
	return GlogLogger{logger: l.logger.WithContext(ctx)}
}

func (l GlogLogger) WithFields(fields map[string]any) core.Logger {
	if l.logger == nil {
		return core.NewFmtLogger(nil).WithFields(fields)
	}
	if fl, ok := l.logger.(glog.FieldsLogger); ok {
		return GlogLogger{logger: fl.WithFields(fields)}
	}
	return l
}

// levels is the subset of glog.Logger used for plain level calls.
type levels interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Fatal(msg string, args ...any)
}

func (l GlogLogger) base() levels {
	if l.logger == nil {
		return core.NewFmtLogger(nil)
	}
	return l.logger
}
