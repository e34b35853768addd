package production

import (
	"sort"
	"sync"

	"github.com/comalice/chartx/internal/core"
)

var _ core.ErrorReporter = (*LoggingErrorReporter)(nil)

// LoggingErrorReporter logs diagnostics at warn and counts them per code.
type LoggingErrorReporter struct {
	logger core.Logger

	mu     sync.Mutex
	counts map[string]int
}

// NewLoggingErrorReporter logs through logger, or core.FmtLogger when nil.
func NewLoggingErrorReporter(logger core.Logger) *LoggingErrorReporter {
	if logger == nil {
		logger = core.NewFmtLogger(nil)
	}
	return &LoggingErrorReporter{logger: logger, counts: make(map[string]int)}
}

func (r *LoggingErrorReporter) Report(code, detail, node string) {
	r.mu.Lock()
	r.counts[code]++
	r.mu.Unlock()

	logger := r.logger
	if fl, ok := logger.(core.FieldsLogger); ok {
		logger = fl.WithFields(map[string]any{"code": code, "node": node})
	}
	logger.Warn("%s: %s", code, detail)
}

// Count returns how many times code was reported.
func (r *LoggingErrorReporter) Count(code string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[code]
}

// Codes returns the reported codes in sorted order.
func (r *LoggingErrorReporter) Codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.counts))
	for code := range r.counts {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
