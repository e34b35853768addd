package core

import (
	"fmt"
	"strings"

	"github.com/comalice/chartx/internal/primitives"
)

// contextEvaluator is the evaluator used when none is configured. It reads and
// writes plain locations and rejects every other expression.
type contextEvaluator struct{}

func (contextEvaluator) NewContext(parent *primitives.Context) *primitives.Context {
	if parent == nil {
		return primitives.NewContext()
	}
	return primitives.NewChildContext(parent)
}

func (contextEvaluator) Eval(_ *primitives.Context, expr string) (any, error) {
	return nil, noDatamodel(expr)
}

func (contextEvaluator) EvalCond(_ *primitives.Context, expr string) (bool, error) {
	return false, noDatamodel(expr)
}

func (contextEvaluator) EvalLocation(ctx *primitives.Context, location string) (any, error) {
	name := strings.TrimSpace(location)
	v, ok := ctx.Get(name)
	if !ok {
		return nil, cloneError(ErrExpression, fmt.Sprintf("location %q is not defined", name), nil,
			map[string]any{"location": name})
	}
	return v, nil
}

func (contextEvaluator) EvalAssign(ctx *primitives.Context, location string, value any) error {
	name := strings.TrimSpace(location)
	if name == "" {
		return cloneError(ErrExpression, "empty assignment location", nil, nil)
	}
	ctx.Set(name, value)
	return nil
}

func (contextEvaluator) EvalScript(_ *primitives.Context, script string) error {
	return noDatamodel(script)
}

func noDatamodel(expr string) error {
	return cloneError(ErrExpression, fmt.Sprintf("no datamodel to evaluate %q", expr), nil,
		map[string]any{"expr": expr})
}
