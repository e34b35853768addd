package extensibility

import (
	"fmt"
	"regexp"

	"github.com/comalice/chartx/internal/core"
	"github.com/comalice/chartx/internal/primitives"
)

var _ core.Evaluator = NullEvaluator{}

var inPredicate = regexp.MustCompile(`^\s*In\(\s*['"]([^'"]+)['"]\s*\)\s*$`)

// NullEvaluator implements the "null" datamodel. Conditions may only be
// In('stateid'); data values may only be literals. Scripts and assignments
// to anything but a plain name are errors.
type NullEvaluator struct{}

func (NullEvaluator) NewContext(parent *primitives.Context) *primitives.Context {
	if parent == nil {
		return primitives.NewContext()
	}
	return primitives.NewChildContext(parent)
}

func (NullEvaluator) Eval(_ *primitives.Context, expr string) (any, error) {
	if v, ok := ParseLiteral(expr); ok {
		return v, nil
	}
	return nil, unsupported(expr)
}

func (NullEvaluator) EvalCond(ctx *primitives.Context, expr string) (bool, error) {
	m := inPredicate.FindStringSubmatch(expr)
	if m == nil {
		return false, unsupported(expr)
	}
	ok, err := inState(ctx, m[1])
	if err != nil {
		return false, exprError(expr, err)
	}
	return ok, nil
}

func (NullEvaluator) EvalLocation(ctx *primitives.Context, location string) (any, error) {
	v, ok := ctx.Get(location)
	if !ok {
		return nil, exprError(location, fmt.Errorf("%s is not defined", location))
	}
	return v, nil
}

func (NullEvaluator) EvalAssign(ctx *primitives.Context, location string, value any) error {
	if location == "" {
		return unsupported(location)
	}
	ctx.Set(location, value)
	return nil
}

func (NullEvaluator) EvalScript(_ *primitives.Context, script string) error {
	return unsupported(script)
}

func unsupported(expr string) error {
	return exprError(expr, fmt.Errorf("not supported by the null datamodel"))
}
