package extensibility

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/comalice/chartx/internal/core"
	"github.com/comalice/chartx/internal/primitives"
)

var _ core.Evaluator = (*ExpressionEvaluator)(nil)

// ExpressionEvaluator implements the "expr" datamodel: a small expression
// language over the Context.
//
// Supported syntax:
//
//	literals      1  2.5  'text'  "text"  true  false  null
//	paths         count  order.items[0]  _event.data.amount
//	operators     || && ! == != < <= > >= + - * / %
//	functions     In('state')  len(x)  string(x)
//
// Scripts are sequences of `location = expr` statements separated by ';' or
// newlines. Parsed expressions are cached.
type ExpressionEvaluator struct {
	cache sync.Map // string -> node
}

// NewExpressionEvaluator creates an ExpressionEvaluator.
func NewExpressionEvaluator() *ExpressionEvaluator {
	return &ExpressionEvaluator{}
}

func (e *ExpressionEvaluator) NewContext(parent *primitives.Context) *primitives.Context {
	if parent == nil {
		return primitives.NewContext()
	}
	return primitives.NewChildContext(parent)
}

func (e *ExpressionEvaluator) Eval(ctx *primitives.Context, expr string) (any, error) {
	n, err := e.parse(expr)
	if err != nil {
		return nil, err
	}
	v, err := n.eval(ctx)
	if err != nil {
		return nil, exprError(expr, err)
	}
	return v, nil
}

func (e *ExpressionEvaluator) EvalCond(ctx *primitives.Context, expr string) (bool, error) {
	v, err := e.Eval(ctx, expr)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

func (e *ExpressionEvaluator) EvalLocation(ctx *primitives.Context, location string) (any, error) {
	n, err := e.parse(location)
	if err != nil {
		return nil, err
	}
	if !isLocation(n) {
		return nil, exprError(location, fmt.Errorf("not a location"))
	}
	v, err := n.eval(ctx)
	if err != nil {
		return nil, exprError(location, err)
	}
	return v, nil
}

// EvalAssign writes value at location. Dotted and indexed paths update the
// map or slice that holds the final segment.
func (e *ExpressionEvaluator) EvalAssign(ctx *primitives.Context, location string, value any) error {
	n, err := e.parse(location)
	if err != nil {
		return err
	}
	if err := assign(ctx, n, value); err != nil {
		return exprError(location, err)
	}
	return nil
}

func (e *ExpressionEvaluator) EvalScript(ctx *primitives.Context, script string) error {
	for _, stmt := range splitStatements(script) {
		loc, expr, ok := splitAssignment(stmt)
		if !ok {
			if _, err := e.Eval(ctx, stmt); err != nil {
				return err
			}
			continue
		}
		v, err := e.Eval(ctx, expr)
		if err != nil {
			return err
		}
		if err := e.EvalAssign(ctx, loc, v); err != nil {
			return err
		}
	}
	return nil
}

func (e *ExpressionEvaluator) parse(expr string) (node, error) {
	if cached, ok := e.cache.Load(expr); ok {
		return cached.(node), nil
	}
	n, err := parseExpression(expr)
	if err != nil {
		return nil, exprError(expr, err)
	}
	e.cache.Store(expr, n)
	return n, nil
}

func exprError(expr string, err error) error {
	return primitives.CloneError(core.ErrExpression, fmt.Sprintf("%s: %s", expr, err), err,
		map[string]any{"expr": expr})
}

func isLocation(n node) bool {
	switch t := n.(type) {
	case *ident:
		return true
	case *member:
		return isLocation(t.target)
	case *index:
		return isLocation(t.target)
	}
	return false
}

func assign(ctx *primitives.Context, n node, value any) error {
	switch t := n.(type) {
	case *ident:
		ctx.Set(t.name, value)
		return nil
	case *member:
		holder, err := t.target.eval(ctx)
		if err != nil {
			return err
		}
		return setField(holder, t.name, value)
	case *index:
		holder, err := t.target.eval(ctx)
		if err != nil {
			return err
		}
		key, err := t.key.eval(ctx)
		if err != nil {
			return err
		}
		if s, ok := key.(string); ok {
			return setField(holder, s, value)
		}
		f, isInt, ok := toNumber(key)
		if !ok || !isInt {
			return fmt.Errorf("invalid index %v", key)
		}
		rv := reflect.ValueOf(holder)
		if rv.Kind() != reflect.Slice {
			return fmt.Errorf("cannot index %T", holder)
		}
		i := int(f)
		if i < 0 || i >= rv.Len() {
			return fmt.Errorf("index %d out of range", i)
		}
		rv.Index(i).Set(reflect.ValueOf(value))
		return nil
	}
	return fmt.Errorf("not a location")
}

func setField(holder any, name string, value any) error {
	switch h := holder.(type) {
	case map[string]any:
		h[name] = value
		return nil
	case nil:
		return fmt.Errorf("cannot set %s of null", name)
	}
	rv := reflect.ValueOf(holder)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		rv.SetMapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()), reflect.ValueOf(value))
		return nil
	}
	return fmt.Errorf("cannot set %s of %T", name, holder)
}

// splitStatements splits a script on ';' and newlines outside string literals.
func splitStatements(script string) []string {
	var out []string
	var b strings.Builder
	var quote rune
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	for _, r := range script {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ';' || r == '\n':
			flush()
			continue
		}
		b.WriteRune(r)
	}
	flush()
	return out
}

// splitAssignment finds a single '=' that is not part of a comparison operator.
func splitAssignment(stmt string) (string, string, bool) {
	var quote rune
	for i, r := range stmt {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '=':
			prev := byte(0)
			if i > 0 {
				prev = stmt[i-1]
			}
			next := byte(0)
			if i+1 < len(stmt) {
				next = stmt[i+1]
			}
			if next == '=' || prev == '=' || prev == '!' || prev == '<' || prev == '>' {
				continue
			}
			return strings.TrimSpace(stmt[:i]), strings.TrimSpace(stmt[i+1:]), true
		}
	}
	return "", "", false
}

// ParseLiteral converts literal text into a value: numbers, booleans, null
// and quoted strings. It reports false for anything else.
func ParseLiteral(text string) (any, bool) {
	s := strings.TrimSpace(text)
	switch s {
	case "true":
		return true, true
	case "false":
		return false, true
	case "null":
		return nil, true
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}
	return nil, false
}
