package extensibility

import (
	stderrors "errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/chartx/internal/core"
	"github.com/comalice/chartx/internal/primitives"
)

func exprContext() *primitives.Context {
	ctx := primitives.NewContext()
	ctx.Set("count", 3)
	ctx.Set("name", "x")
	ctx.Set("items", []any{10, 20, 30})
	ctx.Set("order", map[string]any{"total": 12.5, "lines": map[string]any{"a": 1}})
	ctx.Set(primitives.VarEvent, primitives.NewEvent("order.paid", map[string]any{"amount": 42}))
	ctx.Set(primitives.VarIn, func(id string) bool { return id == "active" })
	return ctx
}

func messageOf(err error) string {
	var ge *goerrors.Error
	if stderrors.As(err, &ge) {
		return ge.Message
	}
	return err.Error()
}

func TestExpressionEvaluatorEval(t *testing.T) {
	t.Parallel()
	e := NewExpressionEvaluator()

	tests := []struct {
		expr string
		want any
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"7 / 2", 3.5},
		{"6 / 2", 3},
		{"10 % 3", 1},
		{"-count", -3},
		{"1.5 + 1", 2.5},
		{"'a' + 1", "a1"},
		{"name + \"y\"", "xy"},
		{"count > 2 && name == 'x'", true},
		{"count < 2 || !true", false},
		{"count >= 3", true},
		{"count != 3", false},
		{"3 == 3.0", true},
		{"'abc' < 'abd'", true},
		{"items[1]", 20},
		{"len(items)", 3},
		{"order.total", 12.5},
		{"order['lines'].a", 1},
		{"order.missing", nil},
		{"_event.name", "order.paid"},
		{"_event.type", "external"},
		{"_event.data.amount", 42},
		{"In('active')", true},
		{"In(\"idle\")", false},
		{"string(count)", "3"},
		{"null", nil},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := e.Eval(exprContext(), tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpressionEvaluatorErrors(t *testing.T) {
	t.Parallel()
	e := NewExpressionEvaluator()

	tests := []struct {
		expr        string
		errContains string
	}{
		{"1 +", "unexpected end"},
		{"missing", "missing is not defined"},
		{"1 / 0", "division by zero"},
		{"items[9]", "out of range"},
		{"name - 1", "cannot apply"},
		{"'open", "unterminated string"},
		{"nope(1)", "unknown function"},
		{"count 1", "unexpected"},
		{"_event.nope", "event has no field"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := e.Eval(exprContext(), tt.expr)
			require.Error(t, err)
			assert.Contains(t, messageOf(err), tt.errContains)
			assert.Equal(t, core.CodeExpressionError, primitives.ErrorCode(err))
		})
	}
}

func TestExpressionEvaluatorCond(t *testing.T) {
	t.Parallel()
	e := NewExpressionEvaluator()
	ctx := exprContext()

	ok, err := e.EvalCond(ctx, "count")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.EvalCond(ctx, "''")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.EvalCond(ctx, "undefinedVar > 1")
	assert.Error(t, err)
}

func TestExpressionEvaluatorLocationAndAssign(t *testing.T) {
	t.Parallel()
	e := NewExpressionEvaluator()
	ctx := exprContext()

	v, err := e.EvalLocation(ctx, "order.total")
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)

	_, err = e.EvalLocation(ctx, "count + 1")
	assert.Error(t, err)

	require.NoError(t, e.EvalAssign(ctx, "count", 4))
	require.NoError(t, e.EvalAssign(ctx, "order.total", 20))
	require.NoError(t, e.EvalAssign(ctx, "items[0]", "first"))
	require.NoError(t, e.EvalAssign(ctx, "order['note']", "rush"))

	got, _ := ctx.Get("count")
	assert.Equal(t, 4, got)
	order, _ := ctx.Get("order")
	assert.Equal(t, 20, order.(map[string]any)["total"])
	assert.Equal(t, "rush", order.(map[string]any)["note"])
	items, _ := ctx.Get("items")
	assert.Equal(t, "first", items.([]any)[0])

	assert.Error(t, e.EvalAssign(ctx, "name.inner", 1))
	assert.Error(t, e.EvalAssign(ctx, "1 + 1", 1))
}

func TestExpressionEvaluatorAssignUsesDefiningScope(t *testing.T) {
	t.Parallel()
	e := NewExpressionEvaluator()
	root := e.NewContext(nil)
	root.Set("count", 1)
	child := e.NewContext(root)

	require.NoError(t, e.EvalAssign(child, "count", 2))
	got, _ := root.Get("count")
	assert.Equal(t, 2, got)
}

func TestExpressionEvaluatorScript(t *testing.T) {
	t.Parallel()
	e := NewExpressionEvaluator()
	ctx := primitives.NewContext()

	require.NoError(t, e.EvalScript(ctx, "a = 1; b = a + 1\nc = b * 2\nlabel = 'x;y'\nflag = c >= 4"))
	for name, want := range map[string]any{"a": 1, "b": 2, "c": 4, "label": "x;y", "flag": true} {
		got, ok := ctx.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	err := e.EvalScript(ctx, "a = 1; b = missing")
	require.Error(t, err)
	got, _ := ctx.Get("a")
	assert.Equal(t, 1, got)
}

func TestParseLiteral(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want any
		ok   bool
	}{
		{"42", 42, true},
		{" 2.5 ", 2.5, true},
		{"true", true, true},
		{"null", nil, true},
		{"'text'", "text", true},
		{"count", nil, false},
	}
	for _, tt := range tests {
		got, ok := ParseLiteral(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
