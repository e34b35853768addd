package extensibility

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/comalice/chartx/internal/primitives"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokOp
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// operators ordered longest first so the lexer matches greedily
var operators = []string{"&&", "||", "==", "!=", "<=", ">=", "<", ">", "+", "-", "*", "/", "%", "!", "(", ")", "[", "]", ".", ",", "=", ";"}

func tokenize(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := rune(src[i])
		switch {
		case c == '\n':
			toks = append(toks, token{kind: tokOp, text: ";", pos: i})
			i++
		case unicode.IsSpace(c):
			i++
		case unicode.IsDigit(c):
			start := i
			for i < len(src) && (unicode.IsDigit(rune(src[i])) || src[i] == '.' || src[i] == 'e' || src[i] == 'E') {
				i++
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], pos: start})
		case c == '\'' || c == '"':
			start := i
			i++
			var b strings.Builder
			for i < len(src) && rune(src[i]) != c {
				if src[i] == '\\' && i+1 < len(src) {
					i++
				}
				b.WriteByte(src[i])
				i++
			}
			if i >= len(src) {
				return nil, fmt.Errorf("unterminated string at %d", start)
			}
			i++
			toks = append(toks, token{kind: tokString, text: b.String(), pos: start})
		case c == '_' || c == '$' || unicode.IsLetter(c):
			start := i
			for i < len(src) && (src[i] == '_' || src[i] == '$' || unicode.IsLetter(rune(src[i])) || unicode.IsDigit(rune(src[i]))) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		default:
			matched := false
			for _, op := range operators {
				if strings.HasPrefix(src[i:], op) {
					toks = append(toks, token{kind: tokOp, text: op, pos: i})
					i += len(op)
					matched = true
					break
				}
			}
			if !matched {
				return nil, fmt.Errorf("unexpected character %q at %d", c, i)
			}
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

// node is a parsed expression.
type node interface {
	eval(ctx *primitives.Context) (any, error)
}

type literal struct{ value any }

type ident struct{ name string }

type member struct {
	target node
	name   string
}

type index struct {
	target node
	key    node
}

type call struct {
	name string
	args []node
}

type unary struct {
	op string
	x  node
}

type binary struct {
	op   string
	l, r node
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) accept(ops ...string) (string, bool) {
	t := p.peek()
	if t.kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			p.pos++
			return op, true
		}
	}
	return "", false
}

func (p *parser) expect(op string) error {
	if _, ok := p.accept(op); !ok {
		return fmt.Errorf("expected %q at %d", op, p.peek().pos)
	}
	return nil
}

func parseExpression(src string) (node, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at %d", t.text, t.pos)
	}
	return n, nil
}

func (p *parser) parseBinary(next func() (node, error), ops ...string) (node, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.accept(ops...)
		if !ok {
			return left, nil
		}
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &binary{op: op, l: left, r: right}
	}
}

func (p *parser) parseOr() (node, error)  { return p.parseBinary(p.parseAnd, "||") }
func (p *parser) parseAnd() (node, error) { return p.parseBinary(p.parseEq, "&&") }
func (p *parser) parseEq() (node, error)  { return p.parseBinary(p.parseCmp, "==", "!=") }
func (p *parser) parseCmp() (node, error) { return p.parseBinary(p.parseAdd, "<=", ">=", "<", ">") }
func (p *parser) parseAdd() (node, error) { return p.parseBinary(p.parseMul, "+", "-") }
func (p *parser) parseMul() (node, error) { return p.parseBinary(p.parseUnary, "*", "/", "%") }

func (p *parser) parseUnary() (node, error) {
	if op, ok := p.accept("!", "-"); ok {
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unary{op: op, x: x}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.peek().kind == tokOp && p.peek().text == ".":
			p.next()
			t := p.next()
			if t.kind != tokIdent {
				return nil, fmt.Errorf("expected field name at %d", t.pos)
			}
			n = &member{target: n, name: t.text}
		case p.peek().kind == tokOp && p.peek().text == "[":
			p.next()
			key, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			n = &index{target: n, key: key}
		default:
			return n, nil
		}
	}
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		if i, err := strconv.Atoi(t.text); err == nil {
			return &literal{value: i}, nil
		}
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t.text)
		}
		return &literal{value: f}, nil
	case tokString:
		return &literal{value: t.text}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return &literal{value: true}, nil
		case "false":
			return &literal{value: false}, nil
		case "null", "nil":
			return &literal{value: nil}, nil
		}
		if _, ok := p.accept("("); ok {
			var args []node
			if _, ok := p.accept(")"); !ok {
				for {
					arg, err := p.parseOr()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if _, ok := p.accept(","); ok {
						continue
					}
					if err := p.expect(")"); err != nil {
						return nil, err
					}
					break
				}
			}
			return &call{name: t.text, args: args}, nil
		}
		return &ident{name: t.text}, nil
	case tokOp:
		if t.text == "(" {
			n, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return n, nil
		}
	}
	if t.kind == tokEOF {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	return nil, fmt.Errorf("unexpected %q at %d", t.text, t.pos)
}

func (n *literal) eval(*primitives.Context) (any, error) { return n.value, nil }

func (n *ident) eval(ctx *primitives.Context) (any, error) {
	v, ok := ctx.Get(n.name)
	if !ok {
		return nil, fmt.Errorf("%s is not defined", n.name)
	}
	return v, nil
}

func (n *member) eval(ctx *primitives.Context) (any, error) {
	target, err := n.target.eval(ctx)
	if err != nil {
		return nil, err
	}
	return field(target, n.name)
}

func (n *index) eval(ctx *primitives.Context) (any, error) {
	target, err := n.target.eval(ctx)
	if err != nil {
		return nil, err
	}
	key, err := n.key.eval(ctx)
	if err != nil {
		return nil, err
	}
	if s, ok := key.(string); ok {
		return field(target, s)
	}
	i, isInt, ok := toNumber(key)
	if !ok || !isInt {
		return nil, fmt.Errorf("invalid index %v", key)
	}
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("cannot index %T", target)
	}
	if int(i) < 0 || int(i) >= rv.Len() {
		return nil, fmt.Errorf("index %d out of range", int(i))
	}
	return rv.Index(int(i)).Interface(), nil
}

func (n *call) eval(ctx *primitives.Context) (any, error) {
	args := make([]any, 0, len(n.args))
	for _, a := range n.args {
		v, err := a.eval(ctx)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	switch n.name {
	case "In":
		if len(args) != 1 {
			return nil, fmt.Errorf("In takes one state id")
		}
		return inState(ctx, fmt.Sprint(args[0]))
	case "len":
		if len(args) != 1 {
			return nil, fmt.Errorf("len takes one argument")
		}
		rv := reflect.ValueOf(args[0])
		switch rv.Kind() {
		case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
			return rv.Len(), nil
		}
		return nil, fmt.Errorf("len of %T", args[0])
	case "string":
		if len(args) != 1 {
			return nil, fmt.Errorf("string takes one argument")
		}
		return fmt.Sprint(args[0]), nil
	}
	return nil, fmt.Errorf("unknown function %s", n.name)
}

func inState(ctx *primitives.Context, id string) (bool, error) {
	v, ok := ctx.Get(primitives.VarIn)
	if !ok {
		return false, fmt.Errorf("In is not available")
	}
	in, ok := v.(func(string) bool)
	if !ok {
		return false, fmt.Errorf("In is not available")
	}
	return in(id), nil
}

func (n *unary) eval(ctx *primitives.Context) (any, error) {
	v, err := n.x.eval(ctx)
	if err != nil {
		return nil, err
	}
	if n.op == "!" {
		return !truthy(v), nil
	}
	f, isInt, ok := toNumber(v)
	if !ok {
		return nil, fmt.Errorf("cannot negate %T", v)
	}
	if isInt {
		return -int(f), nil
	}
	return -f, nil
}

func (n *binary) eval(ctx *primitives.Context) (any, error) {
	l, err := n.l.eval(ctx)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "&&":
		if !truthy(l) {
			return false, nil
		}
		r, err := n.r.eval(ctx)
		if err != nil {
			return nil, err
		}
		return truthy(r), nil
	case "||":
		if truthy(l) {
			return true, nil
		}
		r, err := n.r.eval(ctx)
		if err != nil {
			return nil, err
		}
		return truthy(r), nil
	}

	r, err := n.r.eval(ctx)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "==":
		return equal(l, r), nil
	case "!=":
		return !equal(l, r), nil
	case "<", "<=", ">", ">=":
		return compare(n.op, l, r)
	case "+":
		if ls, ok := l.(string); ok {
			return ls + fmt.Sprint(r), nil
		}
		if rs, ok := r.(string); ok {
			return fmt.Sprint(l) + rs, nil
		}
	}
	return arith(n.op, l, r)
}

func field(target any, name string) (any, error) {
	switch t := target.(type) {
	case primitives.Event:
		return eventField(t, name)
	case *primitives.Event:
		return eventField(*t, name)
	case map[string]any:
		v, ok := t[name]
		if !ok {
			return nil, nil
		}
		return v, nil
	case nil:
		return nil, fmt.Errorf("cannot read %s of null", name)
	}
	rv := reflect.ValueOf(target)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		v := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, nil
		}
		return v.Interface(), nil
	}
	return nil, fmt.Errorf("cannot read %s of %T", name, target)
}

func eventField(evt primitives.Event, name string) (any, error) {
	switch name {
	case "name":
		return evt.Name, nil
	case "type":
		return evt.Type.String(), nil
	case "origin":
		return evt.Origin, nil
	case "origintype":
		return evt.OriginType, nil
	case "sendid":
		return evt.SendID, nil
	case "invokeid":
		return evt.InvokeID, nil
	case "data":
		return evt.Data, nil
	}
	return nil, fmt.Errorf("event has no field %s", name)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	if f, _, ok := toNumber(v); ok {
		return f != 0
	}
	return true
}

// toNumber converts numeric values to float64 and reports whether the value
// was an integer type.
func toNumber(v any) (float64, bool, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true, true
	case int8:
		return float64(n), true, true
	case int16:
		return float64(n), true, true
	case int32:
		return float64(n), true, true
	case int64:
		return float64(n), true, true
	case uint:
		return float64(n), true, true
	case uint8:
		return float64(n), true, true
	case uint16:
		return float64(n), true, true
	case uint32:
		return float64(n), true, true
	case uint64:
		return float64(n), true, true
	case float32:
		return float64(n), false, true
	case float64:
		return n, false, true
	}
	return 0, false, false
}

func equal(l, r any) bool {
	lf, _, lok := toNumber(l)
	rf, _, rok := toNumber(r)
	if lok && rok {
		return lf == rf
	}
	return reflect.DeepEqual(l, r)
}

func compare(op string, l, r any) (bool, error) {
	if ls, ok := l.(string); ok {
		rs, ok := r.(string)
		if !ok {
			return false, fmt.Errorf("cannot compare string with %T", r)
		}
		c := strings.Compare(ls, rs)
		return cmpResult(op, float64(c), 0), nil
	}
	lf, _, lok := toNumber(l)
	rf, _, rok := toNumber(r)
	if !lok || !rok {
		return false, fmt.Errorf("cannot compare %T with %T", l, r)
	}
	return cmpResult(op, lf, rf), nil
}

func cmpResult(op string, l, r float64) bool {
	switch op {
	case "<":
		return l < r
	case "<=":
		return l <= r
	case ">":
		return l > r
	default:
		return l >= r
	}
}

func arith(op string, l, r any) (any, error) {
	lf, lint, lok := toNumber(l)
	rf, rint, rok := toNumber(r)
	if !lok || !rok {
		return nil, fmt.Errorf("cannot apply %s to %T and %T", op, l, r)
	}
	ints := lint && rint
	var out float64
	switch op {
	case "+":
		out = lf + rf
	case "-":
		out = lf - rf
	case "*":
		out = lf * rf
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		out = lf / rf
		ints = ints && math.Mod(lf, rf) == 0
	case "%":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		out = math.Mod(lf, rf)
	default:
		return nil, fmt.Errorf("unknown operator %s", op)
	}
	if ints {
		return int(out), nil
	}
	return out, nil
}
