package chartx

import (
	"context"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/comalice/chartx/internal/core"
	"github.com/comalice/chartx/internal/primitives"
)

// ChartInvokeTypes are the invoke types served by ChartInvoker.
var ChartInvokeTypes = []string{primitives.DefaultInvokeType, "http://www.w3.org/TR/scxml/"}

var _ core.Invoker = (*ChartInvoker)(nil)

// ChartInvoker runs a nested chart as an invoked service. The child executor
// shares the parent's invoker registry and logger, receives the invoke params
// as initial data, and reports back through the parent handle. Events from the
// parent are processed synchronously.
type ChartInvoker struct {
	mu        sync.Mutex
	id        string
	parent    core.Parent
	child     *Executor
	ctx       context.Context
	cancelled bool
	opts      []Option
}

// NewChartInvoker creates an invoker; opts are applied to every child executor.
func NewChartInvoker(opts ...Option) *ChartInvoker {
	return &ChartInvoker{opts: opts}
}

func registerChartInvoker(r *InvokerRegistry) {
	for _, typ := range ChartInvokeTypes {
		if _, ok := r.Lookup(typ); !ok {
			r.Register(typ, func() Invoker { return NewChartInvoker() })
		}
	}
}

func (c *ChartInvoker) InvokeID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *ChartInvoker) SetInvokeID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
}

func (c *ChartInvoker) SetParent(p Parent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parent = p
}

// Child returns the running child executor, or nil.
func (c *ChartInvoker) Child() *Executor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.child
}

// Invoke loads the chart at src (a YAML or JSON file) and starts it.
func (c *ChartInvoker) Invoke(ctx context.Context, src string, params map[string]any) error {
	doc, err := LoadFile(src)
	if err != nil {
		return err
	}
	return c.start(ctx, doc, params)
}

// InvokeContent starts an inline chart: a *Document, a DocumentConfig, or a
// YAML/JSON document given as text or as decoded data.
func (c *ChartInvoker) InvokeContent(ctx context.Context, content any, params map[string]any) error {
	doc, err := contentDocument(content)
	if err != nil {
		return err
	}
	return c.start(ctx, doc, params)
}

func contentDocument(content any) (*Document, error) {
	switch v := content.(type) {
	case *Document:
		return v, nil
	case *DocumentConfig:
		return Compile(v)
	case DocumentConfig:
		return Compile(&v)
	case string:
		return Load([]byte(v))
	case []byte:
		return Load(v)
	case map[string]any:
		data, err := yaml.Marshal(v)
		if err != nil {
			return nil, primitives.CloneError(ErrDecode, err.Error(), err, nil)
		}
		return Load(data)
	case nil:
		return nil, primitives.CloneError(ErrDecode, "invoke has no content", nil, nil)
	}
	return nil, primitives.CloneError(ErrDecode, fmt.Sprintf("unsupported invoke content %T", content), nil, nil)
}

// parentMachine is the part of a parent executor a child inherits.
type parentMachine interface {
	Registry() *core.InvokerRegistry
	Logger() core.Logger
}

func (c *ChartInvoker) start(ctx context.Context, doc *Document, params map[string]any) error {
	c.mu.Lock()
	id, parent := c.id, c.parent
	c.mu.Unlock()

	opts := make([]Option, 0, len(c.opts)+4)
	if pm, ok := parent.(parentMachine); ok {
		opts = append(opts, core.WithInvokerRegistry(pm.Registry()), core.WithLogger(pm.Logger()))
	}
	opts = append(opts, c.opts...)
	opts = append(opts, core.WithParent(parent, id), core.WithInitialData(params))

	child, err := NewExecutor(doc, opts...)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.child = child
	c.ctx = context.WithoutCancel(ctx)
	c.mu.Unlock()
	return child.Start(ctx)
}

// Cancel stops the child. Later parent events are dropped.
func (c *ChartInvoker) Cancel(ctx context.Context) error {
	c.mu.Lock()
	c.cancelled = true
	child := c.child
	c.mu.Unlock()
	if child == nil {
		return nil
	}
	return child.Stop(ctx)
}

// ParentEvent runs the child to quiescence on evt.
func (c *ChartInvoker) ParentEvent(evt Event) error {
	c.mu.Lock()
	child, ctx, cancelled := c.child, c.ctx, c.cancelled
	c.mu.Unlock()
	if cancelled || child == nil {
		return nil
	}
	if child.Status().Final {
		return nil
	}
	return child.TriggerEvent(ctx, evt)
}
