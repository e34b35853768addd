package chartx

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"

	"github.com/comalice/chartx/internal/extensibility"
	"github.com/comalice/chartx/internal/primitives"
)

// Datamodel names registered by default. An empty datamodel selects DefaultDatamodel.
const (
	NullDatamodel    = "null"
	ExprDatamodel    = "expr"
	DefaultDatamodel = ExprDatamodel
)

// ErrUnknownDatamodel is returned when a document names an unregistered datamodel.
var ErrUnknownDatamodel = goerrors.New("unknown datamodel", goerrors.CategoryValidation).
	WithTextCode("UNKNOWN_DATAMODEL")

// EvaluatorFactory creates the evaluator for one executor.
type EvaluatorFactory func() Evaluator

var datamodels = struct {
	mu        sync.RWMutex
	factories map[string]EvaluatorFactory
}{
	factories: map[string]EvaluatorFactory{
		NullDatamodel: func() Evaluator { return extensibility.NullEvaluator{} },
		ExprDatamodel: func() Evaluator { return extensibility.NewExpressionEvaluator() },
	},
}

// RegisterDatamodel binds a datamodel name to an evaluator factory, replacing
// any previous binding.
func RegisterDatamodel(name string, factory EvaluatorFactory) {
	datamodels.mu.Lock()
	defer datamodels.mu.Unlock()
	datamodels.factories[normalizeDatamodel(name)] = factory
}

// Datamodels returns the registered datamodel names, sorted.
func Datamodels() []string {
	datamodels.mu.RLock()
	defer datamodels.mu.RUnlock()
	out := make([]string, 0, len(datamodels.factories))
	for name := range datamodels.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// EvaluatorFor creates the evaluator for a datamodel name.
func EvaluatorFor(name string) (Evaluator, error) {
	key := normalizeDatamodel(name)
	datamodels.mu.RLock()
	factory, ok := datamodels.factories[key]
	datamodels.mu.RUnlock()
	if !ok || factory == nil {
		return nil, primitives.CloneError(ErrUnknownDatamodel, fmt.Sprintf("unknown datamodel %q", name), nil,
			map[string]any{"datamodel": name})
	}
	return factory(), nil
}

func normalizeDatamodel(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultDatamodel
	}
	return name
}
