// Package benchmarks holds chart generators shared by the benchmarks.
package benchmarks

import (
	"context"
	"fmt"

	"github.com/comalice/chartx"
)

// GenFlatConfig creates n atomic states cycling on "tick".
func GenFlatConfig(n int) *chartx.DocumentConfig {
	if n < 1 {
		n = 1
	}
	b := chartx.NewDocumentBuilder(fmt.Sprintf("flat_%d", n))
	for i := 0; i < n; i++ {
		b.Atomic(fmt.Sprintf("s%d", i)).On("tick", fmt.Sprintf("s%d", (i+1)%n))
	}
	return b.MustBuild()
}

// GenDeepConfig nests depth compound states and flips between two leaves at
// the bottom, so each transition exits and enters the deepest level only.
func GenDeepConfig(depth int) *chartx.DocumentConfig {
	if depth < 1 {
		depth = 1
	}
	b := chartx.NewDocumentBuilder(fmt.Sprintf("deep_%d", depth))
	for i := 0; i < depth; i++ {
		b.Compound(fmt.Sprintf("c%d", i))
	}
	b.Atomic("leaf1").On("tick", "leaf2").
		Atomic("leaf2").On("tick", "leaf1")
	for i := 0; i < depth; i++ {
		b.Up()
	}
	return b.MustBuild()
}

// GenParallelConfig creates a parallel state with n regions, each flipping
// between two leaves on "tick".
func GenParallelConfig(regions int) *chartx.DocumentConfig {
	if regions < 1 {
		regions = 1
	}
	b := chartx.NewDocumentBuilder(fmt.Sprintf("parallel_%d", regions)).Parallel("p")
	for i := 0; i < regions; i++ {
		a, z := fmt.Sprintf("r%d.a", i), fmt.Sprintf("r%d.b", i)
		b.Compound(fmt.Sprintf("r%d", i)).
			Atomic(a).On("tick", z).
			Atomic(z).On("tick", a).
			Up()
	}
	return b.Up().MustBuild()
}

// GenWideTransitions gives one state n guarded "tick" transitions of which
// only the last is enabled, so selection evaluates every guard.
func GenWideTransitions(n int) *chartx.DocumentConfig {
	if n < 1 {
		n = 1
	}
	b := chartx.NewDocumentBuilder(fmt.Sprintf("wide_%d", n)).
		Data("armed", "false").
		Atomic("main")
	for i := 0; i < n-1; i++ {
		b.On("tick", fmt.Sprintf("target%d", i), chartx.TransitionConfig{Cond: "armed"})
	}
	b.On("tick", "main")
	for i := 0; i < n-1; i++ {
		b.Atomic(fmt.Sprintf("target%d", i)).On("tick", "main")
	}
	return b.MustBuild()
}

// StartedExecutor compiles cfg and starts an executor for it.
func StartedExecutor(cfg *chartx.DocumentConfig, opts ...chartx.Option) (*chartx.Executor, error) {
	doc, err := chartx.Compile(cfg)
	if err != nil {
		return nil, err
	}
	ex, err := chartx.NewExecutor(doc, opts...)
	if err != nil {
		return nil, err
	}
	if err := ex.Start(context.Background()); err != nil {
		return nil, err
	}
	return ex, nil
}
