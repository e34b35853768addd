package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/comalice/chartx"
)

func benchmarkTicks(b *testing.B, cfg *chartx.DocumentConfig) {
	b.Helper()
	ex, err := StartedExecutor(cfg)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	evt := chartx.NewEvent("tick", nil)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := ex.TriggerEvent(ctx, evt); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSimpleTransition(b *testing.B) {
	benchmarkTicks(b, GenFlatConfig(1))
}

func BenchmarkFlatTransition(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("states=%d", n), func(b *testing.B) {
			benchmarkTicks(b, GenFlatConfig(n))
		})
	}
}

func BenchmarkHierarchicalTransition(b *testing.B) {
	for _, depth := range []int{1, 5, 20} {
		b.Run(fmt.Sprintf("depth=%d", depth), func(b *testing.B) {
			benchmarkTicks(b, GenDeepConfig(depth))
		})
	}
}

func BenchmarkParallelTransition(b *testing.B) {
	for _, regions := range []int{2, 8, 32} {
		b.Run(fmt.Sprintf("regions=%d", regions), func(b *testing.B) {
			benchmarkTicks(b, GenParallelConfig(regions))
		})
	}
}

func BenchmarkGuardedSelection(b *testing.B) {
	for _, n := range []int{4, 32, 128} {
		b.Run(fmt.Sprintf("transitions=%d", n), func(b *testing.B) {
			benchmarkTicks(b, GenWideTransitions(n))
		})
	}
}

func BenchmarkCompile(b *testing.B) {
	cfg := GenDeepConfig(10)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := chartx.Compile(cfg); err != nil {
			b.Fatal(err)
		}
	}
}
