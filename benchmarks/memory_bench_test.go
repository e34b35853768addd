package benchmarks

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/comalice/chartx"
)

// measureExecutors reports the bytes allocated per started executor.
func measureExecutors(b *testing.B, cfg *chartx.DocumentConfig, states int) {
	b.Helper()
	doc, err := chartx.Compile(cfg)
	if err != nil {
		b.Fatal(err)
	}
	const count = 100
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	executors := make([]*chartx.Executor, count)
	for i := range executors {
		ex, err := chartx.NewExecutor(doc)
		if err != nil {
			b.Fatal(err)
		}
		executors[i] = ex
	}
	runtime.GC()
	runtime.ReadMemStats(&after)
	runtime.KeepAlive(executors)
	perExecutor := (after.TotalAlloc - before.TotalAlloc) / count
	b.ReportMetric(float64(perExecutor)/1024, "KB/executor")
	if states > 0 {
		b.ReportMetric(float64(perExecutor)/float64(states), "B/state")
	}
}

func BenchmarkMemoryFootprint(b *testing.B) {
	measureExecutors(b, GenFlatConfig(1), 1)
}

func BenchmarkMemoryFlat(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("states=%d", n), func(b *testing.B) {
			measureExecutors(b, GenFlatConfig(n), n)
		})
	}
}

func BenchmarkMemoryDeep(b *testing.B) {
	for _, depth := range []int{1, 3, 5} {
		b.Run(fmt.Sprintf("depth=%d", depth), func(b *testing.B) {
			measureExecutors(b, GenDeepConfig(depth), depth+2)
		})
	}
}

func BenchmarkCheckpoint(b *testing.B) {
	ex, err := StartedExecutor(GenParallelConfig(8))
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = ex.Checkpoint()
	}
}
