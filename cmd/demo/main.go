// Command demo runs a traffic light driven by a timer event source. Every
// macrostep is printed from the publisher and snapshots go to a temp dir.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/comalice/chartx"
	"github.com/comalice/chartx/internal/extensibility"
	"github.com/comalice/chartx/internal/production"
)

const cycles = 12

func trafficLight() *chartx.Document {
	cfg := chartx.NewDocumentBuilder("traffic-light").
		Data("cycles", "0").
		Compound("traffic").Initial("red").
		Atomic("red").
		OnEntry(chartx.Assign("cycles", "cycles + 1"), chartx.Log("cycle", "cycles")).
		On("TIMER", "green").
		Atomic("green").On("TIMER", "yellow").
		Atomic("yellow").
		On("TIMER", "done", chartx.TransitionConfig{Cond: fmt.Sprintf("cycles >= %d", cycles)}).
		On("TIMER", "red").
		Up().
		Final("done").
		MustBuild()
	return chartx.MustCompile(cfg)
}

func main() {
	doc := trafficLight()

	dir, err := os.MkdirTemp("", "chartx-demo")
	if err != nil {
		panic(err)
	}
	persister, err := production.NewJSONPersister(dir)
	if err != nil {
		panic(err)
	}
	publisher := production.NewChannelPublisher(32)
	logger := production.NewLogger(os.Stderr, "info", false)

	timer := extensibility.NewTimerEventSource("TIMER", nil, 500*time.Millisecond)
	defer timer.Stop()

	ex, err := chartx.NewExecutor(doc,
		chartx.WithLogger(logger),
		chartx.WithErrorReporter(production.NewLoggingErrorReporter(logger)),
		chartx.WithPersister(persister),
		chartx.WithPublisher(publisher),
		chartx.WithEventSource(timer),
	)
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for record := range publisher.Records() {
			fmt.Printf("%-6s -> %s\n", record.Event, strings.Join(record.Active, " "))
		}
	}()

	if err := ex.Start(ctx); err != nil {
		panic(err)
	}
	if err := ex.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, "run:", err)
	}
	_ = ex.Stop(context.Background())
	_ = publisher.Close()
	<-printed

	viz := &production.Visualizer{}
	fmt.Println(viz.ExportDOT(doc, ex.Status().Active))
	fmt.Printf("snapshots in %s\n", dir)
}
