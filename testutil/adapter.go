// Package testutil provides adapters and recording doubles for testing charts.
package testutil

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/comalice/chartx"
	"github.com/comalice/chartx/internal/primitives"
	"github.com/comalice/chartx/realtime"
)

// ErrNotStable is returned by WaitForStability when the deadline passes.
var ErrNotStable = goerrors.New("runtime did not settle", goerrors.CategoryConflict).
	WithTextCode("NOT_STABLE")

// RuntimeAdapter drives an executor either directly or through a tick
// scheduler, so the same test body can run against both.
type RuntimeAdapter interface {
	Start(ctx context.Context) error
	Stop() error
	SendEvent(evt chartx.Event) error
	IsInState(id string) bool
	ActiveStates() []string
	WaitForStability(timeout time.Duration) error
}

// EventDrivenAdapter processes every event synchronously.
type EventDrivenAdapter struct {
	ex *chartx.Executor
}

// NewEventDrivenAdapter wraps an idle executor.
func NewEventDrivenAdapter(ex *chartx.Executor) *EventDrivenAdapter {
	return &EventDrivenAdapter{ex: ex}
}

func (a *EventDrivenAdapter) Start(ctx context.Context) error { return a.ex.Start(ctx) }
func (a *EventDrivenAdapter) Stop() error                     { return a.ex.Stop(context.Background()) }
func (a *EventDrivenAdapter) IsInState(id string) bool        { return a.ex.IsActive(id) }
func (a *EventDrivenAdapter) ActiveStates() []string          { return a.ex.Status().Active }

func (a *EventDrivenAdapter) SendEvent(evt chartx.Event) error {
	return a.ex.TriggerEvent(context.Background(), evt)
}

// WaitForStability drains anything delivered by invocations since the last event.
func (a *EventDrivenAdapter) WaitForStability(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if !a.ex.Status().Running {
		return nil
	}
	return a.ex.RunToQuiescence(ctx)
}

// TickBasedAdapter routes events through a realtime.Scheduler.
type TickBasedAdapter struct {
	ex       *chartx.Executor
	sched    *realtime.Scheduler
	tickRate time.Duration
}

const adapterName = "adapter"

// NewTickBasedAdapter wraps an idle executor in a dedicated scheduler.
func NewTickBasedAdapter(ex *chartx.Executor, tickRate time.Duration) *TickBasedAdapter {
	return &TickBasedAdapter{
		ex:       ex,
		sched:    realtime.NewScheduler(realtime.Config{TickRate: tickRate, Logger: chartx.NopLogger{}}),
		tickRate: tickRate,
	}
}

// Scheduler exposes the underlying scheduler.
func (a *TickBasedAdapter) Scheduler() *realtime.Scheduler { return a.sched }

func (a *TickBasedAdapter) Start(ctx context.Context) error {
	if err := a.ex.Start(ctx); err != nil {
		return err
	}
	if err := a.sched.Register(adapterName, a.ex); err != nil {
		return err
	}
	return a.sched.Start(ctx)
}

func (a *TickBasedAdapter) Stop() error {
	a.sched.Stop()
	return a.ex.Stop(context.Background())
}

func (a *TickBasedAdapter) SendEvent(evt chartx.Event) error {
	return a.sched.Send(adapterName, evt)
}

func (a *TickBasedAdapter) IsInState(id string) bool { return a.ex.IsActive(id) }
func (a *TickBasedAdapter) ActiveStates() []string   { return a.ex.Status().Active }

// WaitForStability waits until two full ticks have completed, so every event
// queued before the call has been processed.
func (a *TickBasedAdapter) WaitForStability(timeout time.Duration) error {
	target := a.sched.TickNumber() + 2
	deadline := time.Now().Add(timeout)
	for a.sched.TickNumber() < target {
		if time.Now().After(deadline) {
			return primitives.CloneError(ErrNotStable, fmt.Sprintf("no tick within %v", timeout), nil, nil)
		}
		time.Sleep(a.tickRate / 2)
	}
	return nil
}
