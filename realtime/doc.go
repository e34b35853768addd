// Package realtime multiplexes many executors on one cooperative tick loop.
//
// A Scheduler owns a fixed tick rate. Events sent between ticks are batched;
// on every tick the batch is ordered by priority and then by submission
// sequence, enqueued on the addressed executors, and every registered
// executor is run to quiescence in registration order. Processing is
// therefore deterministic for a given sequence of sends, which makes the
// scheduler suitable for simulations and game loops where many small charts
// advance in lock step.
//
// Example:
//
//	s := realtime.NewScheduler(realtime.Config{TickRate: 16667 * time.Microsecond})
//	_ = s.Register("door", door)
//	_ = s.Start(ctx)
//	defer s.Stop()
//	_ = s.Send("door", chartx.NewEvent("open", nil))
//
// Tick can be called directly instead of Start for stepped execution in tests.
package realtime
