package realtime

import (
	"context"
	"runtime/debug"
)

// Tick processes one tick: the batch collected since the previous tick is
// ordered and enqueued, then every executor runs to quiescence in
// registration order. A panicking executor is logged and skipped.
func (s *Scheduler) Tick(ctx context.Context) error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	events, entries := s.collect()
	sortEvents(events)
	s.dispatch(events)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.runEntry(ctx, e)
	}

	s.mu.Lock()
	s.tickNum++
	s.mu.Unlock()
	return nil
}

// collect swaps out the batch and snapshots the registration list.
func (s *Scheduler) collect() ([]EventWithMeta, []*entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.batch
	s.batch = make([]EventWithMeta, 0, s.maxEvents)
	entries := append([]*entry(nil), s.entries...)
	return events, entries
}

func (s *Scheduler) dispatch(events []EventWithMeta) {
	for _, em := range events {
		s.mu.Lock()
		e, ok := s.index[em.Target]
		s.mu.Unlock()
		if !ok {
			s.logger.Debug("dropping %q for unregistered executor %q", em.Event.Name, em.Target)
			continue
		}
		if err := e.ex.Enqueue(em.Event); err != nil {
			s.logger.Warn("executor %s: enqueue %q: %v", e.name, em.Event.Name, err)
		}
	}
}

func (s *Scheduler) runEntry(ctx context.Context, e *entry) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("executor %s panicked: %v\n%s", e.name, r, debug.Stack())
		}
	}()
	if !e.ex.Status().Running {
		return
	}
	if err := e.ex.RunToQuiescence(ctx); err != nil {
		s.logger.Warn("executor %s: %v", e.name, err)
	}
}
