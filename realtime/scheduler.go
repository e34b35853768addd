package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/comalice/chartx"
	"github.com/comalice/chartx/internal/primitives"
)

// Defaults applied by NewScheduler.
const (
	DefaultTickRate         = 16667 * time.Microsecond // 60 ticks per second
	DefaultMaxEventsPerTick = 1000
)

var (
	// ErrQueueFull is returned by Send when the tick batch is at capacity.
	ErrQueueFull = goerrors.New("event queue full", goerrors.CategoryConflict).
			WithTextCode("QUEUE_FULL")
	// ErrUnknownExecutor is returned for a name that is not registered.
	ErrUnknownExecutor = goerrors.New("unknown executor", goerrors.CategoryBadInput).
				WithTextCode("UNKNOWN_EXECUTOR")
	// ErrDuplicateExecutor is returned when a name is registered twice.
	ErrDuplicateExecutor = goerrors.New("executor already registered", goerrors.CategoryConflict).
				WithTextCode("DUPLICATE_EXECUTOR")
	// ErrSchedulerRunning is returned by Start on a running scheduler.
	ErrSchedulerRunning = goerrors.New("scheduler already running", goerrors.CategoryConflict).
				WithTextCode("SCHEDULER_RUNNING")
)

// Config configures a Scheduler.
type Config struct {
	TickRate         time.Duration // fixed tick period
	MaxEventsPerTick int           // batch capacity between two ticks
	Logger           chartx.Logger // defaults to a stderr FmtLogger
}

type entry struct {
	name string
	ex   *chartx.Executor
}

// Scheduler advances many executors on a single tick loop. Registration
// order is processing order.
type Scheduler struct {
	tickRate  time.Duration
	maxEvents int
	logger    chartx.Logger

	mu      sync.Mutex
	entries []*entry
	index   map[string]*entry
	batch   []EventWithMeta
	seq     uint64
	tickNum uint64

	tickMu sync.Mutex

	runMu   sync.Mutex
	ticker  *time.Ticker
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewScheduler creates an idle scheduler.
func NewScheduler(cfg Config) *Scheduler {
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	if cfg.MaxEventsPerTick <= 0 {
		cfg.MaxEventsPerTick = DefaultMaxEventsPerTick
	}
	if cfg.Logger == nil {
		cfg.Logger = chartx.NewFmtLogger(nil)
	}
	return &Scheduler{
		tickRate:  cfg.TickRate,
		maxEvents: cfg.MaxEventsPerTick,
		logger:    cfg.Logger,
		index:     make(map[string]*entry),
		batch:     make([]EventWithMeta, 0, cfg.MaxEventsPerTick),
	}
}

// Register adds a started executor under name.
func (s *Scheduler) Register(name string, ex *chartx.Executor) error {
	if ex == nil {
		return primitives.CloneError(ErrUnknownExecutor, fmt.Sprintf("executor %q is nil", name), nil, nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[name]; ok {
		return primitives.CloneError(ErrDuplicateExecutor, "", nil, map[string]any{"name": name})
	}
	e := &entry{name: name, ex: ex}
	s.entries = append(s.entries, e)
	s.index[name] = e
	return nil
}

// Unregister removes an executor. Its queued batch events are dropped on the
// next tick.
func (s *Scheduler) Unregister(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[name]; !ok {
		return false
	}
	delete(s.index, name)
	for i, e := range s.entries {
		if e.name == name {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}
	return true
}

// Names returns the registered names in processing order.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.name
	}
	return out
}

// Send queues an event for the named executor on the next tick.
func (s *Scheduler) Send(name string, evt chartx.Event) error {
	return s.SendWithPriority(name, evt, 0)
}

// SendWithPriority queues an event; higher priorities are delivered first
// within a tick.
func (s *Scheduler) SendWithPriority(name string, evt chartx.Event, priority int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[name]; !ok {
		return primitives.CloneError(ErrUnknownExecutor, fmt.Sprintf("unknown executor %q", name), nil, nil)
	}
	return s.queueLocked(name, evt, priority)
}

// Broadcast queues an event for every registered executor.
func (s *Scheduler) Broadcast(evt chartx.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if err := s.queueLocked(e.name, evt, 0); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) queueLocked(name string, evt chartx.Event, priority int) error {
	if len(s.batch) >= s.maxEvents {
		return primitives.CloneError(ErrQueueFull, "", nil, map[string]any{"capacity": s.maxEvents})
	}
	s.batch = append(s.batch, EventWithMeta{
		Target:      name,
		Event:       evt,
		SequenceNum: s.seq,
		Priority:    priority,
	})
	s.seq++
	return nil
}

// TickNumber returns the number of completed ticks.
func (s *Scheduler) TickNumber() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickNum
}

// Start runs the tick loop until Stop or ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel != nil {
		return primitives.CloneError(ErrSchedulerRunning, "", nil, nil)
	}
	tickCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.ticker = time.NewTicker(s.tickRate)
	s.stopped = make(chan struct{})
	go s.tickLoop(tickCtx, s.ticker, s.stopped)
	return nil
}

// Stop ends the tick loop and waits for the current tick to finish. The
// executors are left running.
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	cancel, ticker, stopped := s.cancel, s.ticker, s.stopped
	s.cancel, s.ticker, s.stopped = nil, nil, nil
	s.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	ticker.Stop()
	<-stopped
}

func (s *Scheduler) tickLoop(ctx context.Context, ticker *time.Ticker, stopped chan struct{}) {
	defer close(stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("tick: %v", err)
			}
		}
	}
}
