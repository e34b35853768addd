package extensibility

import (
	"context"
	"fmt"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/comalice/chartx/internal/core"
	"github.com/comalice/chartx/internal/primitives"
)

var (
	_ core.EventSource = (*ChannelEventSource)(nil)
	_ core.EventSource = (*TimerEventSource)(nil)
	_ core.EventSource = (*CronEventSource)(nil)
)

// DefaultSourceBuffer is the channel capacity of timer and cron sources.
const DefaultSourceBuffer = 16

// ChannelEventSource feeds events written to a caller-owned channel.
type ChannelEventSource struct {
	ch chan primitives.Event
}

// NewChannelEventSource wraps ch. Closing ch ends the source.
func NewChannelEventSource(ch chan primitives.Event) *ChannelEventSource {
	return &ChannelEventSource{ch: ch}
}

func (s *ChannelEventSource) Events() <-chan primitives.Event {
	return s.ch
}

// Send writes an event, blocking until there is room or ctx is done.
func (s *ChannelEventSource) Send(ctx context.Context, evt primitives.Event) error {
	select {
	case s.ch <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TimerEventSource emits the same event every interval. Ticks are dropped
// while the buffer is full.
type TimerEventSource struct {
	ch       chan primitives.Event
	name     string
	data     any
	ticker   *time.Ticker
	stop     chan struct{}
	stopOnce sync.Once
}

// NewTimerEventSource starts a source emitting name every d.
func NewTimerEventSource(name string, data any, d time.Duration) *TimerEventSource {
	t := &TimerEventSource{
		ch:     make(chan primitives.Event, DefaultSourceBuffer),
		name:   name,
		data:   data,
		ticker: time.NewTicker(d),
		stop:   make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *TimerEventSource) run() {
	defer close(t.ch)
	for {
		select {
		case <-t.ticker.C:
			select {
			case t.ch <- primitives.NewEvent(t.name, t.data):
			default:
			}
		case <-t.stop:
			t.ticker.Stop()
			return
		}
	}
}

func (t *TimerEventSource) Events() <-chan primitives.Event {
	return t.ch
}

// Stop halts the ticker and closes the event channel. It is safe to call more
// than once.
func (t *TimerEventSource) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// CronOption configures a CronEventSource.
type CronOption func(*cronConfig)

type cronConfig struct {
	location *time.Location
	seconds  bool
	buffer   int
	logger   core.Logger
}

// WithCronLocation evaluates schedules in loc.
func WithCronLocation(loc *time.Location) CronOption {
	return func(c *cronConfig) {
		if loc != nil {
			c.location = loc
		}
	}
}

// WithCronSeconds accepts six-field schedules with a leading seconds field.
func WithCronSeconds() CronOption {
	return func(c *cronConfig) { c.seconds = true }
}

// WithCronBuffer sets the event channel capacity.
func WithCronBuffer(n int) CronOption {
	return func(c *cronConfig) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// WithCronLogger logs dropped events.
func WithCronLogger(logger core.Logger) CronOption {
	return func(c *cronConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// CronEventSource emits events on cron schedules.
//
//	src := NewCronEventSource()
//	src.Schedule("@every 1m", "heartbeat", nil)
//	src.Start()
//	defer src.Stop(ctx)
type CronEventSource struct {
	cron   *rcron.Cron
	ch     chan primitives.Event
	logger core.Logger

	mu      sync.Mutex
	stopped bool
}

// NewCronEventSource creates a stopped cron source.
func NewCronEventSource(opts ...CronOption) *CronEventSource {
	cfg := cronConfig{location: time.Local, buffer: DefaultSourceBuffer, logger: core.NopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cronOpts := []rcron.Option{rcron.WithLocation(cfg.location)}
	if cfg.seconds {
		cronOpts = append(cronOpts, rcron.WithSeconds())
	}
	return &CronEventSource{
		cron:   rcron.New(cronOpts...),
		ch:     make(chan primitives.Event, cfg.buffer),
		logger: cfg.logger,
	}
}

// Schedule registers an event for a cron expression.
func (s *CronEventSource) Schedule(spec, name string, data any) (rcron.EntryID, error) {
	if name == "" {
		return 0, fmt.Errorf("cron event name cannot be empty")
	}
	id, err := s.cron.AddFunc(spec, func() { s.emit(primitives.NewEvent(name, data)) })
	if err != nil {
		return 0, fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	return id, nil
}

// Unschedule removes a scheduled entry.
func (s *CronEventSource) Unschedule(id rcron.EntryID) {
	s.cron.Remove(id)
}

// Start begins running schedules.
func (s *CronEventSource) Start() {
	s.cron.Start()
}

// Stop halts the schedules, waits for running jobs until ctx is done, and
// closes the event channel.
func (s *CronEventSource) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		close(s.ch)
	}
	return nil
}

func (s *CronEventSource) Events() <-chan primitives.Event {
	return s.ch
}

func (s *CronEventSource) emit(evt primitives.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	select {
	case s.ch <- evt:
	default:
		s.logger.Warn("cron event %s dropped: buffer full", evt.Name)
	}
}
