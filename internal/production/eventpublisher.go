package production

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/comalice/chartx/internal/core"
)

var _ core.Publisher = (*ChannelPublisher)(nil)

// ChannelPublisher forwards step records to a channel. Publish never blocks:
// records are dropped while the channel is full.
type ChannelPublisher struct {
	mu      sync.RWMutex
	ch      chan core.StepRecord
	closed  bool
	dropped atomic.Int64
}

// NewChannelPublisher creates a publisher with a buffer of size n.
func NewChannelPublisher(n int) *ChannelPublisher {
	if n < 0 {
		n = 0
	}
	return &ChannelPublisher{ch: make(chan core.StepRecord, n)}
}

// Records returns the channel consumers read from. It is closed by Close.
func (p *ChannelPublisher) Records() <-chan core.StepRecord {
	return p.ch
}

// Dropped reports how many records were discarded on backpressure.
func (p *ChannelPublisher) Dropped() int64 {
	return p.dropped.Load()
}

func (p *ChannelPublisher) Publish(ctx context.Context, record core.StepRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil
	}
	select {
	case p.ch <- record:
	default:
		p.dropped.Add(1)
	}
	return nil
}

func (p *ChannelPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	return nil
}
