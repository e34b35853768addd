package core

import (
	"sync"
	"time"

	"github.com/comalice/chartx/internal/primitives"
)

type delayedSend struct {
	id     string
	target string
	evt    primitives.Event
	state  string
	timer  *time.Timer
}

// delayedSends holds sends waiting for their delay. A fired timer moves its
// send to the due list and wakes the machine; Step routes due sends under the
// step lock. Cancelled and stopped sends are never routed.
type delayedSends struct {
	mu      sync.Mutex
	pending map[string]*delayedSend
	due     []*delayedSend
}

// schedule holds evt for d. A send with the same id replaces the earlier one.
func (q *delayedSends) schedule(d time.Duration, s *delayedSend, wake func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(s.id)
	if q.pending == nil {
		q.pending = make(map[string]*delayedSend)
	}
	q.pending[s.id] = s
	s.timer = time.AfterFunc(d, func() {
		q.mu.Lock()
		if q.pending[s.id] != s {
			q.mu.Unlock()
			return
		}
		delete(q.pending, s.id)
		q.due = append(q.due, s)
		q.mu.Unlock()
		wake()
	})
}

// cancel drops the send with the given id if it has not been routed yet.
func (q *delayedSends) cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(id)
}

func (q *delayedSends) removeLocked(id string) bool {
	if s, ok := q.pending[id]; ok {
		s.timer.Stop()
		delete(q.pending, id)
		return true
	}
	for i, s := range q.due {
		if s.id == id {
			q.due = append(q.due[:i:i], q.due[i+1:]...)
			return true
		}
	}
	return false
}

func (q *delayedSends) takeDue() []*delayedSend {
	q.mu.Lock()
	defer q.mu.Unlock()
	due := q.due
	q.due = nil
	return due
}

func (q *delayedSends) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) + len(q.due)
}

func (q *delayedSends) stopAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, s := range q.pending {
		s.timer.Stop()
	}
	q.pending = nil
	q.due = nil
}
