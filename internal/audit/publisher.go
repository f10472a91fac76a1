package audit

import (
	"context"
	"sync/atomic"
	"time"
)

// Publisher hands events to a background Worker through a bounded queue.
// Emit never blocks the caller; when the queue is full the event is dropped
// and counted.
type Publisher struct {
	queue   chan Event
	dropped atomic.Int64
	closed  atomic.Bool
}

// NewPublisher creates a publisher whose queue holds size events.
func NewPublisher(size int) *Publisher {
	if size <= 0 {
		size = 256
	}
	return &Publisher{queue: make(chan Event, size)}
}

// Emit enqueues an event, stamping it when Timestamp is zero. It reports
// false when the event was dropped.
func (p *Publisher) Emit(_ context.Context, event Event) bool {
	if p.closed.Load() {
		p.dropped.Add(1)
		return false
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case p.queue <- event:
		return true
	default:
		p.dropped.Add(1)
		return false
	}
}

// Dropped returns how many events were discarded.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// Events exposes the receive side of the queue for a Worker.
func (p *Publisher) Events() <-chan Event {
	return p.queue
}

// Close stops accepting events; the Worker drains what is queued.
func (p *Publisher) Close() {
	p.closed.Store(true)
}
