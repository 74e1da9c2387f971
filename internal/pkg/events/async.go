package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultAsyncBuffer  = 256
	DefaultAsyncTimeout = 5 * time.Second
)

// ErrPublishBacklogFull is returned when the async buffer has no free slot
var ErrPublishBacklogFull = errors.New("event publish backlog full")

type pendingEvent struct {
	ctx   context.Context
	event Event
}

// AsyncPublisher buffers events and forwards them to next from a single
// goroutine. Publish never waits on next.
type AsyncPublisher struct {
	next    Publisher
	timeout time.Duration
	queue   chan pendingEvent
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsyncPublisher(next Publisher, buffer int, timeout time.Duration) *AsyncPublisher {
	if buffer <= 0 {
		buffer = DefaultAsyncBuffer
	}
	if timeout <= 0 {
		timeout = DefaultAsyncTimeout
	}
	p := &AsyncPublisher{
		next:    next,
		timeout: timeout,
		queue:   make(chan pendingEvent, buffer),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *AsyncPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrQueueClosed
	}
	select {
	case p.queue <- pendingEvent{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		return ErrPublishBacklogFull
	}
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for pending := range p.queue {
		p.forward(pending)
	}
}

func (p *AsyncPublisher) forward(pending pendingEvent) {
	ctx, cancel := context.WithTimeout(pending.ctx, p.timeout)
	defer cancel()

	if err := p.next.Publish(ctx, pending.event); err != nil {
		slog.Warn("Failed to forward attendance event", "error", err, "type", pending.event.Type, "attendance_id", pending.event.RecordID)
	}
}

// Close stops accepting events and waits until the buffered ones are forwarded
func (p *AsyncPublisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	<-p.done
}
