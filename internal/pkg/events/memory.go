package events

import (
	"context"
	"sync"
)

// MemoryQueue is a bounded channel queue for single-process deployments
type MemoryQueue struct {
	ch     chan Event
	once   sync.Once
	closed chan struct{}
}

func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{
		ch:     make(chan Event, size),
		closed: make(chan struct{}),
	}
}

// Publish enqueues event, blocking while the buffer is full
func (q *MemoryQueue) Publish(ctx context.Context, event Event) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- event:
		return nil
	case <-q.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case ev := <-q.ch:
				select {
				case out <- Message{Event: ev, Ack: noAck}:
				case <-ctx.Done():
					return
				}
			case <-q.closed:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close stops consumers and rejects further publishes
func (q *MemoryQueue) Close() {
	q.once.Do(func() { close(q.closed) })
}
