package bus

import (
	"context"
	"errors"
	"sync"

	"main/internal/message"
)

var (
	ErrQueueFull   = errors.New("message queue full")
	ErrQueueClosed = errors.New("message queue closed")
)

// Queue is a bounded, non-blocking message queue. Producers publish without
// blocking; a single consumer drains it with Next or Run. After Close the
// consumer still receives everything buffered before the close.
type Queue struct {
	mu     sync.RWMutex
	ch     chan message.Message
	closed bool
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan message.Message, capacity)}
}

// TryPublish enqueues a message without blocking. The closed check and the
// send happen under the same lock, so publishing never races Close into a
// closed channel.
func (q *Queue) TryPublish(m message.Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- m:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the queue from accepting new messages.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Len returns the number of buffered messages.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Next blocks until a message arrives, the queue is drained and closed, or
// the context is done. A drained closed queue returns ErrQueueClosed.
func (q *Queue) Next(ctx context.Context) (message.Message, error) {
	select {
	case m, ok := <-q.ch:
		if !ok {
			return nil, ErrQueueClosed
		}
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run consumes messages until the context is done or the queue is closed.
func (q *Queue) Run(ctx context.Context, handler func(message.Message)) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-q.ch:
			if !ok {
				return
			}
			handler(m)
		}
	}
}
