package verify

import (
	"context"
	"sync"
)

// CompletionQueue is the ordered, unbounded queue between the linking
// flow and the role-assignment consumer. Any goroutine may publish;
// exactly one consumer receives, in publish order. Publish never
// blocks.
type CompletionQueue struct {
	mu     sync.Mutex
	items  []CompletionEvent
	wake   chan struct{}
	closed bool
}

// NewCompletionQueue creates an empty queue.
func NewCompletionQueue() *CompletionQueue {
	return &CompletionQueue{wake: make(chan struct{}, 1)}
}

// Publish appends an event. Publishing to a closed queue returns
// ErrQueueClosed.
func (q *CompletionQueue) Publish(event CompletionEvent) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, event)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Receive blocks until an event is available, the context is cancelled,
// or the queue is closed and drained.
func (q *CompletionQueue) Receive(ctx context.Context) (CompletionEvent, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			event := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return event, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return CompletionEvent{}, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return CompletionEvent{}, ctx.Err()
		case <-q.wake:
		}
	}
}

// Len returns the current queue depth. Used to feed the metrics gauge.
func (q *CompletionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops further publishes. Already-queued events remain
// receivable until drained.
func (q *CompletionQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}
