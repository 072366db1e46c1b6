// Package memory provides the in-process summarization work queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/page-summarizer/internal/summary"
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan summary.QueueItem
	closeMu sync.RWMutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch: make(chan summary.QueueItem, capacity),
	}
}

// Enqueue pushes an item into the queue or returns if the context ends.
// Enqueue on a closed queue returns summary.ErrQueueClosed.
func (q *Queue) Enqueue(ctx context.Context, item summary.QueueItem) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return summary.ErrQueueClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- item:
		return nil
	}
}

// Dequeue pops the next item, respecting context cancellation. Items already
// buffered are still returned after Close; once drained it reports summary.ErrQueueClosed.
func (q *Queue) Dequeue(ctx context.Context) (summary.QueueItem, error) {
	select {
	case <-ctx.Done():
		return summary.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			return summary.QueueItem{}, summary.ErrQueueClosed
		}
		return item, nil
	}
}

// Len reports how many items are waiting.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
