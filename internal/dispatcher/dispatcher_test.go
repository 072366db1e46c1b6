// Package dispatcher contains tests for worker coordination.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-summarizer/internal/queue/memory"
	"github.com/JakeFAU/page-summarizer/internal/summary"
	"github.com/JakeFAU/page-summarizer/internal/worker"
)

type countingRunner struct {
	mu  sync.Mutex
	ids map[int64]int
}

func (r *countingRunner) Run(_ context.Context, id int64, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[id]++
}

// TestDispatcherRunStartsWorkers ensures workers begin processing and stop on cancel.
func TestDispatcherRunStartsWorkers(t *testing.T) {
	t.Parallel()

	queue := &blockingQueue{started: make(chan struct{}, 1)}
	dispatch := New(queue, Pool(1, queue, &countingRunner{ids: map[int64]int{}}, nil, zap.NewNop()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatch.Run(ctx)
		close(done)
	}()

	select {
	case <-queue.started:
	case <-time.After(time.Second):
		t.Fatal("worker did not begin dequeuing")
	}

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}

// TestDispatcherDrainsQueueOnClose runs every enqueued item exactly once across the pool.
func TestDispatcherDrainsQueueOnClose(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(32)
	runner := &countingRunner{ids: map[int64]int{}}
	dispatch := New(q, Pool(4, q, runner, worker.NewTracker(), zap.NewNop()))

	for i := int64(1); i <= 20; i++ {
		if err := dispatch.Enqueue(context.Background(), summary.QueueItem{RecordID: i}); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}
	q.Close()

	done := make(chan struct{})
	go func() {
		dispatch.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not return after queue drained")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.ids) != 20 {
		t.Fatalf("expected 20 distinct records, got %d", len(runner.ids))
	}
	for id, n := range runner.ids {
		if n != 1 {
			t.Fatalf("record %d ran %d times", id, n)
		}
	}
}

// TestDispatcherEnqueueForwardsErrors verifies queue errors are wrapped for callers.
func TestDispatcherEnqueueForwardsErrors(t *testing.T) {
	t.Parallel()

	queue := &errorQueue{err: errors.New("boom")}
	dispatch := New(queue, nil)

	err := dispatch.Enqueue(context.Background(), summary.QueueItem{RecordID: 1})
	if err == nil || err.Error() != "queue enqueue: boom" {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestPoolHasAtLeastOneWorker(t *testing.T) {
	t.Parallel()

	if got := len(Pool(0, &errorQueue{}, &countingRunner{}, nil, zap.NewNop())); got != 1 {
		t.Fatalf("expected 1 worker, got %d", got)
	}
}

type blockingQueue struct {
	started chan struct{}
}

func (q *blockingQueue) Enqueue(_ context.Context, _ summary.QueueItem) error {
	select {
	case q.started <- struct{}{}:
	default:
	}
	return nil
}

func (q *blockingQueue) Dequeue(ctx context.Context) (summary.QueueItem, error) {
	select {
	case q.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return summary.QueueItem{}, fmt.Errorf("blocking dequeue canceled: %w", ctx.Err())
}

type errorQueue struct {
	err error
}

func (q *errorQueue) Enqueue(context.Context, summary.QueueItem) error {
	return q.err
}

func (q *errorQueue) Dequeue(context.Context) (summary.QueueItem, error) {
	return summary.QueueItem{}, summary.ErrQueueClosed
}
