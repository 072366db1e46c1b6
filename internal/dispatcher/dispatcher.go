// Package dispatcher manages worker fan-out over the summarization queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-summarizer/internal/summary"
	"github.com/JakeFAU/page-summarizer/internal/worker"
)

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue   summary.Queue
	workers []*worker.Worker
}

// New creates a Dispatcher.
func New(queue summary.Queue, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
	}
}

// Pool builds n workers sharing queue, runner, and tracker.
func Pool(n int, queue summary.Queue, runner summary.Runner, tracker *worker.Tracker, logger *zap.Logger) []*worker.Worker {
	if n < 1 {
		n = 1
	}
	workers := make([]*worker.Worker, 0, n)
	for i := 0; i < n; i++ {
		workers = append(workers, worker.New(queue, runner, tracker, logger))
	}
	return workers
}

// Run starts all workers and blocks until every worker has returned. Workers
// return when ctx finishes or when the queue is closed and drained.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	wg.Wait()
}

// Enqueue schedules item without waiting for it to run.
func (d *Dispatcher) Enqueue(ctx context.Context, item summary.QueueItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
