// Package worker implements the summarization execution loop.
package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-summarizer/internal/logging"
	"github.com/JakeFAU/page-summarizer/internal/metrics"
	"github.com/JakeFAU/page-summarizer/internal/summary"
)

// Worker consumes queue items and hands each one to the task runner.
type Worker struct {
	queue   summary.Queue
	runner  summary.Runner
	tracker *Tracker
	logger  *zap.Logger
}

// New constructs a Worker. A nil tracker gets a private one.
func New(queue summary.Queue, runner summary.Runner, tracker *Tracker, logger *zap.Logger) *Worker {
	if tracker == nil {
		tracker = NewTracker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:   queue,
		runner:  runner,
		tracker: tracker,
		logger:  logger,
	}
}

// Run blocks, consuming queue items until the context finishes or the queue is closed and drained.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, summary.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued summary", logging.RecordID(item.RecordID))
		w.process(ctx, item)
	}
}

func (w *Worker) process(ctx context.Context, item summary.QueueItem) {
	w.tracker.Begin(item.RecordID)
	metrics.IncActiveWorkers()
	defer func() {
		metrics.DecActiveWorkers()
		w.tracker.Done(item.RecordID)
	}()
	w.runner.Run(ctx, item.RecordID, item.URL)
}
