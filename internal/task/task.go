// Package task runs one summarization request to completion: it claims a
// pending record, fetches the page, asks the provider for a summary, and
// records the outcome on the record.
package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/page-summarizer/internal/logging"
	"github.com/JakeFAU/page-summarizer/internal/metrics"
	"github.com/JakeFAU/page-summarizer/internal/provider"
	"github.com/JakeFAU/page-summarizer/internal/summary"
)

const tracerName = "github.com/JakeFAU/page-summarizer/internal/task"

// Outcome labels reported through metrics.ObserveTask.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeInternal  = "internal_error"
	OutcomeSkipped   = "skipped"
	OutcomeMissing   = "missing"
	OutcomeAbandoned = "abandoned"
)

// FailurePrefix starts the summary text of a record that failed for an expected reason.
const FailurePrefix = "Failed to generate summary: "

// InternalPrefix starts the summary text written by the fallback path.
const InternalPrefix = "Internal error: "

// Config controls Task behavior.
type Config struct {
	MaxWords     int
	StoreTimeout time.Duration
}

// Task implements summary.Runner.
type Task struct {
	store    summary.Store
	fetcher  summary.Fetcher
	provider summary.Provider
	clock    summary.Clock
	cfg      Config
	logger   *zap.Logger
	tracer   trace.Tracer
}

// New constructs a Task.
func New(
	store summary.Store,
	fetcher summary.Fetcher,
	prov summary.Provider,
	clock summary.Clock,
	cfg Config,
	logger *zap.Logger,
) *Task {
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = provider.DefaultMaxWords
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Task{
		store:    store,
		fetcher:  fetcher,
		provider: prov,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// Run summarizes url into record recordID. It never panics and never returns
// an error; every outcome is written to the record or logged.
func (t *Task) Run(ctx context.Context, recordID int64, url string) {
	ctx, span := t.tracer.Start(ctx, "summary.task", trace.WithAttributes(
		attribute.Int64("summary.id", recordID),
		attribute.String("summary.url", url),
	))
	defer span.End()
	logger := t.logger.With(logging.RecordID(recordID), zap.String("url", url))

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			logger.Error("summary task panicked", zap.Any("panic", r), zap.Stack("stack"))
			t.fallback(ctx, span, logger, recordID, err)
		}
	}()

	outcome, err := t.run(ctx, logger, recordID, url)
	switch {
	case err == nil:
		span.SetAttributes(attribute.String("summary.outcome", outcome))
		metrics.ObserveTask(outcome)
	case errors.Is(err, summary.ErrNotFound):
		logger.Info("summary record disappeared while task was running")
		span.SetAttributes(attribute.String("summary.outcome", OutcomeMissing))
		metrics.ObserveTask(OutcomeMissing)
	case errors.Is(err, summary.ErrInvalidTransition):
		logger.Info("summary record was finalized elsewhere, leaving it unchanged")
		span.SetAttributes(attribute.String("summary.outcome", OutcomeAbandoned))
		metrics.ObserveTask(OutcomeAbandoned)
	default:
		logger.Error("summary task failed unexpectedly", zap.Error(err))
		t.fallback(ctx, span, logger, recordID, err)
	}
}

func (t *Task) run(ctx context.Context, logger *zap.Logger, recordID int64, url string) (string, error) {
	rec, err := t.store.Get(ctx, recordID)
	if err != nil {
		if errors.Is(err, summary.ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("load record: %w", err)
	}
	if rec.Status != summary.StatusPending {
		logger.Warn("summary record is not pending, skipping", zap.String("status", string(rec.Status)))
		return OutcomeSkipped, nil
	}

	if _, err := t.store.SetStatus(ctx, recordID, summary.StatusProcessing); err != nil {
		if errors.Is(err, summary.ErrNotFound) || errors.Is(err, summary.ErrInvalidTransition) {
			return "", err
		}
		return "", fmt.Errorf("mark processing: %w", err)
	}
	logger.Debug("summary task started")

	start := t.clock.Now()
	text, err := t.fetcher.Fetch(ctx, url)
	metrics.ObserveStage(metrics.StageFetch, t.clock.Now().Sub(start))
	if err != nil {
		return t.expectedFailure(ctx, logger, recordID, "fetch", err)
	}

	start = t.clock.Now()
	result, err := t.provider.Summarize(ctx, text, t.cfg.MaxWords)
	metrics.ObserveStage(metrics.StageSummarize, t.clock.Now().Sub(start))
	if err != nil {
		return t.expectedFailure(ctx, logger, recordID, "summarize", err)
	}

	if err := t.finish(ctx, recordID, summary.StatusCompleted, result); err != nil {
		return "", err
	}
	logger.Info("summary completed", zap.String("provider", t.provider.Name()), zap.Int("chars", len(result)))
	return OutcomeCompleted, nil
}

func (t *Task) expectedFailure(ctx context.Context, logger *zap.Logger, recordID int64, stage string, err error) (string, error) {
	if !summary.IsExpected(err) {
		return "", fmt.Errorf("%s: %w", stage, err)
	}
	logger.Warn("summary failed", zap.String("stage", stage), zap.Error(err))
	trace.SpanFromContext(ctx).RecordError(err)
	if werr := t.finish(ctx, recordID, summary.StatusFailed, FailurePrefix+err.Error()); werr != nil {
		return "", werr
	}
	return OutcomeFailed, nil
}

// finish reloads the record and writes the terminal status and text. Only
// status and summary are written, and the store refuses the write if the
// record has already left processing. The write survives cancellation of ctx
// so that shutdown still records the outcome.
func (t *Task) finish(ctx context.Context, recordID int64, status summary.Status, text string) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.cfg.StoreTimeout)
	defer cancel()

	rec, err := t.store.Get(writeCtx, recordID)
	if err != nil {
		if errors.Is(err, summary.ErrNotFound) {
			return err
		}
		return fmt.Errorf("reload record: %w", err)
	}
	if !summary.CanTransition(rec.Status, status) {
		return summary.ErrInvalidTransition
	}
	if _, err := t.store.SetOutcome(writeCtx, recordID, status, text); err != nil {
		if errors.Is(err, summary.ErrNotFound) || errors.Is(err, summary.ErrInvalidTransition) {
			return err
		}
		return fmt.Errorf("write %s status: %w", status, err)
	}
	return nil
}

// fallback makes one attempt to mark the record failed after an unexpected error.
func (t *Task) fallback(ctx context.Context, span trace.Span, logger *zap.Logger, recordID int64, cause error) {
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())
	span.SetAttributes(attribute.String("summary.outcome", OutcomeInternal))
	metrics.ObserveTask(OutcomeInternal)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("fallback status write panicked", zap.Any("panic", r))
		}
	}()
	err := t.finish(ctx, recordID, summary.StatusFailed, InternalPrefix+cause.Error())
	switch {
	case err == nil:
	case errors.Is(err, summary.ErrNotFound), errors.Is(err, summary.ErrInvalidTransition):
		logger.Info("fallback skipped", zap.Error(err))
	default:
		logger.Error("fallback status write failed", zap.Error(err))
	}
}
