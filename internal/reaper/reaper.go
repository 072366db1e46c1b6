// Package reaper fails records left in processing by a task that can no longer
// finish them, typically because the process running it exited.
//
// The sweep only knows about tasks running in this process, so it is meant for
// single-instance deployments and is disabled by default.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/page-summarizer/internal/logging"
	"github.com/JakeFAU/page-summarizer/internal/metrics"
	"github.com/JakeFAU/page-summarizer/internal/summary"
)

// InterruptedMessage is written to records failed by the sweep.
const InterruptedMessage = "Failed to generate summary: task was interrupted before completion"

// Store is the subset of the record store the sweep needs.
type Store interface {
	Get(ctx context.Context, id int64) (summary.Record, error)
	SetOutcome(ctx context.Context, id int64, to summary.Status, text string) (summary.Record, error)
	ListByStatus(ctx context.Context, status summary.Status) ([]summary.Record, error)
}

// InFlight reports whether a task for a record id is running in this process.
type InFlight interface {
	Active(id int64) bool
}

// Reaper periodically sweeps orphaned processing records.
type Reaper struct {
	store    Store
	inFlight InFlight
	cron     *cron.Cron
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// New constructs a Reaper that sweeps on schedule (standard cron syntax or descriptors such as "@every 1m").
func New(store Store, inFlight InFlight, schedule string, timeout time.Duration, logger *zap.Logger) (*Reaper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	r := &Reaper{
		store:    store,
		inFlight: inFlight,
		cron:     cron.New(),
		timeout:  timeout,
		logger:   logger,
	}
	if _, err := r.cron.AddFunc(schedule, r.tick); err != nil {
		return nil, &summary.ConfigError{Key: "reaper.schedule", Msg: fmt.Sprintf("invalid schedule %q: %v", schedule, err)}
	}
	return r, nil
}

// Start runs one sweep immediately and then hands over to the scheduler.
func (r *Reaper) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.ctx = ctx
	r.running = true
	r.mu.Unlock()

	r.sweepLogged(ctx)
	r.cron.Start()
	r.logger.Info("reaper started", zap.Int("entries", len(r.cron.Entries())))
}

// Stop halts the scheduler and waits for a sweep in progress to return.
func (r *Reaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	<-r.cron.Stop().Done()
}

func (r *Reaper) tick() {
	r.mu.Lock()
	running, ctx := r.running, r.ctx
	r.mu.Unlock()
	if !running {
		return
	}
	r.sweepLogged(ctx)
}

func (r *Reaper) sweepLogged(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	n, err := r.Sweep(ctx)
	if err != nil {
		r.logger.Error("reaper sweep failed", zap.Error(err), zap.Int("reaped", n))
		return
	}
	if n > 0 {
		r.logger.Warn("reaped orphaned summaries", zap.Int("reaped", n))
	}
}

// Sweep fails every processing record that has no running task and returns how many it changed.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	records, err := r.store.ListByStatus(ctx, summary.StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("list processing summaries: %w", err)
	}
	reaped := 0
	var errs []error
	for _, candidate := range records {
		if r.inFlight != nil && r.inFlight.Active(candidate.ID) {
			continue
		}
		ok, err := r.reap(ctx, candidate.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			reaped++
			r.logger.Info("failed orphaned summary", logging.RecordID(candidate.ID))
		}
	}
	metrics.ObserveReaped(reaped)
	return reaped, errors.Join(errs...)
}

func (r *Reaper) reap(ctx context.Context, id int64) (bool, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, summary.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("reload summary %d: %w", id, err)
	}
	if rec.Status != summary.StatusProcessing || (r.inFlight != nil && r.inFlight.Active(id)) {
		return false, nil
	}
	if _, err := r.store.SetOutcome(ctx, id, summary.StatusFailed, InterruptedMessage); err != nil {
		if errors.Is(err, summary.ErrNotFound) || errors.Is(err, summary.ErrInvalidTransition) {
			return false, nil
		}
		return false, fmt.Errorf("fail summary %d: %w", id, err)
	}
	return true, nil
}
