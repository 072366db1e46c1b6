// Package server provides the core application server and dependency injection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/page-summarizer/internal/api"
	"github.com/JakeFAU/page-summarizer/internal/clock/system"
	"github.com/JakeFAU/page-summarizer/internal/config"
	"github.com/JakeFAU/page-summarizer/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/page-summarizer/internal/fetcher/colly"
	"github.com/JakeFAU/page-summarizer/internal/id/uuid"
	"github.com/JakeFAU/page-summarizer/internal/logging"
	"github.com/JakeFAU/page-summarizer/internal/metrics"
	"github.com/JakeFAU/page-summarizer/internal/provider"
	queueMemory "github.com/JakeFAU/page-summarizer/internal/queue/memory"
	"github.com/JakeFAU/page-summarizer/internal/reaper"
	"github.com/JakeFAU/page-summarizer/internal/task"
	"github.com/JakeFAU/page-summarizer/internal/telemetry"
	"github.com/JakeFAU/page-summarizer/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg            *config.Config
	logger         *zap.Logger
	apiServer      *api.Server
	dispatch       *dispatcher.Dispatcher
	queue          *queueMemory.Queue
	tracker        *worker.Tracker
	store          RecordStore
	reaper         *reaper.Reaper
	tracerShutdown func(context.Context) error
	addr           chan string
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	// Only non-sensitive fields are logged.
	type SanitizedConfig struct {
		ServerPort  int    `json:"server_port"`
		Environment string `json:"environment,omitempty"`
		Backend     string `json:"backend"`
		Provider    string `json:"provider"`
		Workers     int    `json:"workers"`
	}
	safeCfg := SanitizedConfig{
		ServerPort:  cfg.Server.Port,
		Environment: cfg.Environment,
		Backend:     cfg.Database.Backend,
		Provider:    cfg.Summarizer.Provider,
		Workers:     cfg.Worker.Concurrency,
	}
	logger.Info("Creating application", zap.Any("config", safeCfg))
	return &App{
		cfg:    cfg,
		logger: logger,
		addr:   make(chan string, 1),
	}, nil
}

// Run starts the application and blocks until the context is canceled or a
// termination signal arrives. Workers get a grace period to finish; records
// still queued after it stay pending.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerCtx, cancelWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWorkers()
	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		a.logger.Info("dispatcher started", zap.Int("workers", a.cfg.Worker.Concurrency))
		a.dispatch.Run(workerCtx)
	}()

	if a.reaper != nil {
		a.reaper.Start(workerCtx)
	}

	srv := &http.Server{
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ln, err := listen(gctx, a.cfg.Server.Port)
		if err != nil {
			return err
		}
		a.addr <- ln.Addr().String()
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})
	runErr := g.Wait()

	a.stopWorkers(cancelWorkers, workersDone)

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Close(closeCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// stopWorkers closes the queue and lets workers drain it for the grace period.
// Whatever is still queued after that is left pending.
func (a *App) stopWorkers(cancelWorkers context.CancelFunc, workersDone <-chan struct{}) {
	if queued := a.queue.Len(); queued > 0 {
		a.logger.Info("draining queued summaries before shutdown", zap.Int("queued", queued))
	}
	a.queue.Close()

	timer := time.NewTimer(shutdownTimeout)
	defer timer.Stop()
	select {
	case <-workersDone:
	case <-timer.C:
		a.logger.Warn("workers still busy after grace period, cancelling",
			zap.Int("in_flight", a.tracker.Len()),
			zap.Int("queued", a.queue.Len()),
		)
		cancelWorkers()
		<-workersDone
	}
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	if a.queue != nil {
		a.queue.Close()
	}
	if a.reaper != nil {
		a.reaper.Stop()
	}
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("record store close failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	a.closeObservability(ctx)
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeObservability(ctx context.Context) {
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	// Sync fails on stdout/stderr for some platforms; nothing useful to do about it.
	_ = a.logger.Sync()
}

// Addr blocks until the HTTP listener is bound and returns its address.
func (a *App) Addr(ctx context.Context) (string, error) {
	select {
	case addr := <-a.addr:
		a.addr <- addr
		return addr, nil
	case <-ctx.Done():
		return "", fmt.Errorf("wait for listener: %w", ctx.Err())
	}
}

// Build creates the application's dependencies. Provider misconfiguration
// fails here, before any task can run.
func Build(ctx context.Context, cfg *config.Config) (app *App, err error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app, err = NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}
	defer func() {
		if err != nil {
			_ = app.Close(context.WithoutCancel(ctx))
			app = nil
		}
	}()

	tp, err := telemetry.InitTracerProvider(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	app.tracerShutdown = tp.Shutdown
	metrics.Init()

	app.logger.Info("building application dependencies")
	prov, err := provider.New(cfg.Summarizer, logger.Named("provider"))
	if err != nil {
		return nil, fmt.Errorf("provider init failed: %w", err)
	}
	app.logger.Info("summarization provider ready", zap.String("provider", prov.Name()))

	clock := system.New()
	if err = setupStore(ctx, app, clock); err != nil {
		return nil, err
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:       cfg.Fetcher.UserAgent,
		Timeout:         cfg.FetchTimeout(),
		MinContentChars: cfg.Fetcher.MinContentChars,
		MaxBodyBytes:    cfg.Fetcher.MaxBodyBytes,
	}, logger.Named("fetcher"))

	runner := task.New(app.store, fetcher, prov, clock, task.Config{
		MaxWords:     cfg.Summarizer.MaxWords,
		StoreTimeout: cfg.StoreTimeout(),
	}, logger.Named("task"))

	app.queue = queueMemory.NewQueue(cfg.Worker.QueueDepth)
	app.tracker = worker.NewTracker()
	app.dispatch = dispatcher.New(app.queue, dispatcher.Pool(
		cfg.Worker.Concurrency, app.queue, runner, app.tracker, logger.Named("worker"),
	))

	if cfg.Reaper.Enabled {
		app.reaper, err = reaper.New(app.store, app.tracker, cfg.Reaper.Schedule, cfg.StoreTimeout(), logger.Named("reaper"))
		if err != nil {
			return nil, fmt.Errorf("reaper init failed: %w", err)
		}
		app.logger.Info("orphan reaper enabled", zap.String("schedule", cfg.Reaper.Schedule))
	}

	app.apiServer = api.NewServer(
		app.store,
		app.dispatch,
		uuid.New(),
		clock,
		*cfg,
		logger.Named("api"),
	)

	return app, nil
}

func listen(ctx context.Context, port int) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", port, err)
	}
	return ln, nil
}

func setupStore(ctx context.Context, app *App, clock *system.Clock) error {
	store, err := OpenStore(ctx, app.cfg.Database, clock)
	if err != nil {
		return err
	}
	app.store = store
	app.logger.Info("record store initialized", zap.String("backend", app.cfg.Database.Backend))
	if !app.cfg.Database.AutoMigrate {
		return nil
	}
	applied, err := Migrate(ctx, store)
	if err != nil {
		return fmt.Errorf("auto-migrate failed: %w", err)
	}
	if applied {
		app.logger.Info("schema migrations applied")
	}
	return nil
}
