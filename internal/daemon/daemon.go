package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"dailycraft/internal/api"
	"dailycraft/internal/config"
	"dailycraft/internal/diary"
	"dailycraft/internal/events"
	"dailycraft/internal/logging"
	"dailycraft/internal/metrics"
	"dailycraft/internal/services/ocr"
	"dailycraft/internal/storage"
)

const stopTimeout = 10 * time.Second

// Deps are the services owned by the daemon. Extractor is nil when text
// extraction is disabled.
type Deps struct {
	Store       *storage.Store
	Hub         *events.Hub
	Metrics     *metrics.Metrics
	Coordinator *diary.Coordinator
	Extractor   *ocr.Manager
}

// Daemon runs the gateway services and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   Deps
	server *api.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Address      string
	DatabasePath string
	LockFilePath string
	Generation   diary.Job
	OCR          string
}

// New constructs a daemon around already-initialized services.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || deps.Store == nil || deps.Hub == nil || deps.Coordinator == nil {
		return nil, errors.New("daemon requires config, store, event hub, and coordinator")
	}
	logger = logging.NewComponentLogger(logger, "daemon")

	apiDeps := api.Deps{
		Generator: deps.Coordinator,
		Diaries:   deps.Store,
		Records:   deps.Store,
		Events:    deps.Hub,
		Token:     cfg.API.Token,
		Logger:    logger,
	}
	if deps.Extractor != nil {
		apiDeps.Extractor = deps.Extractor
	}
	if deps.Metrics != nil {
		apiDeps.Metrics = deps.Metrics.Handler()
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		deps:     deps,
		server:   api.NewServer(cfg.API.Bind, apiDeps),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, starts the HTTP server and warms up the
// extraction worker in the background.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another dailycraft daemon instance is already running (lock %s)", d.lockPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.server.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}
	d.cancel = cancel
	d.running.Store(true)

	if d.deps.Extractor != nil {
		go d.warmUp(runCtx)
	}

	d.logger.Info("dailycraft daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.server.Addr()),
	)
	return nil
}

func (d *Daemon) warmUp(ctx context.Context) {
	if err := d.deps.Extractor.EnsureReady(ctx); err != nil && ctx.Err() == nil {
		logging.WarnWithContext(d.logger, "extraction worker warm-up failed", "ocr_warmup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "extraction requests will retry starting the worker"),
			logging.String(logging.FieldErrorHint, "check ocr.command and ocr.script"),
		)
	}
}

// Stop shuts down the HTTP server, cancels a running generation, stops the
// extraction worker and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := d.deps.Coordinator.Shutdown(ctx); err != nil {
		d.logger.Warn("generation did not stop in time", logging.Error(err))
	}
	if d.deps.Extractor != nil {
		_ = d.deps.Extractor.Close()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("dailycraft daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.deps.Store.Close()
}

// Addr reports the HTTP listen address once started.
func (d *Daemon) Addr() string {
	return d.server.Addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Address:      d.server.Addr(),
		DatabasePath: d.deps.Store.Path(),
		LockFilePath: d.lockPath,
		Generation:   d.deps.Coordinator.Status(),
		OCR:          "disabled",
	}
	if d.deps.Extractor != nil {
		status.OCR = string(d.deps.Extractor.State())
	}
	return status
}
