package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/text/unicode/norm"

	"dailycraft/internal/logging"
	"dailycraft/internal/services"
)

const (
	defaultHandshakeTimeout = 60 * time.Second
	defaultRequestTimeout   = 120 * time.Second
	closeGrace              = 2 * time.Second
)

// State describes the worker as seen by status queries.
type State string

const (
	StateNotStarted State = "not_started"
	StateReady      State = "ready"
	StateDead       State = "dead"
)

// Config describes how to launch the worker. A relative Script is looked up
// in SearchDirs.
type Config struct {
	Command          string
	Script           string
	SearchDirs       []string
	Args             []string
	HandshakeTimeout time.Duration
	RequestTimeout   time.Duration
	Env              []string
}

// Observer receives lifecycle and per-request outcomes, typically for metrics.
type Observer interface {
	WorkerSpawned()
	ExtractionFinished(outcome string, elapsed time.Duration)
}

// Option customizes the manager.
type Option func(*Manager)

// WithObserver attaches an observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// Manager owns one resident extraction worker and serializes requests to it.
// A worker that fails in any way is destroyed; the next call spawns a
// replacement.
type Manager struct {
	cfg      Config
	logger   *slog.Logger
	observer Observer

	sem     chan struct{}
	proc    *workerProcess
	current atomic.Pointer[workerProcess]
	spawns  atomic.Int64
	closed  atomic.Bool
}

type handshake struct {
	Status string  `json:"status"`
	Error  *string `json:"error"`
}

type extractRequest struct {
	ImagePath string `json:"image_path"`
}

type extractResponse struct {
	Text  *string `json:"text"`
	Error *string `json:"error"`
}

// NewManager constructs a manager. The worker is not started until the first
// EnsureReady or Extract call.
func NewManager(cfg Config, logger *slog.Logger, opts ...Option) *Manager {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	m := &Manager{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "ocr"),
		observer: noopObserver{},
		sem:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnsureReady starts the worker if no live one exists.
func (m *Manager) EnsureReady(ctx context.Context) error {
	if err := m.acquire(ctx); err != nil {
		return err
	}
	defer m.release()
	return m.ensureReadyLocked(ctx)
}

// Extract returns the text recognized in the image at imagePath.
func (m *Manager) Extract(ctx context.Context, imagePath string) (string, error) {
	started := time.Now()
	text, err := m.extract(ctx, imagePath)
	m.observer.ExtractionFinished(outcome(err), time.Since(started))
	return text, err
}

func (m *Manager) extract(ctx context.Context, imagePath string) (string, error) {
	imagePath = strings.TrimSpace(imagePath)
	if imagePath == "" {
		return "", services.Wrap(services.ErrValidation, "ocr", "extract", "image path is empty", nil)
	}
	if _, err := os.Stat(imagePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(ErrImageNotFound, "ocr", "extract", imagePath, nil)
		}
		return "", services.Wrap(services.ErrValidation, "ocr", "extract", "stat image", err)
	}
	if abs, err := filepath.Abs(imagePath); err == nil {
		imagePath = abs
	}

	if err := m.acquire(ctx); err != nil {
		return "", err
	}
	defer m.release()

	if err := m.ensureReadyLocked(ctx); err != nil {
		return "", err
	}
	proc := m.proc

	payload, err := json.Marshal(extractRequest{ImagePath: imagePath})
	if err != nil {
		return "", fmt.Errorf("encode extraction request: %w", err)
	}
	if err := proc.writeLine(payload); err != nil {
		m.destroyLocked("write request failed", err)
		return "", services.Wrap(ErrWorkerIO, "ocr", "extract", "write request", err)
	}

	line, err := proc.readLine(ctx, m.cfg.RequestTimeout)
	if err != nil {
		m.destroyLocked("read response failed", err)
		return "", services.Wrap(ErrWorkerIO, "ocr", "extract", "read response", err)
	}

	var resp extractResponse
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		m.destroyLocked("undecodable response", err)
		return "", services.Wrap(ErrWorkerIO, "ocr", "extract", "decode response", err)
	}
	if resp.Error != nil {
		return "", services.Wrap(ErrExtraction, "ocr", "extract", *resp.Error, nil)
	}
	if resp.Text == nil {
		return "", services.Wrap(services.ErrProtocol, "ocr", "extract", "response has no text field", nil)
	}
	return norm.NFC.String(*resp.Text), nil
}

// State reports the worker state without waiting for an in-flight request.
func (m *Manager) State() State {
	p := m.current.Load()
	if p == nil {
		if m.spawns.Load() > 0 {
			return StateDead
		}
		return StateNotStarted
	}
	if p.alive() {
		return StateReady
	}
	return StateDead
}

// Spawns reports how many worker processes have been started.
func (m *Manager) Spawns() int64 {
	return m.spawns.Load()
}

// Close stops the worker: stdin is closed, and the process is killed if it
// has not exited after a short grace period. Later calls fail with ErrClosed.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.sem <- struct{}{}
	defer m.release()
	if m.proc != nil {
		m.proc.shutdown(closeGrace)
		m.proc = nil
		m.current.Store(nil)
	}
	return nil
}

func (m *Manager) acquire(ctx context.Context) error {
	if m.closed.Load() {
		return ErrClosed
	}
	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if m.closed.Load() {
		m.release()
		return ErrClosed
	}
	return nil
}

func (m *Manager) release() {
	<-m.sem
}

func (m *Manager) ensureReadyLocked(ctx context.Context) error {
	if m.proc != nil {
		if m.proc.alive() {
			return nil
		}
		m.logger.Info("extraction worker exited; restarting",
			logging.Int("pid", m.proc.pid()),
			logging.Error(m.proc.waitErr),
		)
		m.proc = nil
		m.current.Store(nil)
	}

	command, args, err := m.resolve()
	if err != nil {
		return err
	}

	proc, err := startWorker(command, args, append([]string{"PYTHONIOENCODING=utf-8"}, m.cfg.Env...), m.logger)
	if err != nil {
		return services.Wrap(ErrWorkerStartup, "ocr", "spawn", command, err)
	}
	m.spawns.Add(1)
	m.observer.WorkerSpawned()
	if err := lowerPriority(proc.pid()); err != nil {
		m.logger.Debug("lower worker priority failed", logging.Error(err))
	}

	line, err := proc.readLine(ctx, m.cfg.HandshakeTimeout)
	if err != nil {
		proc.kill()
		return services.Wrap(ErrWorkerStartup, "ocr", "handshake", "no ready line", err)
	}
	var hs handshake
	if err := json.Unmarshal([]byte(line), &hs); err != nil {
		proc.kill()
		return services.Wrap(ErrWorkerStartup, "ocr", "handshake", "undecodable ready line", err)
	}
	if hs.Error != nil {
		proc.kill()
		return services.Wrap(ErrWorkerStartup, "ocr", "handshake", *hs.Error, nil)
	}

	m.proc = proc
	m.current.Store(proc)
	m.logger.Info("extraction worker ready",
		logging.Int("pid", proc.pid()),
		logging.Int64("spawns", m.spawns.Load()),
	)
	return nil
}

func (m *Manager) resolve() (string, []string, error) {
	command := strings.TrimSpace(m.cfg.Command)
	if command == "" {
		return "", nil, services.Wrap(ErrWorkerUnavailable, "ocr", "resolve", "no interpreter configured", nil)
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		return "", nil, services.Wrap(ErrWorkerUnavailable, "ocr", "resolve", "interpreter "+command, err)
	}

	var args []string
	script, err := ResolveScript(m.cfg.Script, m.cfg.SearchDirs)
	if err != nil {
		return "", nil, err
	}
	if script != "" {
		args = append(args, script)
	}
	args = append(args, m.cfg.Args...)
	return resolved, args, nil
}

func (m *Manager) destroyLocked(reason string, cause error) {
	if m.proc == nil {
		return
	}
	logging.WarnWithContext(m.logger, "destroying extraction worker", "ocr_worker_destroyed",
		logging.String("reason", reason),
		logging.Int("pid", m.proc.pid()),
		logging.Error(cause),
		logging.String(logging.FieldImpact, "current extraction failed; next request starts a new worker"),
		logging.String(logging.FieldErrorHint, "check worker stderr in debug logs"),
	)
	m.proc.kill()
	m.proc = nil
	m.current.Store(nil)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrImageNotFound):
		return "not_found"
	case errors.Is(err, ErrWorkerUnavailable):
		return "unavailable"
	case errors.Is(err, ErrWorkerStartup):
		return "startup_failed"
	case errors.Is(err, ErrExtraction):
		return "extraction_failed"
	case errors.Is(err, ErrWorkerIO):
		return "io_error"
	case errors.Is(err, services.ErrProtocol):
		return "protocol_error"
	default:
		return "other"
	}
}

type noopObserver struct{}

func (noopObserver) WorkerSpawned() {}

func (noopObserver) ExtractionFinished(string, time.Duration) {}
