package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"dailycraft/internal/config"
	"dailycraft/internal/daemon"
	"dailycraft/internal/deps"
	"dailycraft/internal/diary"
	"dailycraft/internal/events"
	"dailycraft/internal/logging"
	"dailycraft/internal/metrics"
	"dailycraft/internal/services/ocr"
	"dailycraft/internal/storage"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// ConfigPath is re-read for every generation job. Empty means the
	// default lookup locations.
	ConfigPath string
	LogLevel   string
}

// Run starts the dailycraft daemon and blocks until SIGINT, SIGTERM or ctx
// cancellation.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	pidPath := filepath.Join(cfg.Paths.DataDir, "dailycraft.pid")

	d, err := Build(cfg, opts, logger)
	if err != nil {
		logger.Error("initialize services", logging.Error(err))
		return err
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api.bind and whether another instance holds the lock"),
		)
		return err
	}
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("write pid file", logging.Error(err))
	}
	defer os.Remove(pidPath)

	<-signalCtx.Done()
	logger.Info("dailycraft daemon shutting down")
	return nil
}

// Build opens the store and constructs every service the daemon owns.
func Build(cfg *config.Config, opts Options, logger *slog.Logger) (*daemon.Daemon, error) {
	store, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open diary store: %w", err)
	}

	m := metrics.New()
	hub := events.NewHub(cfg.Generation.EventBuffer)
	hub.AddSink(m)

	var extractor *ocr.Manager
	if cfg.OCR.Enabled {
		extractor = ocr.NewManager(ocr.ConfigFrom(cfg), logger, ocr.WithObserver(m))
	}

	coordinator := diary.NewCoordinator(diary.FileSettings(opts.ConfigPath), logger,
		diary.WithArchive(store),
		diary.WithPublisher(hub),
		diary.WithRecorder(m),
	)

	d, err := daemon.New(cfg, daemon.Deps{
		Store:       store,
		Hub:         hub,
		Metrics:     m,
		Coordinator: coordinator,
		Extractor:   extractor,
	}, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	llm := cfg.GetLLM()
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("llm_key_present", llm.APIKey != ""),
		logging.String("llm_base_url", llm.BaseURL),
		logging.String("llm_model", llm.Model),
		logging.Bool("ocr_enabled", cfg.OCR.Enabled),
		logging.Bool("api_token_set", strings.TrimSpace(cfg.API.Token) != ""),
	}
	if cfg.OCR.Enabled {
		for _, status := range deps.Check([]deps.Requirement{
			{Name: "ocr_interpreter", Command: cfg.OCR.Command},
		}) {
			attrs = append(attrs, logging.Bool(status.Name+"_available", status.Available))
		}
		script, err := ocr.ResolveScript(cfg.OCR.Script, cfg.ScriptSearchDirs())
		attrs = append(attrs,
			logging.Bool("ocr_script_available", err == nil),
			logging.String("ocr_script", script),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}

