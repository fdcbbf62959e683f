package diary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"dailycraft/internal/config"
	"dailycraft/internal/events"
	"dailycraft/internal/logging"
	"dailycraft/internal/services"
	"dailycraft/internal/services/llm"
	"dailycraft/internal/storage"
)

const persistTimeout = 30 * time.Second

// Streamer is the chat-completion surface the coordinator needs.
type Streamer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
	Stream(ctx context.Context, messages []llm.Message, onDelta func(string)) (string, error)
}

// ClientFactory builds a client for the settings of one job.
type ClientFactory func(cfg config.LLMConfig, logger *slog.Logger) Streamer

// Archive persists finished diaries.
type Archive interface {
	SaveDiary(ctx context.Context, key, content string) (*storage.Entry, error)
}

// Publisher receives job events.
type Publisher interface {
	Publish(evt events.Event) events.Event
}

// Recorder observes job timings.
type Recorder interface {
	JobStarted()
	FirstChunk(elapsed time.Duration)
	JobFinished(status string, elapsed time.Duration)
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithClientFactory replaces the default llm client constructor.
func WithClientFactory(factory ClientFactory) Option {
	return func(c *Coordinator) {
		if factory != nil {
			c.newClient = factory
		}
	}
}

// WithArchive sets where finished diaries are saved.
func WithArchive(archive Archive) Option {
	return func(c *Coordinator) {
		c.archive = archive
	}
}

// WithPublisher sets the event destination.
func WithPublisher(publisher Publisher) Option {
	return func(c *Coordinator) {
		if publisher != nil {
			c.publisher = publisher
		}
	}
}

// WithRecorder attaches a timing observer.
func WithRecorder(recorder Recorder) Option {
	return func(c *Coordinator) {
		if recorder != nil {
			c.recorder = recorder
		}
	}
}

// WithClock overrides the time source used for subject keys and timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// Coordinator runs at most one diary generation at a time in the background
// and exposes the job record for polling.
type Coordinator struct {
	settings  SettingsSource
	newClient ClientFactory
	archive   Archive
	publisher Publisher
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time

	running atomic.Bool

	mu     sync.Mutex
	job    Job
	done   chan struct{}
	closed bool

	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewCoordinator constructs an idle coordinator.
func NewCoordinator(settings SettingsSource, logger *slog.Logger, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		settings:  settings,
		newClient: defaultClientFactory,
		publisher: discardPublisher{},
		recorder:  noopRecorder{},
		logger:    logging.NewComponentLogger(logger, "diary"),
		now:       time.Now,
		job:       Job{Status: StatusIdle},
		baseCtx:   ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultClientFactory(cfg config.LLMConfig, logger *slog.Logger) Streamer {
	return llm.NewClient(llm.Config{
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		Model:             cfg.Model,
		TimeoutSeconds:    cfg.TimeoutSeconds,
		StreamIdleTimeout: cfg.StreamIdleTimeout,
	}, llm.WithLogger(logger))
}

// Start launches a background generation. It returns ErrAlreadyRunning
// without touching the job record when another generation is in progress.
func (c *Coordinator) Start(input Input) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	startedAt := c.now()
	job := Job{
		ID:         uuid.NewString(),
		Status:     StatusRunning,
		SubjectKey: startedAt.Format(storage.SubjectKeyLayout),
		StartedAt:  startedAt,
	}
	done := make(chan struct{})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.running.Store(false)
		return ErrShuttingDown
	}
	c.job = job
	c.done = done
	c.mu.Unlock()

	c.recorder.JobStarted()
	c.logger.Info("diary generation started",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldSubjectKey, job.SubjectKey),
	)

	go c.run(job, input, done)
	return nil
}

// Status returns a copy of the current job record.
func (c *Coordinator) Status() Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job
}

// IsRunning reports whether a generation is in progress.
func (c *Coordinator) IsRunning() bool {
	return c.running.Load()
}

// Wait blocks until the most recently started generation has finished or ctx
// is done.
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels a running generation, refuses new ones and waits for the
// background goroutine to exit.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	return c.Wait(ctx)
}

// Generate produces a diary synchronously. It does not touch the job record
// and does not persist the result.
func (c *Coordinator) Generate(ctx context.Context, input Input) (string, error) {
	settings, err := c.resolveSettings()
	if err != nil {
		return "", err
	}
	if settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.Timeout)
		defer cancel()
	}
	client := c.newClient(settings.LLM, c.logger)
	return client.Complete(ctx, []llm.Message{llm.UserMessage(BuildPrompt(input))})
}

func (c *Coordinator) run(job Job, input Input, done chan struct{}) {
	defer close(done)

	logger := c.logger.With(
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldSubjectKey, job.SubjectKey),
	)

	settings, err := c.resolveSettings()
	if err != nil {
		c.fail(job, err, logger)
		return
	}

	ctx := services.WithJobID(c.baseCtx, job.ID)
	if settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.Timeout)
		defer cancel()
	}

	client := c.newClient(settings.LLM, logger)
	var sawChunk bool
	content, err := client.Stream(ctx, []llm.Message{llm.UserMessage(BuildPrompt(input))}, func(delta string) {
		if !sawChunk {
			sawChunk = true
			c.recorder.FirstChunk(c.now().Sub(job.StartedAt))
		}
		c.mu.Lock()
		c.job.Content += delta
		c.mu.Unlock()
		c.publish(job, events.Chunk, delta)
	})
	if err != nil {
		c.fail(job, c.describeFailure(ctx, settings.Timeout, err), logger)
		return
	}

	c.persist(ctx, job, content, logger)

	finished := c.now()
	c.recorder.JobFinished(string(StatusSucceeded), finished.Sub(job.StartedAt))
	c.mu.Lock()
	c.job.Status = StatusSucceeded
	c.job.Content = content
	c.job.FinishedAt = finished
	c.running.Store(false)
	c.mu.Unlock()

	c.publish(job, events.Complete, content)
	logger.Info("diary generation finished",
		logging.Int("chars", len([]rune(content))),
		logging.Duration("elapsed", finished.Sub(job.StartedAt)),
	)
}

func (c *Coordinator) resolveSettings() (Settings, error) {
	if c.settings == nil {
		return Settings{}, services.Wrap(services.ErrConfiguration, "diary", "load settings", "no settings source", nil)
	}
	settings, err := c.settings()
	if err != nil {
		return Settings{}, err
	}
	if settings.LLM.APIKey == "" {
		return Settings{}, services.Wrap(services.ErrConfiguration, "diary", "load settings", "llm api key is not configured", nil)
	}
	return settings, nil
}

func (c *Coordinator) describeFailure(ctx context.Context, timeout time.Duration, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return services.Wrap(services.ErrNetwork, "diary", "generate", fmt.Sprintf("timed out after %s", timeout), err)
	case c.baseCtx.Err() != nil:
		return services.Wrap(services.ErrConcurrency, "diary", "generate", "cancelled by shutdown", err)
	default:
		return err
	}
}

// persist saves the finished diary. Failures are logged and do not change the
// job outcome.
func (c *Coordinator) persist(ctx context.Context, job Job, content string, logger *slog.Logger) {
	if c.archive == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	entry, err := c.archive.SaveDiary(saveCtx, job.SubjectKey, content)
	if err != nil {
		logging.WarnWithContext(logger, "failed to save generated diary", "diary_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "diary content is only available from the job status"),
			logging.String(logging.FieldErrorHint, "check data_dir and diary_dir permissions"),
		)
		return
	}
	logger.Debug("diary saved", logging.String("path", entry.FilePath))
}

func (c *Coordinator) fail(job Job, err error, logger *slog.Logger) {
	finished := c.now()
	c.recorder.JobFinished(string(StatusFailed), finished.Sub(job.StartedAt))
	c.mu.Lock()
	c.job.Status = StatusFailed
	c.job.Error = err.Error()
	c.job.FinishedAt = finished
	c.running.Store(false)
	c.mu.Unlock()

	c.publish(job, events.Error, err.Error())

	hint := "check the llm endpoint and network connectivity"
	if errors.Is(err, services.ErrConfiguration) {
		hint = "set llm.api_key in the config file or DAILYCRAFT_API_KEY"
	}
	logging.ErrorWithContext(logger, "diary generation failed", "diary_generation_failed",
		logging.Error(err),
		logging.String("error_kind", services.Kind(err)),
		logging.String(logging.FieldErrorHint, hint),
	)
}

func (c *Coordinator) publish(job Job, name events.Name, payload string) {
	c.publisher.Publish(events.Event{
		Name:       name,
		JobID:      job.ID,
		SubjectKey: job.SubjectKey,
		Payload:    payload,
	})
}

type discardPublisher struct{}

func (discardPublisher) Publish(evt events.Event) events.Event { return evt }

type noopRecorder struct{}

func (noopRecorder) JobStarted() {}

func (noopRecorder) FirstChunk(time.Duration) {}

func (noopRecorder) JobFinished(string, time.Duration) {}
