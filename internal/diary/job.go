package diary

import (
	"fmt"
	"time"

	"dailycraft/internal/config"
	"dailycraft/internal/services"
)

// Status is the lifecycle state of the generation job.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job is a snapshot of the shared generation record. Content grows while the
// job runs; terminal states persist until the next accepted Start.
type Job struct {
	ID         string    `json:"id,omitempty"`
	Status     Status    `json:"status"`
	Content    string    `json:"content"`
	Error      string    `json:"error,omitempty"`
	SubjectKey string    `json:"subject_key,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Input is what a caller supplies to start a generation.
type Input struct {
	ActivitiesJSON string `json:"activities_json"`
	Prompt         string `json:"prompt"`
}

var (
	// ErrAlreadyRunning rejects Start while another job is running.
	ErrAlreadyRunning = fmt.Errorf("a diary is already being generated: %w", services.ErrConcurrency)
	// ErrShuttingDown rejects Start after Shutdown.
	ErrShuttingDown = fmt.Errorf("generation coordinator is shutting down: %w", services.ErrConcurrency)
)

// Settings are resolved once per job so configuration edits apply without a restart.
type Settings struct {
	LLM     config.LLMConfig
	Timeout time.Duration
}

// SettingsSource returns the current settings.
type SettingsSource func() (Settings, error)

// SettingsFromConfig extracts job settings from a loaded config.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{LLM: cfg.GetLLM(), Timeout: cfg.GenerationTimeout()}
}

// StaticSettings always returns the settings of cfg.
func StaticSettings(cfg *config.Config) SettingsSource {
	settings := SettingsFromConfig(cfg)
	return func() (Settings, error) {
		return settings, nil
	}
}

// FileSettings reloads the configuration file on every call.
func FileSettings(path string) SettingsSource {
	return func() (Settings, error) {
		cfg, _, _, err := config.Load(path)
		if err != nil {
			return Settings{}, services.Wrap(services.ErrConfiguration, "diary", "load settings", "", err)
		}
		return SettingsFromConfig(cfg), nil
	}
}
