package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	DiaryDir string `toml:"diary_dir"`
	LogDir   string `toml:"log_dir"`
}

// LLM contains chat-completion endpoint settings.
type LLM struct {
	APIKey                   string `toml:"api_key"`
	BaseURL                  string `toml:"base_url"`
	Model                    string `toml:"model"`
	TimeoutSeconds           int    `toml:"timeout_seconds"`
	StreamIdleTimeoutSeconds int    `toml:"stream_idle_timeout_seconds"`
}

// Generation contains settings for background diary generation jobs.
type Generation struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
	EventBuffer    int `toml:"event_buffer"`
}

// OCR contains settings for the resident text-extraction worker.
type OCR struct {
	Enabled                 bool     `toml:"enabled"`
	Command                 string   `toml:"command"`
	Script                  string   `toml:"script"`
	Args                    []string `toml:"args"`
	HandshakeTimeoutSeconds int      `toml:"handshake_timeout_seconds"`
	RequestTimeoutSeconds   int      `toml:"request_timeout_seconds"`
}

// API contains the HTTP surface bind address and optional bearer token.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the gateway.
//
// Configuration sections by subsystem:
//   - Paths: database, diary and log directories
//   - LLM: chat-completion endpoint and credentials
//   - Generation: job timeout and event buffer size
//   - OCR: resident extraction worker command and timeouts
//   - API: HTTP bind address and token
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	LLM        LLM        `toml:"llm"`
	Generation Generation `toml:"generation"`
	OCR        OCR        `toml:"ocr"`
	API        API        `toml:"api"`
	Logging    Logging    `toml:"logging"`

	sourceDir string
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	if exists {
		cfg.sourceDir = filepath.Dir(resolvedPath)
	}
	return &cfg, resolvedPath, exists, nil
}

// SourceDir is the directory of the file the config was loaded from, or
// empty when only defaults were used.
func (c *Config) SourceDir() string {
	return c.sourceDir
}

// ScriptSearchDirs lists the directories a relative ocr.script is looked up
// in, in order: beside the running executable, then beside the config file.
func (c *Config) ScriptSearchDirs() []string {
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	if c.sourceDir != "" {
		dirs = append(dirs, c.sourceDir)
	}
	return dirs
}

// ResolvePath reports the file Load would read for path, and whether it
// exists.
func ResolvePath(path string) (string, bool, error) {
	return resolveConfigPath(path)
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dailycraft.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, diary and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.DiaryDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite archive location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "dailycraft.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "dailycraft.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the resolved chat-completion settings for one job.
type LLMConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	TimeoutSeconds    int
	StreamIdleTimeout time.Duration
}

// GetLLM returns the chat-completion connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:            strings.TrimSpace(c.LLM.APIKey),
		BaseURL:           strings.TrimSpace(c.LLM.BaseURL),
		Model:             strings.TrimSpace(c.LLM.Model),
		TimeoutSeconds:    c.LLM.TimeoutSeconds,
		StreamIdleTimeout: time.Duration(c.LLM.StreamIdleTimeoutSeconds) * time.Second,
	}
}

// GenerationTimeout bounds a single background generation job.
func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.Generation.TimeoutSeconds) * time.Second
}
