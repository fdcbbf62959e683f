package testsupport

import (
	"path/filepath"
	"testing"

	"dailycraft/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The LLM endpoint points nowhere useful and the API key is empty unless
// WithLLM is supplied; the extraction worker is disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.DiaryDir = filepath.Join(base, "diaries")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.LLM.BaseURL = "http://127.0.0.1:1/v1"
	cfgVal.LLM.TimeoutSeconds = 5
	cfgVal.LLM.StreamIdleTimeoutSeconds = 5
	cfgVal.Generation.TimeoutSeconds = 10
	cfgVal.OCR.Enabled = false
	cfgVal.API.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLLM points the config at a test chat-completion server.
func WithLLM(baseURL, apiKey string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = baseURL
		b.cfg.LLM.APIKey = apiKey
	}
}

// WithAPIToken sets the HTTP bearer token.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Token = token
	}
}

// WithOCR enables the extraction worker with the given interpreter and script.
func WithOCR(command, script string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.OCR.Enabled = true
		b.cfg.OCR.Command = command
		b.cfg.OCR.Script = script
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
