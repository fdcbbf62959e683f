package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"dailycraft/internal/config"
	"dailycraft/internal/testsupport"
)

// newCLIConfig returns a test config with credentials cleared from the
// environment so only the written file is consulted.
func newCLIConfig(t *testing.T, opts ...testsupport.ConfigOption) *config.Config {
	t.Helper()
	t.Setenv("DAILYCRAFT_API_KEY", "")
	t.Setenv("DAILYCRAFT_API_TOKEN", "")
	return testsupport.NewConfig(t, opts...)
}

func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "dailycraft.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	return runCLIWithInput(t, nil, configPath, args...)
}

func runCLIWithInput(t *testing.T, stdin io.Reader, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
