package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitAndValidate(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("DAILYCRAFT_API_KEY", "")

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse an existing file")
	}
	if _, _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, target, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+target)
	requireContains(t, out, "api key set: no")
	requireContains(t, out, "Configuration valid")
	if _, err := os.Stat(filepath.Join(home, ".local", "share", "dailycraft", "diaries")); err != nil {
		t.Fatalf("expected diary dir to be created: %v", err)
	}
}

func TestConfigValidateReportsMissingFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	missing := filepath.Join(t.TempDir(), "absent.toml")

	out, _, err := runCLI(t, missing, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "defaults were used")
}

func TestConfigValidateRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"loud\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCLI(t, path, "config", "validate"); err == nil {
		t.Fatal("expected invalid logging level to fail")
	}
}

func TestConfigSetAndGet(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DAILYCRAFT_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.toml")

	out, _, err := runCLI(t, path, "config", "set", "llm.api_key", "sk-test")
	if err != nil {
		t.Fatalf("config set api key: %v", err)
	}
	requireContains(t, out, "Set llm.api_key = (set) in "+path)
	if strings.Contains(out, "sk-test") {
		t.Fatalf("secret echoed: %s", out)
	}
	if _, _, err := runCLI(t, path, "config", "set", "llm.model", "qwen-max"); err != nil {
		t.Fatalf("config set model: %v", err)
	}
	if _, _, err := runCLI(t, path, "config", "set", "generation.timeout_seconds", "90"); err != nil {
		t.Fatalf("config set timeout: %v", err)
	}

	out, _, err = runCLI(t, path, "config", "get", "llm.model")
	if err != nil {
		t.Fatalf("config get: %v", err)
	}
	if strings.TrimSpace(out) != "qwen-max" {
		t.Fatalf("llm.model = %q", out)
	}

	out, _, err = runCLI(t, path, "config", "get")
	if err != nil {
		t.Fatalf("config get all: %v", err)
	}
	requireContains(t, out, "KEY")
	requireContains(t, out, "generation.timeout_seconds")
	requireContains(t, out, "90")
	requireContains(t, out, "(set)")
	if strings.Contains(out, "sk-test") {
		t.Fatalf("secret listed: %s", out)
	}

	if _, _, err := runCLI(t, path, "config", "set", "logging.level", "loud"); err == nil {
		t.Fatal("expected invalid level to be rejected")
	}
	if _, _, err := runCLI(t, path, "config", "set", "llm.temperature", "1"); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
	out, _, err = runCLI(t, path, "config", "get", "logging.level")
	if err != nil || strings.TrimSpace(out) != "info" {
		t.Fatalf("rejected edit changed the file: %q err=%v", out, err)
	}
}
