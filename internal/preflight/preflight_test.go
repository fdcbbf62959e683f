package preflight

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dailycraft/internal/config"
	"dailycraft/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckLLM_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"OK"}}]}`)
	}))
	defer srv.Close()

	result := CheckLLM(context.Background(), "LLM", config.LLMConfig{APIKey: "good-key", BaseURL: srv.URL, Model: "m"})
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckLLM_BadKey(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := CheckLLM(context.Background(), "LLM", config.LLMConfig{APIKey: "bad-key", BaseURL: srv.URL, Model: "m"})
	if result.Passed {
		t.Fatal("expected failure for bad key")
	}
	if !strings.Contains(result.Detail, "401") {
		t.Fatalf("detail = %q", result.Detail)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestCheckLLM_MissingKey(t *testing.T) {
	result := CheckLLM(context.Background(), "LLM", config.LLMConfig{BaseURL: "http://localhost"})
	if result.Passed || !strings.Contains(result.Detail, "missing") {
		t.Fatalf("expected missing key failure, got %+v", result)
	}
}

func TestCheckExtractionWorker(t *testing.T) {
	self, err := os.Executable()
	if err != nil {
		t.Fatalf("executable: %v", err)
	}
	cfg := testsupport.NewConfig(t)
	script := testsupport.WriteFile(t, testsupport.BaseDir(cfg), "ocr_service.py", "print('x')\n")

	cfg.OCR.Command = self
	cfg.OCR.Script = script
	if result := CheckExtractionWorker(cfg); !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}

	cfg.OCR.Script = filepath.Join(testsupport.BaseDir(cfg), "missing.py")
	cfg.OCR.Command = "clearly-not-present-python"
	result := CheckExtractionWorker(cfg)
	if result.Passed || !strings.Contains(result.Detail, "interpreter") || !strings.Contains(result.Detail, "script") {
		t.Fatalf("expected both failures, got %+v", result)
	}
}

func TestCheckDaemon_NotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.API.Bind = "127.0.0.1:1"
	if result := CheckDaemon(context.Background(), cfg); result.Passed {
		t.Fatalf("expected failure, got %+v", result)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_SkipsDisabledWorker(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for _, r := range results[:3] {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	if results[3].Passed {
		t.Fatal("expected LLM check to fail without a key")
	}
	if !Failed(results) {
		t.Fatal("expected Failed to report the LLM failure")
	}
}
