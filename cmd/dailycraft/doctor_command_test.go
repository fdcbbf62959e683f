package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dailycraft/internal/testsupport"
)

func TestDoctorReportsMissingKey(t *testing.T) {
	cfg := newCLIConfig(t)
	cfg.API.Bind = "127.0.0.1:1"
	path := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, path, "doctor")
	if err == nil || !strings.Contains(err.Error(), "doctor found problems") {
		t.Fatalf("expected doctor failure, got %v", err)
	}
	requireContains(t, out, "[FAIL] API key missing")
	requireContains(t, out, "Extraction worker:")
	requireContains(t, out, "[WARN] not reachable")
}

func TestDoctorPassesWithReachableLLM(t *testing.T) {
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"OK"}}]}`)
	}))
	defer llm.Close()

	cfg := newCLIConfig(t, testsupport.WithLLM(llm.URL, "test-key"))
	cfg.API.Bind = "127.0.0.1:1"
	path := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, path, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "Chat completion API:")
	requireContains(t, out, "reachable (model")
	if strings.Contains(out, "[FAIL]") {
		t.Fatalf("unexpected failure:\n%s", out)
	}
}
