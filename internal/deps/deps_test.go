package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckCommandsAndFiles(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	script := filepath.Join(dir, "ocr_service.py")
	if err := os.WriteFile(script, []byte("print('ready')\n"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	results := Check([]Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Script", File: script},
		{Name: "Gone", File: filepath.Join(dir, "gone.py"), Optional: true},
		{Name: "Dir", File: dir},
		{Name: "Empty"},
	})
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}

	if !results[0].Available || results[0].Detail != present {
		t.Fatalf("expected present binary to resolve, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" || results[1].Target != "clearly-not-present-binary" {
		t.Fatalf("unexpected missing binary status: %#v", results[1])
	}
	if !results[2].Available {
		t.Fatalf("expected script to be available: %#v", results[2])
	}
	if results[3].Available || results[4].Available || results[5].Available {
		t.Fatalf("expected gone/dir/empty to be unavailable: %#v", results[3:])
	}

	missing := Missing(results)
	if len(missing) != 3 {
		t.Fatalf("expected 3 required misses (optional skipped), got %#v", missing)
	}
}
