package services_test

import (
	"errors"
	"strings"
	"testing"

	"dailycraft/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrWorkerIO, "ocr", "extract", "read response", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrWorkerIO) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"ocr", "extract", "read response"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := services.Wrap(services.ErrConfiguration, "diary", "", "api key is empty", nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration marker, got %v", err)
	}
	if got := err.Error(); got != "configuration error: diary: api key is empty" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestKindMapping(t *testing.T) {
	cases := map[error]string{
		services.Wrap(services.ErrConfiguration, "a", "b", "c", nil):   "configuration",
		services.Wrap(services.ErrNotFound, "a", "b", "c", nil):        "not_found",
		services.Wrap(services.ErrWorkerLifecycle, "a", "b", "c", nil): "worker_lifecycle",
		services.Wrap(services.ErrProtocol, "a", "b", "c", nil):        "protocol",
		services.Wrap(services.ErrRejected, "a", "b", "c", nil):        "rejected",
		errors.New("plain"): "network",
	}
	for err, want := range cases {
		if got := services.Kind(err); got != want {
			t.Fatalf("Kind(%v) = %q, want %q", err, got, want)
		}
	}
	if services.Kind(nil) != "" {
		t.Fatal("expected empty kind for nil")
	}
}
