package testsupport

import (
	"context"
	"testing"

	"dailycraft/internal/config"
	"dailycraft/internal/storage"
)

// MustOpenStore opens a storage.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *storage.Store {
	t.Helper()

	store, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SaveDiary stores a diary for tests using the provided store.
func SaveDiary(t testing.TB, store *storage.Store, key, content string) *storage.Entry {
	t.Helper()

	entry, err := store.SaveDiary(context.Background(), key, content)
	if err != nil {
		t.Fatalf("store.SaveDiary: %v", err)
	}
	return entry
}
