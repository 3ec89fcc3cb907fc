package testsupport

import (
	"testing"

	"ampliflow/internal/config"
	"ampliflow/internal/runs"
)

// MustOpenStore opens the run store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *runs.Store {
	t.Helper()

	store, err := runs.Open(cfg.RunDatabasePath())
	if err != nil {
		t.Fatalf("runs.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
