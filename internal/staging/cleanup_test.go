package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ampliflow/internal/logging"
)

func makeRunDir(t *testing.T, outputDir, runID string, size int) string {
	t.Helper()
	dir := RunDir(outputDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "table.qza"), make([]byte, size), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return dir
}

func TestListMissingRoot(t *testing.T) {
	for _, dir := range []string{"", "   ", filepath.Join(t.TempDir(), "missing")} {
		dirs, err := List(dir)
		if err != nil || len(dirs) != 0 {
			t.Errorf("expected empty result for %q, got %v %v", dir, dirs, err)
		}
	}
}

func TestListReportsSizes(t *testing.T) {
	output := t.TempDir()
	makeRunDir(t, output, "b-run", 10)
	makeRunDir(t, output, "a-run", 20)

	dirs, err := List(output)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(dirs) != 2 || dirs[0].RunID != "a-run" || dirs[1].RunID != "b-run" {
		t.Fatalf("unexpected dirs: %#v", dirs)
	}
	if dirs[0].Size != 20 {
		t.Fatalf("expected size 20, got %d", dirs[0].Size)
	}
}

func TestCleanOrphanedKeepsActiveRuns(t *testing.T) {
	output := t.TempDir()
	kept := makeRunDir(t, output, "active", 5)
	orphan := makeRunDir(t, output, "orphan", 7)

	result := CleanOrphaned(context.Background(), output, map[string]struct{}{"active": {}}, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %#v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0].RunID != "orphan" {
		t.Fatalf("unexpected removals: %#v", result.Removed)
	}
	if result.Freed() != 7 {
		t.Fatalf("expected 7 bytes freed, got %d", result.Freed())
	}
	if _, err := os.Stat(kept); err != nil {
		t.Fatalf("active run directory removed: %v", err)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Fatalf("orphan still present: %v", err)
	}
}

func TestCleanOrphanedRemovesEmptyRoot(t *testing.T) {
	output := t.TempDir()
	makeRunDir(t, output, "old", 1)

	result := CleanOrphaned(context.Background(), output, nil, nil)
	if len(result.Removed) != 1 {
		t.Fatalf("expected one removal, got %#v", result.Removed)
	}
	if _, err := os.Stat(WorkRoot(output)); !os.IsNotExist(err) {
		t.Fatalf("expected empty work root to be removed: %v", err)
	}
}
