package runs_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"ampliflow/internal/runs"
)

func openStore(t *testing.T) (*runs.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "runs.db")
	store, err := runs.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestCreateAndGet(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	run := &runs.Run{ID: "run-1", Action: "qiime2-16s-pipeline", OutputDir: "/data/out", ConfigPath: "/etc/ampliflow.toml"}
	if err := store.Create(ctx, run); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if run.Status != runs.StatusRunning {
		t.Fatalf("expected default status running, got %s", run.Status)
	}

	fetched, err := store.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched.Action != "qiime2-16s-pipeline" || fetched.OutputDir != "/data/out" || fetched.ConfigPath != "/etc/ampliflow.toml" {
		t.Fatalf("unexpected run: %#v", fetched)
	}
	if fetched.FinishedAt != nil {
		t.Fatal("expected running run to have no finish time")
	}

	fetched.SetCompleted()
	if err := store.Update(ctx, fetched); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	again, err := store.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if again.Status != runs.StatusCompleted || again.FinishedAt == nil {
		t.Fatalf("expected completed run with finish time, got %#v", again)
	}
}

func TestGetMissingRun(t *testing.T) {
	store, _ := openStore(t)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, runs.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if err := store.Update(context.Background(), &runs.Run{ID: "nope", Status: runs.StatusFailed}); !errors.Is(err, runs.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound from Update, got %v", err)
	}
}

func TestCreateRequiresIdentity(t *testing.T) {
	store, _ := openStore(t)
	if err := store.Create(context.Background(), &runs.Run{Action: "a"}); err == nil {
		t.Fatal("expected error without id")
	}
	if err := store.Create(context.Background(), &runs.Run{ID: "x"}); err == nil {
		t.Fatal("expected error without action")
	}
}

func TestListOrdersNewestFirstAndFilters(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, status := range []runs.Status{runs.StatusCompleted, runs.StatusFailed, runs.StatusCompleted} {
		run := &runs.Run{
			ID:        []string{"a", "b", "c"}[i],
			Action:    "pipeline",
			Status:    status,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Create(ctx, run); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	all, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
		t.Fatalf("unexpected order: %v", ids(all))
	}

	limited, err := store.List(ctx, 1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "c" {
		t.Fatalf("unexpected limited list: %v", ids(limited))
	}

	failed, err := store.List(ctx, 0, runs.StatusFailed)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "b" {
		t.Fatalf("unexpected filtered list: %v", ids(failed))
	}

	summary, err := store.Summarize(ctx)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary.Total != 3 || summary.Completed != 2 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %#v", summary)
	}
}

func TestStagesAndOutputs(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	if err := store.Create(ctx, &runs.Run{ID: "r", Action: "pipeline"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	start := time.Now().UTC()
	if err := store.RecordStage(ctx, runs.StageRecord{RunID: "r", Stage: "demux", Status: runs.StatusRunning, StartedAt: start}); err != nil {
		t.Fatalf("RecordStage failed: %v", err)
	}
	finished := start.Add(time.Second)
	if err := store.RecordStage(ctx, runs.StageRecord{RunID: "r", Stage: "demux", Status: runs.StatusCompleted, StartedAt: start, FinishedAt: &finished}); err != nil {
		t.Fatalf("RecordStage update failed: %v", err)
	}
	if err := store.RecordStage(ctx, runs.StageRecord{RunID: "r", Stage: "denoise", Status: runs.StatusRunning, StartedAt: finished}); err != nil {
		t.Fatalf("RecordStage failed: %v", err)
	}

	stages, err := store.Stages(ctx, "r")
	if err != nil {
		t.Fatalf("Stages failed: %v", err)
	}
	if len(stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(stages))
	}
	if stages[0].Stage != "demux" || stages[0].Status != runs.StatusCompleted || stages[0].FinishedAt == nil {
		t.Fatalf("unexpected first stage: %#v", stages[0])
	}
	if stages[1].Stage != "denoise" {
		t.Fatalf("unexpected second stage: %#v", stages[1])
	}

	for _, output := range []runs.Output{
		{RunID: "r", Stage: "demux", Name: "demux", Kind: "artifact", Path: "/out/demux.qza", Size: 10},
		{RunID: "r", Stage: "demux", Name: "demux_summary", Kind: "visualization", Path: "/out/demux_summary.qzv", Size: 5},
		{RunID: "r", Stage: "demux", Name: "demux", Kind: "artifact", Path: "/out/demux.qza", Size: 12},
	} {
		if err := store.RecordOutput(ctx, output); err != nil {
			t.Fatalf("RecordOutput failed: %v", err)
		}
	}
	outputs, err := store.Outputs(ctx, "r")
	if err != nil {
		t.Fatalf("Outputs failed: %v", err)
	}
	if len(outputs) != 2 || outputs[0].Name != "demux" || outputs[0].Size != 12 {
		t.Fatalf("unexpected outputs: %#v", outputs)
	}
}

func TestOpenMarksInterruptedRunsFailed(t *testing.T) {
	store, path := openStore(t)
	ctx := context.Background()
	if err := store.Create(ctx, &runs.Run{ID: "stuck", Action: "pipeline"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.RecordStage(ctx, runs.StageRecord{RunID: "stuck", Stage: "denoise", Status: runs.StatusRunning}); err != nil {
		t.Fatalf("RecordStage failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := runs.Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	run, err := reopened.Get(ctx, "stuck")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if run.Status != runs.StatusFailed || run.ErrorMessage != runs.InterruptedReason || run.FinishedAt == nil {
		t.Fatalf("expected interrupted run to be failed, got %#v", run)
	}
	stages, err := reopened.Stages(ctx, "stuck")
	if err != nil {
		t.Fatalf("Stages failed: %v", err)
	}
	if len(stages) != 1 || stages[0].Status != runs.StatusFailed {
		t.Fatalf("expected interrupted stage to be failed, got %#v", stages)
	}
}

func TestPruneRemovesOldFinishedRuns(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	old := time.Now().UTC().Add(-48 * time.Hour)

	for _, run := range []*runs.Run{
		{ID: "old-done", Action: "p", Status: runs.StatusCompleted, StartedAt: old},
		{ID: "old-running", Action: "p", Status: runs.StatusRunning, StartedAt: old},
		{ID: "new-done", Action: "p", Status: runs.StatusCompleted},
	} {
		if err := store.Create(ctx, run); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if err := store.RecordOutput(ctx, runs.Output{RunID: "old-done", Name: "x", Kind: "artifact", Path: "/x.qza"}); err != nil {
		t.Fatalf("RecordOutput failed: %v", err)
	}

	removed, err := store.Prune(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned run, got %d", removed)
	}
	if _, err := store.Get(ctx, "old-done"); !errors.Is(err, runs.ErrRunNotFound) {
		t.Fatalf("expected old run to be pruned, got %v", err)
	}
	outputs, err := store.Outputs(ctx, "old-done")
	if err != nil {
		t.Fatalf("Outputs failed: %v", err)
	}
	if len(outputs) != 0 {
		t.Fatalf("expected cascaded output delete, got %#v", outputs)
	}
	if _, err := store.Get(ctx, "old-running"); err != nil {
		t.Fatalf("running run should survive prune: %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := runs.ParseStatus(" Completed "); !ok || status != runs.StatusCompleted {
		t.Fatalf("unexpected parse result: %q %v", status, ok)
	}
	if _, ok := runs.ParseStatus("bogus"); ok {
		t.Fatal("expected unknown status to fail")
	}
	if !runs.StatusInvalid.Terminal() || runs.StatusRunning.Terminal() {
		t.Fatal("unexpected terminal classification")
	}
}

func ids(list []*runs.Run) []string {
	out := make([]string, 0, len(list))
	for _, run := range list {
		out = append(out, run.ID)
	}
	return out
}
