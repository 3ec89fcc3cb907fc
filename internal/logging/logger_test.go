package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ampliflow/internal/config"
	"ampliflow/internal/logging"
	"ampliflow/internal/services"
)

func newFileLogger(t *testing.T, format, level string) (*slog.Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := logging.New(logging.Options{Format: format, Level: level, OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return logger, path
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logger, path := newFileLogger(t, "console", "info")
	logger.Info("message without caller")

	if content := readLog(t, path); strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logger, path := newFileLogger(t, "console", "debug")
	logger.Info("message with caller")

	if content := readLog(t, path); !strings.Contains(content, "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleSubjectFromContext(t *testing.T) {
	logger, path := newFileLogger(t, "console", "info")
	ctx := services.WithRunID(context.Background(), "0123456789abcdef")
	ctx = services.WithStage(ctx, "denoise")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "pipeline")).Info("stage started",
		logging.Int64("size_bytes", 2048),
		logging.String("data_path", "/hidden/by/default"),
	)

	content := readLog(t, path)
	for _, want := range []string{"[pipeline]", "Run 01234567 (denoise)", "stage started", "Size: 2.0 KiB", "+ 1 more field hidden"} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in console output, got %q", want, content)
		}
	}
	if strings.Contains(content, "/hidden/by/default") {
		t.Fatalf("expected path field to be hidden at info, got %q", content)
	}
}

func TestJSONLoggerFields(t *testing.T) {
	logger, path := newFileLogger(t, "json", "info")
	ctx := services.WithAction(services.WithRunID(context.Background(), "run-1"), "qiime2-16s-pipeline")
	logging.WithContext(ctx, logger).Warn("careful", logging.String(logging.FieldEventType, "test_event"))

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readLog(t, path))), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry["level"] != "warn" || entry["msg"] != "careful" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry[logging.FieldRunID] != "run-1" || entry[logging.FieldAction] != "qiime2-16s-pipeline" {
		t.Fatalf("missing context fields: %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key: %v", entry)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestForStageOverride(t *testing.T) {
	logger, path := newFileLogger(t, "console", "debug")
	quiet := logging.ForStage(logger, map[string]string{"phylogeny": "error"}, "Phylogeny")
	quiet.Info("dropped")
	quiet.Error("kept")
	logging.ForStage(logger, nil, "demux").Debug("untouched")

	content := readLog(t, path)
	if strings.Contains(content, "dropped") {
		t.Fatalf("expected info to be suppressed by override, got %q", content)
	}
	if !strings.Contains(content, "kept") || !strings.Contains(content, "untouched") {
		t.Fatalf("expected error and debug lines, got %q", content)
	}
}

func TestForStageOverrideLowersSinkLevel(t *testing.T) {
	logger, path := newFileLogger(t, "console", "info")
	teed := logging.TeeLogger(logging.NewComponentLogger(logger, "pipeline"))
	logging.ForStage(teed, map[string]string{"denoise": "debug"}, "denoise").Debug("denoise detail")
	logging.ForStage(teed, map[string]string{"denoise": "debug"}, "demux").Debug("demux detail")

	content := readLog(t, path)
	if !strings.Contains(content, "denoise detail") {
		t.Fatalf("expected debug override to reach an info console, got %q", content)
	}
	if strings.Contains(content, "demux detail") {
		t.Fatalf("expected stages without override to keep the console level, got %q", content)
	}
}

func TestJSONLoggerHonoursStageOverride(t *testing.T) {
	logger, path := newFileLogger(t, "json", "warn")
	logging.ForStage(logger, map[string]string{"taxonomy": "info"}, "taxonomy").Info("classified")
	logger.Info("suppressed")

	content := readLog(t, path)
	if !strings.Contains(content, `"msg":"classified"`) || !strings.Contains(content, `"level":"info"`) {
		t.Fatalf("expected overridden info record, got %q", content)
	}
	if strings.Contains(content, "suppressed") {
		t.Fatalf("expected info below warn to be dropped, got %q", content)
	}
}

func TestOpenRunLogTeesOutput(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")

	runLog, err := logging.OpenRunLog(&cfg, "run-42")
	if err != nil {
		t.Fatalf("OpenRunLog failed: %v", err)
	}
	var console bytes.Buffer
	base := slog.New(slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger := logging.TeeLogger(base, runLog.Handler)
	logger.Debug("only in run log")
	logger.Info("in both")
	if err := runLog.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if runLog.Path != filepath.Join(cfg.Paths.LogDir, "run-42.log") {
		t.Fatalf("unexpected run log path %q", runLog.Path)
	}
	content := readLog(t, runLog.Path)
	if !strings.Contains(content, "only in run log") || !strings.Contains(content, "in both") {
		t.Fatalf("unexpected run log content %q", content)
	}
	if strings.Contains(console.String(), "only in run log") || !strings.Contains(console.String(), "in both") {
		t.Fatalf("unexpected console content %q", console.String())
	}
}

func TestPruneRunLogs(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-72 * time.Hour)
	for _, name := range []string{"old.log", "keep.log", "notes.txt"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatalf("chtimes %s: %v", name, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "fresh.log"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write fresh: %v", err)
	}

	removed := logging.PruneRunLogs(logging.NewNop(), dir, time.Now().Add(-24*time.Hour), "keep.log")
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	for name, want := range map[string]bool{"old.log": false, "keep.log": true, "notes.txt": true, "fresh.log": true} {
		_, err := os.Stat(filepath.Join(dir, name))
		if exists := err == nil; exists != want {
			t.Fatalf("%s exists=%v, want %v", name, exists, want)
		}
	}
}

func TestProgressSampler(t *testing.T) {
	s := logging.NewProgressSampler(25)
	var emitted []float64
	for _, pct := range []float64{-1, 0, 5, 24, 25, 30, 60, 99, 100, 100} {
		if s.ShouldLog(pct) {
			emitted = append(emitted, pct)
		}
	}
	want := []float64{0, 25, 60, 99, 100}
	if len(emitted) != len(want) {
		t.Fatalf("emitted %v, want %v", emitted, want)
	}
	for i := range want {
		if emitted[i] != want[i] {
			t.Fatalf("emitted %v, want %v", emitted, want)
		}
	}
	var nilSampler *logging.ProgressSampler
	if !nilSampler.ShouldLog(50) {
		t.Fatal("nil sampler should always log")
	}
}
