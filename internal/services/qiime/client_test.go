package qiime_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"ampliflow/internal/services"
	"ampliflow/internal/services/qiime"
)

// stubExecutor records invocations and writes every declared output file.
type stubExecutor struct {
	lines   []string
	err     error
	skip    string
	binary  string
	calls   [][]string
	written []string
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	s.binary = binary
	s.calls = append(s.calls, append([]string(nil), args...))
	for _, line := range s.lines {
		onLine(line)
	}
	if s.err != nil {
		return s.err
	}
	for i := 0; i < len(args)-1; i++ {
		if !strings.HasPrefix(args[i], "--o-") && args[i] != "--output-path" {
			continue
		}
		path := args[i+1]
		if s.skip != "" && filepath.Base(path) == s.skip {
			continue
		}
		if err := os.WriteFile(path, []byte("qiime"), 0o644); err != nil {
			return err
		}
		s.written = append(s.written, path)
	}
	return nil
}

func newClient(t *testing.T, exec qiime.Executor) *qiime.Client {
	t.Helper()
	client, err := qiime.New("qiime", 0, qiime.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := qiime.New("  ", 0); err == nil {
		t.Fatal("expected error for empty binary")
	}
}

func TestInvokeBuildsCommandAndReturnsOutputs(t *testing.T) {
	exec := &stubExecutor{}
	client := newClient(t, exec)
	dir := filepath.Join(t.TempDir(), "work")

	action := qiime.Dada2DenoiseSingle("/in/demux.qza", qiime.Dada2Options{TrimLeft: 0, TruncLen: 120, MaxEE: 2, TruncQ: 2, NThreads: 4})
	outputs, err := client.Invoke(context.Background(), action, dir)
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}

	want := []string{
		"dada2", "denoise-single",
		"--i-demultiplexed-seqs", "/in/demux.qza",
		"--p-trim-left", "0",
		"--p-trunc-len", "120",
		"--p-max-ee", "2",
		"--p-trunc-q", "2",
		"--p-n-threads", "4",
		"--o-table", filepath.Join(dir, "table.qza"),
		"--o-representative-sequences", filepath.Join(dir, "rep_seqs.qza"),
		"--o-denoising-stats", filepath.Join(dir, "stats.qza"),
	}
	if len(exec.calls) != 1 || !reflect.DeepEqual(exec.calls[0], want) {
		t.Fatalf("unexpected args:\n got %v\nwant %v", exec.calls, want)
	}
	if exec.binary != "qiime" {
		t.Fatalf("unexpected binary %q", exec.binary)
	}

	names := make([]string, 0, len(outputs))
	for _, entity := range outputs {
		names = append(names, entity.Name)
		if entity.Kind != qiime.Artifact {
			t.Fatalf("expected artifact kind for %s", entity.Name)
		}
	}
	if strings.Join(names, ",") != "table,rep_seqs,stats" {
		t.Fatalf("unexpected output names %v", names)
	}
	if path, ok := outputs.Path("rep_seqs"); !ok || path != filepath.Join(dir, "rep_seqs.qza") {
		t.Fatalf("unexpected rep_seqs path %q", path)
	}
	if _, ok := outputs.Path("missing"); ok {
		t.Fatal("expected unknown entity lookup to fail")
	}
}

func TestInvokeFailsWhenDeclaredOutputMissing(t *testing.T) {
	exec := &stubExecutor{skip: "demux_summary.qzv"}
	client := newClient(t, exec)

	_, err := client.Invoke(context.Background(), qiime.DemuxSummarize("/in/demux.qza"), t.TempDir())
	if err == nil {
		t.Fatal("expected missing output error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if !strings.Contains(err.Error(), "demux_summary.qzv") {
		t.Fatalf("expected output name in error, got %v", err)
	}
}

func TestInvokeReportsDebugLogOnFailure(t *testing.T) {
	exec := &stubExecutor{
		lines: []string{
			"Plugin error from dada2:",
			"  An error was encountered while running DADA2 in R (return code 1)",
			"Debug info has been saved to /tmp/qiime2-q2cli-err-abc.log",
		},
		err: errors.New("exit status 1"),
	}
	client := newClient(t, exec)
	ctx := services.WithStage(context.Background(), "denoise")

	_, err := client.Invoke(ctx, qiime.Dada2DenoiseSingle("/in/demux.qza", qiime.Dada2Options{}), t.TempDir())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	details := services.Details(err)
	if details.Stage != "denoise" || details.Operation != "qiime dada2 denoise-single" {
		t.Fatalf("unexpected details %#v", details)
	}
	if !strings.Contains(details.Message, "/tmp/qiime2-q2cli-err-abc.log") {
		t.Fatalf("expected debug log path in message, got %q", details.Message)
	}
}

func TestInvokeUsesLastLineWithoutDebugLog(t *testing.T) {
	exec := &stubExecutor{lines: []string{"Usage: qiime demux", "Error: Invalid value for '--i-seqs'", ""}, err: errors.New("exit status 2")}
	client := newClient(t, exec)

	_, err := client.Invoke(context.Background(), qiime.DemuxSummarize("x"), t.TempDir())
	if err == nil || !strings.Contains(services.Details(err).Message, "Invalid value for '--i-seqs'") {
		t.Fatalf("expected last output line in message, got %v", err)
	}
}

func TestInfoParsesInstallation(t *testing.T) {
	exec := &stubExecutor{lines: []string{
		"System versions",
		"Python version: 3.8.16",
		"QIIME 2 release: 2023.5",
		"QIIME 2 version: 2023.5.1",
		"q2cli version: 2023.5.1",
		"",
		"Installed plugins",
		"alignment: 2023.5.0",
		"composition: 2023.5.0",
		"dada2: 2023.5.0",
		"feature-classifier: 2023.5.0",
		"",
		"Application config directory",
		"/home/user/.config/q2cli",
	}}
	client := newClient(t, exec)

	info, err := client.Info(context.Background())
	if err != nil {
		t.Fatalf("Info returned error: %v", err)
	}
	if info.Release != "2023.5" || info.Version != "2023.5.1" || info.Python != "3.8.16" {
		t.Fatalf("unexpected info %#v", info)
	}
	if !info.HasPlugin("feature_classifier") || !info.HasPlugin("dada2") {
		t.Fatalf("expected plugins to be detected: %#v", info.Plugins)
	}
	if got := info.MissingPlugins("taxa", "dada2", "diversity"); !reflect.DeepEqual(got, []string{"diversity", "taxa"}) {
		t.Fatalf("unexpected missing plugins %v", got)
	}
	if len(info.Plugins) != 4 {
		t.Fatalf("expected 4 plugins, got %d", len(info.Plugins))
	}
}

func TestInfoRejectsUnknownOutput(t *testing.T) {
	client := newClient(t, &stubExecutor{lines: []string{"command not found"}})
	if _, err := client.Info(context.Background()); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}
