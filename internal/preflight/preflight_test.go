package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ampliflow/internal/config"
	"ampliflow/internal/services/qiime"
)

type stubInfo struct {
	info qiime.Info
	err  error
}

func (s stubInfo) Info(context.Context) (qiime.Info, error) { return s.info, s.err }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	if result := CheckDirectoryAccess("test", dir); !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
	if result := CheckDirectoryAccess("test", filepath.Join(dir, "nope")); result.Passed || result.Detail == "" {
		t.Fatalf("expected failure with detail for missing dir, got %#v", result)
	}
	file := filepath.Join(dir, "file.txt")
	writeFile(t, file, "x")
	if result := CheckDirectoryAccess("test", file); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckWritableTarget(t *testing.T) {
	dir := t.TempDir()
	result := CheckWritableTarget("Output directory", filepath.Join(dir, "a", "b"))
	if !result.Passed || !strings.Contains(result.Detail, "will be created") {
		t.Fatalf("expected creatable target, got %#v", result)
	}
	if result := CheckWritableTarget("Output directory", " "); result.Passed {
		t.Fatal("expected blank target to fail")
	}
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.tsv")
	writeFile(t, empty, "")
	if result := CheckFile("Sample metadata", empty); result.Passed || !strings.Contains(result.Detail, "empty") {
		t.Fatalf("expected empty file failure, got %#v", result)
	}
	full := filepath.Join(dir, "metadata.tsv")
	writeFile(t, full, "sample-id\tsubject\n")
	if result := CheckFile("Sample metadata", full); !result.Passed {
		t.Fatalf("expected pass, got %#v", result)
	}
	if result := CheckFile("Sample metadata", dir); result.Passed {
		t.Fatal("expected directory to fail the file check")
	}
}

func TestCheckInputs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "seqs.qza"), "qza")
	writeFile(t, filepath.Join(dir, "metadata.tsv"), "sample-id\n")
	action := config.Action{Data: config.Data{
		DataSource:   dir,
		QzaSequences: "seqs.qza",
		Metadata:     "metadata.tsv",
		Classifier:   "classifier.qza",
	}}
	params := config.DefaultQiimeParams()

	results := CheckInputs(action, params)
	if len(results) != 3 {
		t.Fatalf("expected three checks with taxonomy enabled, got %d", len(results))
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Classifier" {
		t.Fatalf("expected only the classifier to fail, got %#v", failed)
	}

	params.TaxonomyParams.RunTaxonomy = false
	if results := CheckInputs(action, params); len(results) != 2 || len(Failed(results)) != 0 {
		t.Fatalf("expected two passing checks without taxonomy, got %#v", results)
	}
}

func TestCheckInputsAcceptsRawReads(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "emp-single-end-sequences")
	writeFile(t, filepath.Join(raw, "sequences.fastq.gz"), "reads")
	writeFile(t, filepath.Join(dir, "metadata.tsv"), "sample-id\n")
	action := config.Action{Data: config.Data{
		DataSource:   dir,
		QzaSequences: "seqs.qza",
		Metadata:     "metadata.tsv",
	}}
	params := config.DefaultQiimeParams()
	params.TaxonomyParams.RunTaxonomy = false
	params.DemuxParams.Params.DemuxParams.DemuxSeq = raw

	results := CheckInputs(action, params)
	if !results[0].Passed || !strings.Contains(results[0].Detail, "imported from") {
		t.Fatalf("expected sequences to be satisfied by raw reads, got %#v", results[0])
	}
}

func TestCheckQiime(t *testing.T) {
	info := qiime.Info{Version: "2024.10.1", Plugins: map[string]string{
		"demux":              "2024.10.0",
		"dada2":              "2024.10.0",
		"feature-classifier": "2024.10.0",
	}}

	result := CheckQiime(context.Background(), stubInfo{info: info}, []string{"dada2", "feature_classifier"})
	if !result.Passed {
		t.Fatalf("expected pass, got %#v", result)
	}

	result = CheckQiime(context.Background(), stubInfo{info: info}, []string{"composition", "dada2"})
	if result.Passed || !strings.Contains(result.Detail, "composition") {
		t.Fatalf("expected missing composition plugin, got %#v", result)
	}

	result = CheckQiime(context.Background(), stubInfo{err: errors.New("boom")}, nil)
	if result.Passed || !strings.Contains(result.Detail, "boom") {
		t.Fatalf("expected info failure, got %#v", result)
	}

	if result := CheckQiime(context.Background(), nil, nil); result.Passed {
		t.Fatal("expected nil provider to fail")
	}
}

func TestRunAll(t *testing.T) {
	binDir := t.TempDir()
	qiimeBin := filepath.Join(binDir, "qiime")
	writeFile(t, qiimeBin, "#!/bin/sh\nexit 0\n")
	if err := os.Chmod(qiimeBin, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", binDir)

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Qiime.Binary = qiimeBin
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	action := config.Action{
		RunBasicPipeline: true,
		Data: config.Data{
			DataSource:   base,
			QzaSequences: "seqs.qza",
			Metadata:     "metadata.tsv",
			Classifier:   "classifier.qza",
			OutputDir:    filepath.Join(base, "out"),
		},
	}

	results := RunAll(context.Background(), &cfg, Options{Action: action})
	names := make(map[string]Result, len(results))
	for _, result := range results {
		names[result.Name] = result
	}
	if !names["QIIME 2"].Passed {
		t.Fatalf("expected qiime binary to pass: %#v", names["QIIME 2"])
	}
	if !names["MAFFT"].Passed || !strings.Contains(names["MAFFT"].Detail, "optional") {
		t.Fatalf("expected missing optional MAFFT to pass: %#v", names["MAFFT"])
	}
	if names["Sequences"].Passed {
		t.Fatal("expected missing sequences to fail")
	}
	if len(Failed(results)) != 3 {
		t.Fatalf("expected sequences, metadata and classifier failures, got %#v", Failed(results))
	}

	if _, ok := names["QIIME 2 plugins"]; ok {
		t.Fatal("plugin check should only run with an info provider")
	}

	info := qiime.Info{Version: "2024.10", Plugins: map[string]string{"dada2": "2024.10"}}
	withPlugins := RunAll(context.Background(), &cfg, Options{Action: action, Qiime: stubInfo{info: info}, Plugins: []string{"dada2", "taxa"}})
	var plugins *Result
	for i := range withPlugins {
		if withPlugins[i].Name == "QIIME 2 plugins" {
			plugins = &withPlugins[i]
		}
	}
	if plugins == nil || plugins.Passed || !strings.Contains(plugins.Detail, "taxa") {
		t.Fatalf("expected plugin check to report missing taxa, got %#v", plugins)
	}
}

func TestRunAllSkipsPluginCheckWithoutExecutable(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Qiime.Binary = "qiime"

	calls := 0
	provider := countingInfo{calls: &calls}
	results := RunAll(context.Background(), &cfg, Options{Qiime: provider, Plugins: []string{"dada2"}})
	if calls != 0 {
		t.Fatalf("expected qiime info not to run without the executable, ran %d times", calls)
	}
	for _, result := range results {
		if result.Name == "QIIME 2 plugins" {
			t.Fatalf("unexpected plugin check result %#v", result)
		}
		if result.Name == "QIIME 2" && result.Passed {
			t.Fatal("expected missing qiime executable to fail")
		}
	}
}

type countingInfo struct {
	calls *int
}

func (c countingInfo) Info(context.Context) (qiime.Info, error) {
	*c.calls++
	return qiime.Info{}, nil
}
