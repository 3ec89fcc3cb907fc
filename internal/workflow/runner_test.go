package workflow_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"ampliflow/internal/config"
	"ampliflow/internal/fetch"
	"ampliflow/internal/pipeline"
	"ampliflow/internal/preflight"
	"ampliflow/internal/runs"
	"ampliflow/internal/services"
	"ampliflow/internal/services/qiime"
	"ampliflow/internal/testsupport"
	"ampliflow/internal/workflow"
)

type staticInfo struct {
	info qiime.Info
}

func (s staticInfo) Info(context.Context) (qiime.Info, error) { return s.info, nil }

const servedMetadata = "sample-id\tbarcode-sequence\tsubject\nL1S8\tAGCTGACTAGTC\tsubject-1\n"

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".tsv") {
			_, _ = io.WriteString(w, servedMetadata)
			return
		}
		_, _ = io.WriteString(w, "artifact "+r.URL.Path)
	}))
	t.Cleanup(server.Close)
	return server
}

func newRunner(t *testing.T, cfg *config.Config, info preflight.InfoProvider) (*workflow.Runner, *testsupport.StubQiime) {
	t.Helper()
	stub := &testsupport.StubQiime{}
	client, err := qiime.New("qiime", 0, qiime.WithExecutor(stub))
	if err != nil {
		t.Fatalf("qiime.New: %v", err)
	}
	p, err := pipeline.New(pipeline.Options{
		Config: cfg,
		Qiime:  client,
		Store:  testsupport.MustOpenStore(t, cfg),
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	var provider preflight.InfoProvider = client
	if info != nil {
		provider = info
	}
	runner, err := workflow.NewRunner(workflow.Options{
		Config:     cfg,
		Qiime:      provider,
		Downloader: fetch.New(fetch.WithProgressWriter(io.Discard)),
		Pipeline:   p,
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return runner, stub
}

func withDownloads(server *httptest.Server) testsupport.ConfigOption {
	return testsupport.WithData(func(d *config.Data) {
		d.DataURL = server.URL + "/seqs.qza"
		d.MetadataURL = server.URL + "/metadata.tsv"
		d.ClassifierURL = server.URL + "/classifier.qza"
	})
}

func TestExecuteRunsEveryPhase(t *testing.T) {
	server := newServer(t)
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(), withDownloads(server))
	action := cfg.Actions[testsupport.ActionName]
	action.DownloadData = true
	cfg.Actions[testsupport.ActionName] = action

	runner, stub := newRunner(t, cfg, nil)
	report, err := runner.Execute(context.Background(), testsupport.ActionName)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(report.Downloaded) != 3 {
		t.Fatalf("expected three downloads, got %d", len(report.Downloaded))
	}
	data, err := os.ReadFile(action.Data.MetadataPath)
	if err != nil {
		t.Fatalf("read downloaded metadata: %v", err)
	}
	if string(data) != servedMetadata {
		t.Fatalf("metadata was not replaced by the download: %q", data)
	}
	if report.Pipeline == nil || len(report.Pipeline.Stages) == 0 {
		t.Fatalf("expected pipeline stages in the report, got %#v", report.Pipeline)
	}
	commands := stub.Commands()
	if len(commands) == 0 || commands[0] != "info" {
		t.Fatalf("expected the installation check to query qiime info first, got %v", commands)
	}
}

func TestExecutePipelineOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	runner, _ := newRunner(t, cfg, nil)

	report, err := runner.Execute(context.Background(), testsupport.ActionName)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if report.Pipeline == nil || report.Pipeline.RunID == "" {
		t.Fatalf("expected pipeline result, got %#v", report.Pipeline)
	}
	if len(report.Downloaded) != 0 {
		t.Fatal("download_data is off; nothing should be downloaded")
	}
	for _, check := range report.Checks {
		if !check.Passed {
			t.Fatalf("unexpected failed check: %#v", check)
		}
	}

	store := testsupport.MustOpenStore(t, cfg)
	run, err := store.Get(context.Background(), report.Pipeline.RunID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Status != runs.StatusCompleted {
		t.Fatalf("expected completed run, got %s", run.Status)
	}
}

func TestExecuteStopsOnMissingPlugin(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	info := staticInfo{info: qiime.Info{
		Version: "2024.10.1",
		Plugins: map[string]string{"demux": "2024.10.0", "dada2": "2024.10.0"},
	}}
	runner, _ := newRunner(t, cfg, info)

	report, err := runner.Execute(context.Background(), testsupport.ActionName)
	if !errors.Is(err, workflow.ErrChecksFailed) {
		t.Fatalf("expected ErrChecksFailed, got %v", err)
	}
	if report.Pipeline != nil {
		t.Fatal("pipeline must not run after a failed installation check")
	}
}

func TestDownloadRequiresURLs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner, _ := newRunner(t, cfg, nil)
	_, err := runner.Download(context.Background(), testsupport.ActionName)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestDownloadFetchesTargets(t *testing.T) {
	server := newServer(t)
	cfg := testsupport.NewConfig(t, withDownloads(server))
	runner, _ := newRunner(t, cfg, nil)

	targets, err := runner.Download(context.Background(), testsupport.ActionName)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if len(targets) != 3 {
		t.Fatalf("expected three targets, got %d", len(targets))
	}
	if err := fetch.VerifyExists(targets); err != nil {
		t.Fatalf("VerifyExists: %v", err)
	}
}

func TestCheckReportsWithoutFailing(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(), testsupport.WithData(func(d *config.Data) {
		d.Classifier = "missing-classifier.qza"
	}))
	runner, _ := newRunner(t, cfg, nil)

	results, err := runner.Check(context.Background(), testsupport.ActionName)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	var failed []string
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result.Name)
		}
	}
	if len(failed) != 1 || failed[0] != "Classifier" {
		t.Fatalf("expected only the classifier check to fail, got %v", failed)
	}
	if results[0].Name != "QIIME 2" || !results[0].Passed {
		t.Fatalf("expected qiime executable check first, got %#v", results[0])
	}
	pluginCheck := false
	for _, result := range results {
		if result.Name == "QIIME 2 plugins" {
			pluginCheck = result.Passed
		}
	}
	if !pluginCheck {
		t.Fatalf("expected a passing plugin check, got %#v", results)
	}
}

func TestUnknownAction(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner, _ := newRunner(t, cfg, nil)
	if _, err := runner.Execute(context.Background(), "missing"); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for unknown action, got %v", err)
	}
}
