package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"ampliflow/internal/config"
)

// ActionName is the action every generated test config carries.
const ActionName = "test-pipeline"

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The action's sequences, metadata and classifier files exist on disk.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Logging.Level = "debug"

	source := filepath.Join(base, "data")
	cfgVal.Actions = map[string]config.Action{
		ActionName: {
			CheckInstallation: true,
			CheckEnvironment:  true,
			RunBasicPipeline:  true,
			Data: config.Data{
				DataSource:     source,
				DataPath:       filepath.Join(source, "seqs.qza"),
				MetadataPath:   filepath.Join(source, "metadata.tsv"),
				ClassifierPath: filepath.Join(source, "classifier.qza"),
				QzaSequences:   "seqs.qza",
				Metadata:       "metadata.tsv",
				Classifier:     "classifier.qza",
				OutputDir:      filepath.Join(base, "output"),
				BarcodeColumn:  "barcode-sequence",
				GroupingField:  "subject",
			},
		},
	}
	WriteFile(t, filepath.Join(source, "seqs.qza"), 64)
	WriteMetadata(t, filepath.Join(source, "metadata.tsv"), "barcode-sequence", "subject")
	WriteFile(t, filepath.Join(source, "classifier.qza"), 64)

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	return builder.cfg
}

// WithParams edits the stage parameters of the test config.
func WithParams(mutate func(*config.QiimeParams)) ConfigOption {
	return func(b *configBuilder) {
		mutate(&b.cfg.QiimeParams)
	}
}

// WithData edits the data section of the test action.
func WithData(mutate func(*config.Data)) ConfigOption {
	return func(b *configBuilder) {
		action := b.cfg.Actions[ActionName]
		mutate(&action.Data)
		b.cfg.Actions[ActionName] = action
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, qiime is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"qiime"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

// Action returns the generated test action.
func Action(t testing.TB, cfg *config.Config) config.Action {
	t.Helper()
	action, err := cfg.Action(ActionName)
	if err != nil {
		t.Fatalf("test action: %v", err)
	}
	return action
}
