package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"ampliflow/internal/config"
	"ampliflow/internal/deps"
	"ampliflow/internal/services/qiime"
)

// InfoProvider reports the installed QIIME 2 release and plugins.
type InfoProvider interface {
	Info(ctx context.Context) (qiime.Info, error)
}

// CheckQiime runs `qiime info` and confirms the named plugins are installed.
func CheckQiime(ctx context.Context, provider InfoProvider, plugins []string) Result {
	const name = "QIIME 2 plugins"
	if provider == nil {
		return Result{Name: name, Detail: "qiime client unavailable"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	info, err := provider.Info(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("qiime info failed (%v)", err)}
	}
	version := info.Version
	if version == "" {
		version = info.Release
	}
	if missing := info.MissingPlugins(plugins...); len(missing) > 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (missing plugins: %s)", version, strings.Join(missing, ", "))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d plugins)", version, len(info.Plugins))}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckWritableTarget verifies a directory that may not exist yet can be
// created: the nearest existing ancestor must be writable.
func CheckWritableTarget(name, path string) Result {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if _, err := os.Stat(path); err == nil {
		return CheckDirectoryAccess(name, path)
	}
	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
				return Result{Name: name, Detail: fmt.Sprintf("%s (error: parent %s not writable)", path, dir)}
			}
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
		}
		if parent := filepath.Dir(dir); parent == dir {
			break
		}
	}
	return Result{Name: name, Detail: fmt.Sprintf("%s (error: no existing parent)", path)}
}

// CheckFile verifies a readable, non-empty regular file.
func CheckFile(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a regular file)", path)}
	}
	if info.Size() == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: empty)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckInputs verifies the files a pipeline action reads. The sequences
// artifact may instead be produced by importing raw reads when
// demux_params.demux_seq names an existing directory.
func CheckInputs(action config.Action, params config.QiimeParams) []Result {
	data := action.Data
	results := make([]Result, 0, 3)

	sequences := CheckFile("Sequences", data.SequencesPath())
	if !sequences.Passed {
		if raw := strings.TrimSpace(params.DemuxParams.Params.DemuxParams.DemuxSeq); raw != "" {
			if dirCheck := checkReadableDir("Raw reads", raw); dirCheck.Passed {
				sequences = Result{Name: "Sequences", Passed: true, Detail: fmt.Sprintf("%s (imported from %s)", data.SequencesPath(), raw)}
			}
		}
	}
	results = append(results, sequences)
	results = append(results, CheckFile("Sample metadata", data.SampleMetadataPath()))
	if params.TaxonomyParams.RunTaxonomy {
		results = append(results, CheckFile("Classifier", data.ClassifierArtifactPath()))
	}
	return results
}

func checkReadableDir(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckSystemDeps evaluates the executables a run needs. MAFFT and FastTree
// ship inside the QIIME 2 environment and are only needed for phylogeny.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "QIIME 2",
			Command:     cfg.QiimeBinary(),
			Description: "Required for every pipeline stage",
		},
	}
	if cfg.QiimeParams.PhylogenyParams.RunPhylogeny {
		requirements = append(requirements,
			deps.Requirement{
				Name:        "MAFFT",
				Command:     "mafft",
				Description: "Used by phylogeny align-to-tree-mafft-fasttree",
				Optional:    true,
			},
			deps.Requirement{
				Name:        "FastTree",
				Command:     "FastTree",
				Description: "Used by phylogeny align-to-tree-mafft-fasttree",
				Optional:    true,
			},
		)
	}
	return deps.CheckBinaries(requirements)
}
