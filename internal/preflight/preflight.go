package preflight

import (
	"context"
	"fmt"

	"ampliflow/internal/config"
	"ampliflow/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Options selects the checks RunAll performs for one action.
type Options struct {
	Action config.Action
	// Qiime enables the plugin check for Plugins. It is skipped when the
	// qiime executable itself is missing.
	Qiime   InfoProvider
	Plugins []string
}

// RunAll executes the preflight checks for an action: executables, qiime
// plugins, directories, and input files.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	statuses := CheckSystemDeps(cfg)
	for _, status := range statuses {
		results = append(results, fromDependency(status))
	}
	if opts.Qiime != nil && len(deps.MissingRequired(statuses)) == 0 {
		results = append(results, CheckQiime(ctx, opts.Qiime, opts.Plugins))
	}

	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	if opts.Action.Data.DataSource != "" {
		results = append(results, CheckWritableTarget("Data source", opts.Action.Data.DataSource))
	}
	if opts.Action.Data.OutputDir != "" {
		results = append(results, CheckWritableTarget("Output directory", opts.Action.Data.OutputDir))
	}
	if cfg.Qiime.TmpDir != "" {
		results = append(results, CheckDirectoryAccess("QIIME temp directory", cfg.Qiime.TmpDir))
	}
	if opts.Action.RunBasicPipeline {
		results = append(results, CheckInputs(opts.Action, cfg.QiimeParams)...)
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}

func fromDependency(status deps.Status) Result {
	result := Result{Name: status.Name, Passed: status.Available}
	switch {
	case status.Available:
		result.Detail = status.Path
	case status.Optional:
		// Optional tools never fail the check.
		result.Passed = true
		result.Detail = fmt.Sprintf("%s (optional)", status.Detail)
	default:
		result.Detail = status.Detail
	}
	return result
}
