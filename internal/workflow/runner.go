package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ampliflow/internal/config"
	"ampliflow/internal/fetch"
	"ampliflow/internal/logging"
	"ampliflow/internal/pipeline"
	"ampliflow/internal/preflight"
	"ampliflow/internal/services"
)

// ErrChecksFailed marks a failed installation or environment check.
var ErrChecksFailed = errors.New("preflight checks failed")

// Options wires a Runner.
type Options struct {
	Config     *config.Config
	Qiime      preflight.InfoProvider
	Downloader *fetch.Downloader
	Pipeline   *pipeline.Pipeline
	Logger     *slog.Logger
}

// Runner executes configured actions.
type Runner struct {
	cfg        *config.Config
	qiime      preflight.InfoProvider
	downloader *fetch.Downloader
	pipeline   *pipeline.Pipeline
	logger     *slog.Logger
}

// Report collects what each phase of an action did.
type Report struct {
	Action     string
	Checks     []preflight.Result
	Downloaded []fetch.Target
	Pipeline   *pipeline.Result
}

// NewRunner constructs a Runner. Downloader and Pipeline may be nil when the
// actions run never need them.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Config == nil {
		return nil, errors.New("workflow runner requires config")
	}
	return &Runner{
		cfg:        opts.Config,
		qiime:      opts.Qiime,
		downloader: opts.Downloader,
		pipeline:   opts.Pipeline,
		logger:     logging.NewComponentLogger(opts.Logger, "workflow"),
	}, nil
}

// Execute runs the phases the named action enables.
func (r *Runner) Execute(ctx context.Context, name string) (*Report, error) {
	action, err := r.cfg.Action(name)
	if err != nil {
		return nil, err
	}
	ctx = services.WithAction(ctx, name)
	logger := logging.WithContext(ctx, r.logger)
	report := &Report{Action: name}

	if action.CheckInstallation {
		plugins := pipeline.RequiredPlugins(r.cfg.QiimeParams, action.Data)
		result := preflight.CheckQiime(ctx, r.qiime, plugins)
		report.Checks = append(report.Checks, result)
		if err := evaluateChecks(logger, "check installation", []preflight.Result{result}); err != nil {
			return report, err
		}
	}

	if action.DownloadData {
		targets := fetch.TargetsForAction(action.Data)
		if err := r.download(ctx, logger, targets); err != nil {
			return report, err
		}
		report.Downloaded = targets
	}

	if action.CheckEnvironment {
		results := preflight.RunAll(ctx, r.cfg, preflight.Options{Action: action})
		report.Checks = append(report.Checks, results...)
		if err := evaluateChecks(logger, "check environment", results); err != nil {
			return report, err
		}
	}

	if action.RunBasicPipeline {
		if r.pipeline == nil {
			return report, errors.New("pipeline unavailable")
		}
		result, err := r.pipeline.Run(ctx, name, action)
		report.Pipeline = result
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

// Download fetches the named action's reference data regardless of its
// download_data toggle.
func (r *Runner) Download(ctx context.Context, name string) ([]fetch.Target, error) {
	action, err := r.cfg.Action(name)
	if err != nil {
		return nil, err
	}
	ctx = services.WithAction(ctx, name)
	targets := fetch.TargetsForAction(action.Data)
	if len(targets) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "", "download", fmt.Sprintf("action %s has no download URLs", name), nil)
	}
	return targets, r.download(ctx, logging.WithContext(ctx, r.logger), targets)
}

// Check runs installation and environment checks for the named action
// without failing on the first problem.
func (r *Runner) Check(ctx context.Context, name string) ([]preflight.Result, error) {
	action, err := r.cfg.Action(name)
	if err != nil {
		return nil, err
	}
	ctx = services.WithAction(ctx, name)
	return preflight.RunAll(ctx, r.cfg, preflight.Options{
		Action:  action,
		Qiime:   r.qiime,
		Plugins: pipeline.RequiredPlugins(r.cfg.QiimeParams, action.Data),
	}), nil
}

func (r *Runner) download(ctx context.Context, logger *slog.Logger, targets []fetch.Target) error {
	if r.downloader == nil {
		return errors.New("downloader unavailable")
	}
	logger.Info("downloading reference data",
		logging.String(logging.FieldEventType, "download_start"),
		logging.Int("files", len(targets)),
	)
	if err := r.downloader.Download(ctx, targets); err != nil {
		return err
	}
	if err := fetch.VerifyExists(targets); err != nil {
		return err
	}
	logger.Info("reference data ready",
		logging.String(logging.FieldEventType, "download_complete"),
		logging.Int("files", len(targets)),
	)
	return nil
}

// evaluateChecks logs each result and returns an error describing every failure.
func evaluateChecks(logger *slog.Logger, phase string, results []preflight.Result) error {
	var failures []string
	for _, result := range results {
		if result.Passed {
			logger.Info("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		logger.Error("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "fix the reported issue and rerun the action"),
		)
		failures = append(failures, fmt.Sprintf("%s: %s", result.Name, result.Detail))
	}
	if len(failures) > 0 {
		return services.Wrap(services.ErrValidation, "", phase, strings.Join(failures, "; "), ErrChecksFailed)
	}
	return nil
}
