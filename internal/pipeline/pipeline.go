package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"ampliflow/internal/config"
	"ampliflow/internal/fileutil"
	"ampliflow/internal/logging"
	"ampliflow/internal/notifications"
	"ampliflow/internal/runs"
	"ampliflow/internal/services"
	"ampliflow/internal/stageexec"
	"ampliflow/internal/staging"
)

const lockFileName = ".ampliflow.lock"

// ErrOutputDirBusy reports another run holding the output directory lock.
var ErrOutputDirBusy = errors.New("output directory is in use by another run")

// Options wires a Pipeline to its collaborators.
type Options struct {
	Config   *config.Config
	Qiime    Invoker
	Store    *runs.Store
	Notifier notifications.Service
	Logger   *slog.Logger
	// ConfigPath is recorded with each run.
	ConfigPath string
	// NoSave leaves results in the per-run work directory instead of moving
	// them into the output directory.
	NoSave bool
}

// Pipeline runs configured actions.
type Pipeline struct {
	cfg        *config.Config
	qiime      Invoker
	store      *runs.Store
	notifier   notifications.Service
	logger     *slog.Logger
	configPath string
	saveAll    bool
}

// Result summarises a finished run.
type Result struct {
	RunID     string
	Action    string
	OutputDir string
	WorkDir   string
	Stages    []runs.StageRecord
	Outputs   []runs.Output
	Duration  time.Duration
}

// New constructs a pipeline. Config, Qiime and Store are required.
func New(opts Options) (*Pipeline, error) {
	if opts.Config == nil || opts.Qiime == nil || opts.Store == nil {
		return nil, errors.New("pipeline requires config, qiime client, and run store")
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		cfg:        opts.Config,
		qiime:      opts.Qiime,
		store:      opts.Store,
		notifier:   notifier,
		logger:     logger,
		configPath: opts.ConfigPath,
		saveAll:    !opts.NoSave,
	}, nil
}

// Run executes the enabled stages of the named action in order. Results
// produced before a failure are still saved; the stage error is returned.
func (p *Pipeline) Run(ctx context.Context, name string, action config.Action) (*Result, error) {
	steps, err := Plan(p.cfg.QiimeParams, action.Data)
	if err != nil {
		return nil, err
	}
	outputDir := strings.TrimSpace(action.Data.OutputDir)
	if outputDir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "run pipeline", "output_dir is not set", nil)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "create output directory", outputDir, err)
	}

	lock := flock.New(filepath.Join(outputDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire output directory lock: %w", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrValidation, "", "lock output directory", outputDir, ErrOutputDirBusy)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	runID := uuid.NewString()
	ctx = services.WithRunID(services.WithAction(ctx, name), runID)
	base := p.logger
	if runLog, err := logging.OpenRunLog(p.cfg, runID); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, base), "run log unavailable", "run_log_unavailable",
			logging.String(logging.FieldImpact, "this run is only logged to the console"),
			logging.Error(err),
		)
	} else {
		defer runLog.Close()
		base = logging.TeeLogger(base, runLog.Handler)
	}
	base = logging.NewComponentLogger(base, "pipeline")
	logger := logging.WithContext(ctx, base)

	run := &runs.Run{
		ID:         runID,
		Action:     name,
		Status:     runs.StatusRunning,
		OutputDir:  outputDir,
		ConfigPath: p.configPath,
	}
	if err := p.store.Create(ctx, run); err != nil {
		return nil, err
	}

	workDir := staging.RunDir(outputDir, runID)
	state := &runState{
		qiime:   p.qiime,
		params:  p.cfg.QiimeParams,
		data:    action.Data,
		workDir: workDir,
		results: newResults(),
		logger:  base,
	}
	result := &Result{RunID: runID, Action: name, OutputDir: outputDir, WorkDir: workDir}

	enabled := 0
	for _, step := range steps {
		if step.Enabled {
			enabled++
		}
	}
	logger.Info("pipeline started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("stages", enabled),
		logging.String("output_dir", outputDir),
		logging.String("work_dir", workDir),
	)
	p.publish(ctx, logger, notifications.EventRunStarted, notifications.Payload{
		"action":    name,
		"runID":     runID,
		"stages":    enabled,
		"outputDir": outputDir,
	})

	runErr := p.runSteps(ctx, base, runID, steps, state)

	// Bookkeeping outlives cancellation so an interrupted run still saves
	// what it produced and leaves a terminal row.
	finalCtx := context.WithoutCancel(ctx)
	saveErr := p.save(finalCtx, logger, run, state, result)
	if runErr == nil && saveErr != nil {
		runErr = saveErr
	}

	if runErr != nil {
		details := services.Details(runErr)
		run.SetFailed(services.FailureStatus(runErr), details.Message)
	} else {
		run.SetCompleted()
	}
	if err := p.store.Update(finalCtx, run); err != nil {
		logger.Error("failed to persist run result", logging.Error(err))
	}
	result.Duration = run.Duration()
	if stages, err := p.store.Stages(finalCtx, runID); err == nil {
		result.Stages = stages
	}

	if runErr != nil {
		logger.Error("pipeline failed",
			logging.String(logging.FieldEventType, "run_failure"),
			logging.String("resolved_status", string(run.Status)),
			logging.Int("outputs", len(result.Outputs)),
			logging.Error(runErr),
		)
		return result, runErr
	}

	logger.Info("pipeline completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Duration("run_duration", result.Duration),
		logging.Int("outputs", len(result.Outputs)),
	)
	p.publish(ctx, logger, notifications.EventRunCompleted, notifications.Payload{
		"action":    name,
		"runID":     runID,
		"stages":    enabled,
		"duration":  result.Duration,
		"outputs":   len(result.Outputs),
		"outputDir": outputDir,
	})
	return result, nil
}

// runSteps walks the plan. logger carries no context fields; stageexec
// derives them from ctx.
func (p *Pipeline) runSteps(ctx context.Context, logger *slog.Logger, runID string, steps []Step, state *runState) error {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		reason := step.Reason
		if step.Enabled {
			reason = state.skipReason(step.Name)
		}
		if reason != "" {
			if err := stageexec.Skip(ctx, p.store, logger, runID, step.Name, reason); err != nil {
				return err
			}
			continue
		}

		fn := stageFuncs[step.Name]
		stageLogger := logging.ForStage(logger, p.cfg.Logging.StageOverrides, step.Name)
		err := stageexec.Run(ctx, stageexec.Options{
			Logger:    stageLogger,
			Store:     p.store,
			Notifier:  p.notifier,
			StageName: step.Name,
			RunID:     runID,
			Handler: stageexec.HandlerFunc(func(stageCtx context.Context) error {
				prev := state.logger
				state.logger = stageLogger
				defer func() { state.logger = prev }()
				return fn(stageCtx, state)
			}),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// save moves every produced entity into the output directory as
// <name>.qza/.qzv and records it. With NoSave the entities are recorded
// where they are.
func (p *Pipeline) save(ctx context.Context, logger *slog.Logger, run *runs.Run, state *runState, result *Result) error {
	for _, entity := range state.results.Entities() {
		path := entity.Path
		if p.saveAll {
			path = filepath.Join(run.OutputDir, entity.Name+entity.Kind.Ext())
			if err := fileutil.MoveFile(entity.Path, path); err != nil {
				return services.Wrap(services.ErrTransient, "", "save results", "move "+entity.Name, err)
			}
		}
		var size int64
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
		output := runs.Output{
			RunID: run.ID,
			Stage: state.results.Stage(entity.Name),
			Name:  entity.Name,
			Kind:  string(entity.Kind),
			Path:  path,
			Size:  size,
		}
		if err := p.store.RecordOutput(ctx, output); err != nil {
			return err
		}
		result.Outputs = append(result.Outputs, output)
		logger.Debug("result saved",
			logging.String("result", entity.Name),
			logging.String("result_path", path),
			logging.Int64("size_bytes", size),
		)
	}
	if p.saveAll {
		if err := os.RemoveAll(state.workDir); err != nil {
			logger.Warn("failed to remove work directory",
				logging.String("work_dir", state.workDir),
				logging.String(logging.FieldImpact, "intermediate files remain on disk"),
				logging.Error(err),
			)
		}
		_ = os.Remove(staging.WorkRoot(run.OutputDir))
	}
	return nil
}

func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if err := p.notifier.Publish(ctx, event, payload); err != nil {
		logger.Warn("notification failed",
			logging.String("event", string(event)),
			logging.String(logging.FieldImpact, "run continues without push notification"),
			logging.Error(err),
		)
	}
}
