package stageexec

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ampliflow/internal/logging"
	"ampliflow/internal/notifications"
	"ampliflow/internal/runs"
	"ampliflow/internal/services"
)

// Handler is the stage contract used by the execution helper.
type Handler interface {
	Execute(context.Context) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(context.Context) error

// Execute calls f.
func (f HandlerFunc) Execute(ctx context.Context) error { return f(ctx) }

// Recorder persists stage transitions. *runs.Store satisfies it.
type Recorder interface {
	RecordStage(ctx context.Context, record runs.StageRecord) error
}

// Options controls stage execution and run history persistence.
type Options struct {
	Logger    *slog.Logger
	Store     Recorder
	Notifier  notifications.Service
	Handler   Handler
	StageName string
	RunID     string
}

// Run executes a stage, recording running/completed/failed stage rows.
// The handler error is returned unchanged.
func Run(ctx context.Context, opts Options) error {
	if opts.Handler == nil {
		return fmt.Errorf("stage handler unavailable: %s", opts.StageName)
	}
	if opts.Store == nil {
		return fmt.Errorf("run store is required")
	}
	if strings.TrimSpace(opts.RunID) == "" {
		return fmt.Errorf("run id is required")
	}

	stageCtx := services.WithStage(ctx, opts.StageName)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)

	started := time.Now().UTC()
	record := runs.StageRecord{
		RunID:     opts.RunID,
		Stage:     opts.StageName,
		Status:    runs.StatusRunning,
		StartedAt: started,
	}
	stageLogger.Info(
		StageLabel(opts.StageName)+" started",
		logging.String(logging.FieldEventType, "stage_start"),
	)
	if err := opts.Store.RecordStage(stageCtx, record); err != nil {
		return fmt.Errorf("persist stage start: %w", err)
	}

	if err := opts.Handler.Execute(stageCtx); err != nil {
		return handleFailure(stageCtx, stageLogger, opts, record, err)
	}

	finished := time.Now().UTC()
	record.Status = runs.StatusCompleted
	record.FinishedAt = &finished
	if err := opts.Store.RecordStage(stageCtx, record); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}

	stageLogger.Info(
		StageLabel(opts.StageName)+" completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", finished.Sub(started)),
	)
	return nil
}

// Skip records a stage that the configuration disabled.
func Skip(ctx context.Context, store Recorder, logger *slog.Logger, runID, stageName, reason string) error {
	stageCtx := services.WithStage(ctx, stageName)
	now := time.Now().UTC()
	logging.WithContext(stageCtx, logger).Debug(
		StageLabel(stageName)+" skipped",
		logging.String(logging.FieldEventType, "stage_skipped"),
		logging.String("reason", reason),
	)
	return store.RecordStage(stageCtx, runs.StageRecord{
		RunID:        runID,
		Stage:        stageName,
		Status:       runs.StatusSkipped,
		ErrorMessage: reason,
		StartedAt:    now,
		FinishedAt:   &now,
	})
}

func handleFailure(ctx context.Context, logger *slog.Logger, opts Options, record runs.StageRecord, stageErr error) error {
	details := services.Details(stageErr)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = strings.TrimSpace(stageErr.Error())
	}
	finished := time.Now().UTC()
	record.Status = services.FailureStatus(stageErr)
	record.ErrorMessage = message
	record.FinishedAt = &finished
	// A cancelled stage still gets its failure row and notification.
	ctx = context.WithoutCancel(ctx)

	logger.Error(
		StageLabel(opts.StageName)+" failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String(logging.FieldErrorKind, details.Kind),
		logging.String("resolved_status", string(record.Status)),
		logging.String("error_message", message),
		logging.Error(stageErr),
	)
	if err := opts.Store.RecordStage(ctx, record); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}

	if opts.Notifier != nil {
		contextLabel := fmt.Sprintf("%s (run %s)", opts.StageName, shortID(opts.RunID))
		if err := opts.Notifier.Publish(ctx, notifications.EventError, notifications.Payload{
			"error":   stageErr,
			"context": contextLabel,
		}); err != nil {
			logger.Debug("stage error notification failed", logging.Error(err))
		}
	}

	return stageErr
}

var titler = cases.Title(language.English)

// StageLabel converts a stage name such as "alpha_rarefaction" into
// "Alpha Rarefaction".
func StageLabel(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	if name == "" {
		return "Stage"
	}
	return titler.String(name)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
