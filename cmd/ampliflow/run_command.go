package main

import (
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ampliflow/internal/fetch"
	"ampliflow/internal/notifications"
	"ampliflow/internal/pipeline"
	"ampliflow/internal/preflight"
	"ampliflow/internal/runs"
	"ampliflow/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var noSave bool
	var redownload bool

	cmd := &cobra.Command{
		Use:   "run [action]",
		Short: "Execute the phases of a configured action",
		Long: "Run checks the QIIME 2 installation, downloads reference data, checks the\n" +
			"environment, and runs the analysis pipeline, as enabled for the action.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := ctx.resolveAction(args)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			client, err := ctx.qiimeClient(logger)
			if err != nil {
				return err
			}

			return ctx.withStore(func(store *runs.Store) error {
				p, err := pipeline.New(pipeline.Options{
					Config:     cfg,
					Qiime:      client,
					Store:      store,
					Notifier:   notifications.NewService(cfg),
					Logger:     logger,
					ConfigPath: ctx.configPath,
					NoSave:     noSave,
				})
				if err != nil {
					return err
				}
				runner, err := workflow.NewRunner(workflow.Options{
					Config: cfg,
					Qiime:  client,
					Downloader: fetch.New(
						fetch.WithLogger(logger),
						fetch.WithProgressWriter(cmd.ErrOrStderr()),
						fetch.WithSkipExisting(!redownload),
					),
					Pipeline: p,
					Logger:   logger,
				})
				if err != nil {
					return err
				}

				signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer cancel()

				report, runErr := runner.Execute(signalCtx, name)
				if report != nil {
					printReport(cmd.OutOrStdout(), report)
				}
				return runErr
			})
		},
	}

	cmd.Flags().BoolVar(&noSave, "no-save", false, "Leave results in the run work directory instead of the output directory")
	cmd.Flags().BoolVar(&redownload, "redownload", false, "Download reference data even when the files already exist")
	return cmd
}

func printReport(out io.Writer, report *workflow.Report) {
	if failed := preflight.Failed(report.Checks); len(failed) > 0 {
		fmt.Fprint(out, checkTable(failed))
	}
	if len(report.Downloaded) > 0 {
		fmt.Fprintf(out, "Reference data ready (%d files)\n", len(report.Downloaded))
	}
	result := report.Pipeline
	if result == nil {
		return
	}

	rows := make([][]string, 0, len(result.Stages))
	for _, stage := range result.Stages {
		rows = append(rows, []string{stage.Stage, string(stage.Status), stageDuration(stage), stage.ErrorMessage})
	}
	if len(rows) > 0 {
		spec := tableSpec{
			title:   "Run " + result.RunID,
			headers: []string{"Stage", "Status", "Duration", "Detail"},
			aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			wrap:    []int{3},
		}
		fmt.Fprint(out, spec.render(rows))
	}

	if len(result.Outputs) > 0 {
		var total int64
		for _, output := range result.Outputs {
			total += output.Size
		}
		fmt.Fprintf(out, "Saved %d results (%s) to %s\n", len(result.Outputs), humanize.IBytes(uint64(total)), result.OutputDir)
	} else if result.WorkDir != "" {
		fmt.Fprintf(out, "Results left in %s\n", result.WorkDir)
	}
	fmt.Fprintf(out, "Finished in %s\n", result.Duration.Round(time.Second))
}

func stageDuration(stage runs.StageRecord) string {
	if stage.FinishedAt == nil || stage.StartedAt.IsZero() {
		return "-"
	}
	return stage.FinishedAt.Sub(stage.StartedAt).Round(time.Millisecond).String()
}

func outputRows(outputs []runs.Output) [][]string {
	rows := make([][]string, 0, len(outputs))
	for _, output := range outputs {
		rows = append(rows, []string{output.Stage, output.Name, output.Kind, humanize.IBytes(uint64(output.Size)), filepath.Base(output.Path)})
	}
	return rows
}
