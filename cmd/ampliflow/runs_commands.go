package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ampliflow/internal/config"
	"ampliflow/internal/logging"
	"ampliflow/internal/runs"
	"ampliflow/internal/staging"
)

// actionOutputDirs returns the distinct output directories of configured
// actions.
func actionOutputDirs(cfg *config.Config) []string {
	seen := make(map[string]struct{})
	var dirs []string
	for _, name := range cfg.ActionNames() {
		dir := strings.TrimSpace(cfg.Actions[name].Data.OutputDir)
		if dir == "" {
			continue
		}
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}
	return dirs
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect and prune run history",
	}

	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	runsCmd.AddCommand(newRunsLogCommand(ctx))
	runsCmd.AddCommand(newRunsPruneCommand(ctx))

	return runsCmd
}

type runView struct {
	ID         string     `json:"id"`
	Action     string     `json:"action"`
	Status     string     `json:"status"`
	OutputDir  string     `json:"output_dir"`
	ConfigPath string     `json:"config_path,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Duration   string     `json:"duration"`
}

type stageView struct {
	Stage      string     `json:"stage"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type outputView struct {
	Stage string `json:"stage"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Path  string `json:"path"`
	Size  int64  `json:"size"`
}

type runDetail struct {
	runView
	Stages  []stageView  `json:"stages"`
	Outputs []outputView `json:"outputs"`
}

func toRunView(run *runs.Run) runView {
	return runView{
		ID:         run.ID,
		Action:     run.Action,
		Status:     string(run.Status),
		OutputDir:  run.OutputDir,
		ConfigPath: run.ConfigPath,
		Error:      run.ErrorMessage,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Duration:   run.Duration().Round(time.Second).String(),
	}
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *runs.Store) error {
				list, err := store.List(cmd.Context(), limit, statuses...)
				if err != nil {
					return err
				}
				if jsonOut {
					views := make([]runView, 0, len(list))
					for _, run := range list {
						views = append(views, toRunView(run))
					}
					return writeJSON(cmd, views)
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, run := range list {
					rows = append(rows, []string{
						shortID(run.ID),
						run.Action,
						string(run.Status),
						humanize.Time(run.StartedAt),
						run.Duration().Round(time.Second).String(),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Action", "Status", "Started", "Duration"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				summary, err := store.Summarize(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d runs recorded: %d completed, %d failed, %d invalid, %d running\n",
					summary.Total, summary.Completed, summary.Failed, summary.Invalid, summary.Running)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func parseStatuses(values []string) ([]runs.Status, error) {
	statuses := make([]runs.Status, 0, len(values))
	for _, value := range values {
		status, ok := runs.ParseStatus(value)
		if !ok {
			valid := make([]string, 0, len(runs.AllStatuses()))
			for _, s := range runs.AllStatuses() {
				valid = append(valid, string(s))
			}
			return nil, fmt.Errorf("unknown status %q (valid: %s)", value, strings.Join(valid, ", "))
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show stages and outputs of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *runs.Store) error {
				run, err := findRun(cmd, store, args[0])
				if err != nil {
					return err
				}
				stages, err := store.Stages(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				outputs, err := store.Outputs(cmd.Context(), run.ID)
				if err != nil {
					return err
				}

				if jsonOut {
					detail := runDetail{
						runView: toRunView(run),
						Stages:  make([]stageView, 0, len(stages)),
						Outputs: make([]outputView, 0, len(outputs)),
					}
					for _, stage := range stages {
						detail.Stages = append(detail.Stages, stageView{
							Stage:      stage.Stage,
							Status:     string(stage.Status),
							Error:      stage.ErrorMessage,
							StartedAt:  stage.StartedAt,
							FinishedAt: stage.FinishedAt,
						})
					}
					for _, output := range outputs {
						detail.Outputs = append(detail.Outputs, outputView{
							Stage: output.Stage,
							Name:  output.Name,
							Kind:  output.Kind,
							Path:  output.Path,
							Size:  output.Size,
						})
					}
					return writeJSON(cmd, detail)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run:      %s\n", run.ID)
				fmt.Fprintf(out, "Action:   %s\n", run.Action)
				fmt.Fprintf(out, "Status:   %s\n", run.Status)
				fmt.Fprintf(out, "Output:   %s\n", run.OutputDir)
				fmt.Fprintf(out, "Started:  %s\n", formatTime(run.StartedAt))
				fmt.Fprintf(out, "Duration: %s\n", run.Duration().Round(time.Second))
				if run.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:    %s\n", run.ErrorMessage)
				}

				if len(stages) > 0 {
					rows := make([][]string, 0, len(stages))
					for _, stage := range stages {
						rows = append(rows, []string{stage.Stage, string(stage.Status), stageDuration(stage), stage.ErrorMessage})
					}
					spec := tableSpec{
						title:   "Stages",
						headers: []string{"Stage", "Status", "Duration", "Detail"},
						aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
						wrap:    []int{3},
					}
					fmt.Fprint(out, spec.render(rows))
				}
				if len(outputs) > 0 {
					spec := tableSpec{
						title:   "Outputs",
						headers: []string{"Stage", "Name", "Kind", "Size", "File"},
						aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
					}
					fmt.Fprint(out, spec.render(outputRows(outputs)))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

// findRun resolves a full run ID or a unique prefix of one.
func findRun(cmd *cobra.Command, store *runs.Store, id string) (*runs.Run, error) {
	id = strings.TrimSpace(id)
	run, err := store.Get(cmd.Context(), id)
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, runs.ErrRunNotFound) {
		return nil, err
	}
	all, err := store.List(cmd.Context(), 0)
	if err != nil {
		return nil, err
	}
	var match *runs.Run
	for _, candidate := range all {
		if !strings.HasPrefix(candidate.ID, id) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("run prefix %q is ambiguous", id)
		}
		match = candidate
	}
	if match == nil {
		return nil, fmt.Errorf("run %s: %w", id, runs.ErrRunNotFound)
	}
	return match, nil
}

func newRunsPruneCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished runs and their logs older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return errors.New("--older-than must be >= 0")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			cutoff := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
			return ctx.withStore(func(store *runs.Store) error {
				removed, err := store.Prune(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				remaining, err := store.List(cmd.Context(), 0)
				if err != nil {
					return err
				}
				keepRuns := make(map[string]struct{}, len(remaining))
				keepLogs := make([]string, 0, len(remaining))
				for _, run := range remaining {
					keepRuns[run.ID] = struct{}{}
					if !run.Status.Terminal() {
						keepLogs = append(keepLogs, run.ID+".log")
					}
				}
				logs := logging.PruneRunLogs(logger, cfg.Paths.LogDir, cutoff, keepLogs...)

				var workDirs int
				var freed int64
				for _, dir := range actionOutputDirs(cfg) {
					cleaned := staging.CleanOrphaned(cmd.Context(), dir, keepRuns, logger)
					workDirs += len(cleaned.Removed)
					freed += cleaned.Freed()
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Pruned %d runs and %d log files older than %s\n", removed, logs, humanize.Time(cutoff))
				if workDirs > 0 {
					fmt.Fprintf(out, "Removed %d orphaned work directories (%s)\n", workDirs, humanize.IBytes(uint64(freed)))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&days, "older-than", 30, "Age in days of runs to delete")
	return cmd
}
