package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ampliflow/internal/preflight"
	"ampliflow/internal/workflow"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check [action]",
		Short: "Check the QIIME 2 installation and the action's inputs",
		Args:  cobra.MaximumNArgs(1),
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
			runner, err := workflow.NewRunner(workflow.Options{Config: cfg, Qiime: client, Logger: logger})
			if err != nil {
				return err
			}
			results, err := runner.Check(cmd.Context(), name)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), checkTable(results))
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed: %w", len(failed), len(results), workflow.ErrChecksFailed)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All checks passed")
			return nil
		},
	}
}

func checkTable(results []preflight.Result) string {
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		status := "ok"
		if !result.Passed {
			status = "FAIL"
		}
		rows = append(rows, []string{result.Name, status, result.Detail})
	}
	spec := tableSpec{
		headers: []string{"Check", "Status", "Detail"},
		aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft},
		wrap:    []int{2},
	}
	return spec.render(rows)
}
