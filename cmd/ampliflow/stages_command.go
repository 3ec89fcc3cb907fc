package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ampliflow/internal/config"
	"ampliflow/internal/pipeline"
)

func newStagesCommand(ctx *commandContext) *cobra.Command {
	var dot bool

	cmd := &cobra.Command{
		Use:   "stages [action]",
		Short: "Show the pipeline stages an action would run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var data config.Data
			if len(args) > 0 || len(cfg.ActionNames()) == 1 {
				name, err := ctx.resolveAction(args)
				if err != nil {
					return err
				}
				action, _ := cfg.Action(name)
				data = action.Data
			}

			if dot {
				graph, err := pipeline.NewGraph(cfg.QiimeParams, data.CollapseLevel)
				if err != nil {
					return err
				}
				return graph.DOT(cmd.OutOrStdout())
			}

			steps, err := pipeline.Plan(cfg.QiimeParams, data)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(steps))
			for i, step := range steps {
				plugins := strings.Join(pipeline.StagePlugins(step.Name, cfg.QiimeParams, data), ", ")
				rows = append(rows, []string{
					fmt.Sprintf("%d", i+1),
					step.Name,
					step.Describe(),
					strings.Join(step.Dependencies, ", "),
					plugins,
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"#", "Stage", "State", "After", "Plugins"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dot, "dot", false, "Print the stage graph in Graphviz DOT format")
	return cmd
}
