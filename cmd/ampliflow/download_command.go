package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ampliflow/internal/fetch"
	"ampliflow/internal/workflow"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "download [action]",
		Short: "Download an action's reference data",
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
			runner, err := workflow.NewRunner(workflow.Options{
				Config: cfg,
				Downloader: fetch.New(
					fetch.WithLogger(logger),
					fetch.WithProgressWriter(cmd.ErrOrStderr()),
					fetch.WithSkipExisting(!force),
				),
				Logger: logger,
			})
			if err != nil {
				return err
			}
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			targets, err := runner.Download(signalCtx, name)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(targets))
			for _, target := range targets {
				rows = append(rows, []string{target.Name, fileSize(target.Path), target.Path})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"File", "Size", "Path"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Download even when the files already exist")
	return cmd
}

func fileSize(path string) string {
	size, ok := statSize(path)
	if !ok {
		return "-"
	}
	return humanize.IBytes(uint64(size))
}
