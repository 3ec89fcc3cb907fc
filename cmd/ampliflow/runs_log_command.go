package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ampliflow/internal/logs"
	"ampliflow/internal/runs"
)

func newRunsLogCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "log <run-id>",
		Short: "Print the log of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *runs.Store) error {
				run, err := findRun(cmd, store, args[0])
				if err != nil {
					return err
				}
				path := logs.RunLogPath(cfg.Paths.LogDir, run.ID)
				tail, offset, err := logs.Last(path, lines)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, line := range tail {
					fmt.Fprintln(out, line)
				}
				if !follow || run.Status.Terminal() {
					return nil
				}

				finished := func() bool {
					current, err := store.Get(cmd.Context(), run.ID)
					return err != nil || current.Status.Terminal()
				}
				_, err = logs.Follow(cmd.Context(), path, offset, logs.DefaultPollInterval, func(line string) {
					fmt.Fprintln(out, line)
				}, throttle(finished, time.Second))
				return err
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 200, "Trailing lines to print")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until the run finishes")
	return cmd
}

// throttle caches the result of check for interval so a fast poll loop does
// not query the run store on every tick.
func throttle(check func() bool, interval time.Duration) func() bool {
	var last time.Time
	var value bool
	return func() bool {
		if value {
			return true
		}
		if time.Since(last) >= interval {
			value = check()
			last = time.Now()
		}
		return value
	}
}
