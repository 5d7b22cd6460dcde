package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"transmute/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "Show recorded batch runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return errors.New("run history is disabled ([history] enabled = false)")
			}
			store, err := history.Open(cfg.Paths.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				run, err := store.Run(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, run)
				}
				renderRun(cmd, run)
				return nil
			}

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				if runs == nil {
					runs = []history.Run{}
				}
				return writeJSON(cmd, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					run.StartedAt.Local().Format(time.DateTime),
					run.TargetFormat,
					strconv.Itoa(run.Total),
					strconv.Itoa(run.Completed),
					strconv.Itoa(run.Failed),
					formatDuration(run.Duration()),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Started", "Target", "Total", "Done", "Failed", "Time"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderRun(cmd *cobra.Command, run *history.Run) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s\n", run.ID)
	fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Target:   %s\n", run.TargetFormat)
	if run.OutputDir != "" {
		fmt.Fprintf(w, "Output:   %s\n", run.OutputDir)
	}
	fmt.Fprintf(w, "Workers:  %d\n", run.Workers)
	fmt.Fprintf(w, "Result:   %d of %d completed, %d failed in %s\n",
		run.Completed, run.Total, run.Failed, formatDuration(run.Duration()))

	rows := make([][]string, 0, len(run.Tasks))
	for _, task := range run.Tasks {
		rows = append(rows, []string{task.SourcePath, task.TargetPath, string(task.Status), formatDuration(task.Duration), task.Error})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Source", "Target", "Status", "Time", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
}
