package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"transmute/internal/logging"
	"transmute/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines     int
		followLog bool
		batchID   string
		taskID    string
		component string
		level     string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the JSON log written by previous runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			filter := logs.Filter{
				BatchID:   strings.TrimSpace(batchID),
				TaskID:    strings.TrimSpace(taskID),
				Component: strings.TrimSpace(component),
			}
			if strings.TrimSpace(level) != "" {
				filter.MinLevel = logging.ParseLevel(level)
			}
			path := filepath.Join(cfg.Paths.LogDir, logging.FileName)

			result, err := logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: -1, Limit: lines})
			if err != nil {
				return err
			}
			printLines(cmd, filter.Apply(result.Lines))
			if !followLog {
				return nil
			}

			offset := result.Offset
			for {
				result, err := logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: offset, Follow: true, Wait: 5 * time.Second})
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				offset = result.Offset
				printLines(cmd, filter.Apply(result.Lines))
			}
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show before filtering")
	cmd.Flags().BoolVarP(&followLog, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().StringVar(&batchID, "batch", "", "Only records for this batch id")
	cmd.Flags().StringVar(&taskID, "task", "", "Only records for this task id")
	cmd.Flags().StringVar(&component, "component", "", "Only records from this component")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug, info, warn, error)")
	return cmd
}

func printLines(cmd *cobra.Command, lines []string) {
	out := cmd.OutOrStdout()
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}
