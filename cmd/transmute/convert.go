package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"transmute/internal/batch"
	"transmute/internal/formats"
	"transmute/internal/services"
)

type convertOutput struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Path       string  `json:"path"`
	Kind       string  `json:"kind"`
	OK         bool    `json:"ok"`
	Error      string  `json:"error,omitempty"`
	ElapsedSec float64 `json:"elapsed_seconds"`
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var (
		fromFlag   string
		toFlag     string
		optionFlag []string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "convert SOURCE TARGET",
		Short: "Convert a single file",
		Long: "Convert SOURCE into TARGET. Formats are inferred from the file extensions\n" +
			"unless --from or --to is given. When no converter handles the pair directly,\n" +
			"the shortest chain of registered conversions is used.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseOptions(optionFlag)
			if err != nil {
				return err
			}
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer ctx.writeMetrics(eng)

			task := batch.Task{
				SourcePath:   args[0],
				TargetPath:   args[1],
				SourceFormat: formats.Normalize(fromFlag),
				TargetFormat: formats.Normalize(toFlag),
				Options:      opts,
			}
			if err := task.Validate(); err != nil {
				return err
			}
			pair := task.Pair()
			resolution, err := eng.Resolve(pair.Source, pair.Target)
			if err != nil {
				return err
			}

			runCtx := services.WithRequestID(cmd.Context(), uuid.NewString())
			started := time.Now()
			result := eng.Convert(runCtx, task.SourcePath, task.TargetPath, pair.Source, pair.Target, task.Options)
			out := convertOutput{
				Source:     task.SourcePath,
				Target:     task.TargetPath,
				Path:       resolution.Path.String(),
				Kind:       string(resolution.Kind),
				OK:         result.OK,
				Error:      result.Err,
				ElapsedSec: time.Since(started).Seconds(),
			}

			if jsonOutput {
				if err := writeJSON(cmd, out); err != nil {
					return err
				}
			} else if result.OK {
				fmt.Fprintf(cmd.OutOrStdout(), "Converted %s -> %s via %s (%s, %s)\n",
					out.Source, out.Target, out.Path, out.Kind, time.Since(started).Round(time.Millisecond))
			}
			if !result.OK {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				return fmt.Errorf("convert %s: %s", pair, result.Message())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&fromFlag, "from", "", "Source format (default: from SOURCE extension)")
	cmd.Flags().StringVar(&toFlag, "to", "", "Target format (default: from TARGET extension)")
	cmd.Flags().StringArrayVarP(&optionFlag, "option", "o", nil, "Converter option key=value (repeatable; prefix with csv_to_json. to scope to one step)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
