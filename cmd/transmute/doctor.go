package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"transmute/internal/deps"
	"transmute/internal/preflight"
)

type doctorOutput struct {
	Checks       []preflight.Result `json:"checks"`
	Dependencies []deps.Status      `json:"dependencies"`
	Codecs       []preflight.Result `json:"codecs"`
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, external tools, and codec availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if _, err := ctx.ensureEngine(cmd.Context()); err != nil {
				return err
			}

			out := doctorOutput{
				Checks:       preflight.RunAll(cmd.Context(), cfg),
				Dependencies: preflight.CheckSystemDeps(cfg),
				Codecs:       preflight.CodecResults(ctx.report),
			}
			failed := preflight.Failed(out.Checks)

			if jsonOutput {
				if err := writeJSON(cmd, out); err != nil {
					return err
				}
			} else {
				w := cmd.OutOrStdout()
				rows := make([][]string, 0, len(out.Checks)+len(out.Codecs))
				for _, result := range slices.Concat(out.Checks, out.Codecs) {
					rows = append(rows, []string{result.Name, passLabel(result.Passed), result.Detail})
				}
				fmt.Fprintln(w, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))

				depRows := make([][]string, 0, len(out.Dependencies))
				for _, status := range out.Dependencies {
					detail := status.Detail
					if detail == "" {
						detail = status.Description
					}
					depRows = append(depRows, []string{status.Name, status.Command, yesNo(status.Available), strings.Join(status.Codecs, ", "), detail})
				}
				if len(depRows) > 0 {
					fmt.Fprintln(w, renderTable([]string{"Tool", "Command", "Available", "Codecs", "Detail"}, depRows, nil))
				}
			}

			if len(failed) > 0 {
				return fmt.Errorf("%d preflight %s failed", len(failed), plural(len(failed), "check", "checks"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func passLabel(passed bool) string {
	if passed {
		return "ok"
	}
	return "FAIL"
}
