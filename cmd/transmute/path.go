package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"transmute/internal/formats"
)

type pathOutput struct {
	Source string           `json:"source"`
	Target string           `json:"target"`
	Kind   string           `json:"kind"`
	Hops   int              `json:"hops"`
	Path   []formats.Format `json:"path"`
}

func newPathCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "path FROM TO",
		Short: "Show how one format would be converted into another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			pair := formats.NewPair(args[0], args[1])
			resolution, err := eng.Resolve(pair.Source, pair.Target)
			if err != nil {
				return err
			}
			out := pathOutput{
				Source: string(pair.Source),
				Target: string(pair.Target),
				Kind:   string(resolution.Kind),
				Hops:   resolution.Path.Hops(),
				Path:   resolution.Path,
			}
			if jsonOutput {
				return writeJSON(cmd, out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %d %s)\n", resolution.Path, out.Kind, out.Hops, plural(out.Hops, "hop", "hops"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
