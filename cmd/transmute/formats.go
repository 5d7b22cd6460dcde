package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"transmute/internal/formats"
	"transmute/internal/registry"
)

type sourceTargets struct {
	Source  formats.Format   `json:"source"`
	Targets []formats.Format `json:"targets"`
}

func newFormatsCommand(ctx *commandContext) *cobra.Command {
	var (
		sourceFlag string
		matrix     bool
		details    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "formats",
		Short: "List supported conversions",
		Long: "List the direct conversions the loaded codecs provide. Formats reachable\n" +
			"only through a chain are not listed; use `transmute path` to check those.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			reg := eng.Registry()

			switch {
			case details:
				return renderDetails(cmd, reg.FormatDetails(), jsonOutput)
			case matrix:
				return renderMatrix(cmd, reg.Matrix(), jsonOutput)
			}

			var listing []sourceTargets
			if source := formats.Normalize(sourceFlag); source != "" {
				targets := reg.SupportedTargets(source)
				if len(targets) == 0 {
					return fmt.Errorf("no conversions from %q", source)
				}
				listing = append(listing, sourceTargets{Source: source, Targets: targets})
			} else {
				for _, source := range reg.SupportedSources() {
					listing = append(listing, sourceTargets{Source: source, Targets: reg.SupportedTargets(source)})
				}
			}

			if jsonOutput {
				return writeJSON(cmd, listing)
			}
			rows := make([][]string, 0, len(listing))
			for _, entry := range listing {
				rows = append(rows, []string{string(entry.Source), joinFormats(entry.Targets)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Source", "Targets"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceFlag, "source", "", "Only list targets for this source format")
	cmd.Flags().BoolVar(&matrix, "matrix", false, "Show convert-from and convert-to lists per format")
	cmd.Flags().BoolVar(&details, "details", false, "Group formats by category")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.MarkFlagsMutuallyExclusive("matrix", "details", "source")
	return cmd
}

func renderMatrix(cmd *cobra.Command, matrix map[formats.Format]registry.FormatInfo, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(cmd, matrix)
	}
	keys := make([]formats.Format, 0, len(matrix))
	for f := range matrix {
		keys = append(keys, f)
	}
	slices.Sort(keys)
	rows := make([][]string, 0, len(keys))
	for _, f := range keys {
		info := matrix[f]
		rows = append(rows, []string{string(f), joinFormats(info.CanConvertFrom), joinFormats(info.CanConvertTo)})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Format", "From", "To"}, rows, nil))
	return nil
}

func renderDetails(cmd *cobra.Command, details []registry.CategoryDetails, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(cmd, details)
	}
	var rows [][]string
	for _, entry := range details {
		keys := make([]formats.Format, 0, len(entry.Formats))
		for f := range entry.Formats {
			keys = append(keys, f)
		}
		slices.Sort(keys)
		for _, f := range keys {
			info := entry.Formats[f]
			rows = append(rows, []string{entry.Category.Title(), string(f), joinFormats(info.CanConvertFrom), joinFormats(info.CanConvertTo)})
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Category", "Format", "From", "To"}, rows, nil))
	return nil
}

func joinFormats(list []formats.Format) string {
	if len(list) == 0 {
		return "-"
	}
	parts := make([]string, len(list))
	for i, f := range list {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}
