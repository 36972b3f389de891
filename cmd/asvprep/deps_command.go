package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"asvprep/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external tools and directory access",
		Args:  noPositionalArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			results := preflight.RunAll(cfg)
			rows := make([][]string, 0, len(results))
			for _, result := range results {
				rows = append(rows, []string{
					result.Name,
					markPassed(result.Passed, colorize),
					result.Detail,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Check", "OK", "Detail"},
				rows,
				nil,
			))

			if !preflight.Passed(results) {
				var failed []string
				for _, result := range results {
					if !result.Passed {
						failed = append(failed, result.Name)
					}
				}
				return fmt.Errorf("preflight failed: %s", strings.Join(failed, ", "))
			}
			return nil
		},
	}
}
