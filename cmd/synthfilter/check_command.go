package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"synthfilter/internal/preflight"
	"synthfilter/internal/services"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run preflight checks for the current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cfg)
			if asJSON {
				if err := writeJSON(cmd, preflightReport(results)); err != nil {
					return err
				}
			} else {
				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)
				for _, line := range renderSectionHeader("Preflight", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprint(stdout, renderPreflight(results, colorize))
			}
			if preflight.Failed(results) {
				return services.Wrap(services.ErrConfiguration, "cli", "check", "preflight checks failed", nil)
			}
			return nil
		},
	}
	jsonFlag(cmd, &asJSON, "Output the check results as JSON")
	return cmd
}
