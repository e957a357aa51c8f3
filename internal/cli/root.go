// Package cli builds the notifier command tree: a long-running service mode
// and a one-shot job runner for cron-style deployments.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand assembles the root command with its subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "notifier",
		Short: "Password expiry notification service",
		Long: `notifier watches directory accounts for approaching password expiry and
delivers templated warning mail on the cadence each notification profile
defines.

Run "notifier serve" for the full service (admin API plus queue worker) or
"notifier run" to execute notification jobs once and exit.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(buildServeCommand())
	rootCmd.AddCommand(buildRunCommand())

	return rootCmd
}
