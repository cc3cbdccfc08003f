package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the directory admin CLI. Subcommands
// (bootstrap, seed) are attached here.
var rootCmd = &cobra.Command{
	Use:           "firmdir",
	Short:         "Law firm directory admin CLI",
	Long:          "Administrative utilities for the law firm directory (schema bootstrap, data seeding).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
