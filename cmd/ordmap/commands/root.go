// Package commands implements CLI command handlers for ordmap.
package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	verbose    bool
	quiet      bool
	noColor    bool
}

// NewRootCommand creates the ordmap command tree without the version command.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "ordmap",
		Short: "Ordered map workbench backed by a red-black tree",
		Long: `ordmap exercises an arena-backed red-black tree ordered map.

Commands:
  run       Run a configurable insert/remove workload and report statistics
  dump      Print the breadth-first node layout of a map
  check     Insert and remove keys, verifying every invariant after each step
  snapshot  Save a map to disk through the configured codec
  restore   Load a snapshot, rebuild the map and verify it`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if opts.noColor {
				color.NoColor = true //nolint:reassign // intentional override of library global
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: ./ordmap.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "suppress output")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(
		NewRunCommand(opts),
		NewDumpCommand(opts),
		NewCheckCommand(opts),
		NewSnapshotCommand(opts),
		NewRestoreCommand(opts),
	)

	return rootCmd
}
