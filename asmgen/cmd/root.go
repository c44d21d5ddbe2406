// Package cmd provides the command-line interface for asmgen.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// newRootCmd builds the command tree. Every call returns fresh flag state.
func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "asmgen",
		Short: "asmgen generates cache-geometry dependent prime and probe routines.",
		Long: `asmgen reads the cache geometry from the device configuration header and ` +
			`the node layout from the cache types header, and writes one header of ` +
			`unrolled pointer-chasing routines per cache level.`,
		SilenceUsage: true,
	}

	opts.register(rootCmd)

	rootCmd.AddCommand(
		newGenerateCmd(opts),
		newInspectCmd(opts),
		newHostCheckCmd(opts),
	)

	return rootCmd
}

// Execute runs the command line and exits. Functions registered with atexit
// run before the process ends.
func Execute() {
	err := newRootCmd().Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
