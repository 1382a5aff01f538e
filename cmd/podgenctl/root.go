package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/archivecast/podgen/internal/config"
)

// newRootCommand builds the podgenctl command tree, grounded on
// five82-spindle's cmd/spindle/root.go (PersistentFlags + one AddCommand
// per subcommand file).
func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "podgenctl",
		Short:         "Operator CLI for the podcast-assembly daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if configFlag != "" {
			_ = os.Setenv("PODGEN_CONFIG", configFlag)
		}
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newIngestCommand())
	rootCmd.AddCommand(newWorkflowCommand())

	return rootCmd
}

// loadConfig is the shared config.Load() entrypoint every subcommand uses.
func loadConfig() config.Config {
	return config.Load()
}
