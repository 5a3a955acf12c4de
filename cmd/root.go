package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maxkimambo/tasklens/internal/logger"
	"github.com/maxkimambo/tasklens/internal/utils"
)

var (
	configPath string
	verbose    bool
	jsonLogs   bool
	quiet      bool
	version    = "v0.1.0"

	rootCmd = &cobra.Command{
		Use:   "tasklens",
		Short: "Track the live state of tasks run by an editor host",
		Long: `Tracks the tasks an editor host runs: which are running, how they nest,
how far along they are compared to their history, and how they ended.

The host streams JSON-line events on stdin; commands for the host are written
to stdout. Recorded event streams, execution histories and task catalogs can be
inspected offline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Setup(verbose, jsonLogs, quiet)
		},
	}
)

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), utils.ErrorBox(err))
	}
	return err
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML configuration file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(treeCmd)
}
