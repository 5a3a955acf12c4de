package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maxkimambo/tasklens/internal/logger"
	"github.com/maxkimambo/tasklens/internal/protocol"
	"github.com/maxkimambo/tasklens/internal/utils"
)

var historyTasksFile string

var historyCmd = &cobra.Command{
	Use:   "history <history.json>",
	Short: "Summarise an execution history",
	Long: `Reads a JSON array of execution records, most recent first, and prints
duration statistics per task together with the call tree of the recorded runs.
Averages use the same window as live progress estimates.

Example:
tasklens history history.json --history-window 5
`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyTasksFile, "tasks", "", "JSON array of task definitions used to resolve labels (optional)")
	historyCmd.Flags().Int("history-window", 0, "Successful runs averaged per task")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	norm := protocol.NewNormalizer()
	if historyTasksFile != "" {
		wire, err := readCatalog(historyTasksFile)
		if err != nil {
			return err
		}
		norm.Catalog(wire)
	}

	wire, err := readHistory(args[0])
	if err != nil {
		return err
	}
	records := norm.Records(wire)
	if len(records) == 0 {
		logger.User.Info("History is empty.")
		return nil
	}
	if skipped := len(wire) - len(records); skipped > 0 {
		logger.User.Warnf("Skipped %d records without a task", skipped)
	}

	fmt.Fprintln(cmd.OutOrStdout(), utils.HistoryReport(records, cfg.HistoryWindow))
	return nil
}
