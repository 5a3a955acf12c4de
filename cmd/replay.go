package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/maxkimambo/tasklens/internal/dag"
	"github.com/maxkimambo/tasklens/internal/engine"
	"github.com/maxkimambo/tasklens/internal/errors"
	"github.com/maxkimambo/tasklens/internal/logger"
	"github.com/maxkimambo/tasklens/internal/protocol"
	"github.com/maxkimambo/tasklens/internal/utils"
)

var (
	replayTasksFile   string
	replayHistoryFile string
	replayFilter      string
	replayAt          int64
)

var replayCmd = &cobra.Command{
	Use:   "replay <events.jsonl>",
	Short: "Rebuild task state from a recorded host stream",
	Long: `Applies a recorded stream of host messages, one JSON object per line, and
prints the resulting task table. Control messages in the stream (task catalog,
execution history, starred lists) are honoured just as in watch mode.

Example:
tasklens replay session.jsonl
tasklens replay session.jsonl --tasks tasks.json --history history.json --filter status=failed
`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayTasksFile, "tasks", "", "JSON array of task definitions loaded before the stream (optional)")
	replayCmd.Flags().StringVar(&replayHistoryFile, "history", "", "JSON array of execution records loaded before the stream (optional)")
	replayCmd.Flags().StringVar(&replayFilter, "filter", "", "Only show matching tasks: a key glob, state=, parent= or status=")
	replayCmd.Flags().Int64Var(&replayAt, "at", 0, "Clock for elapsed time and progress, in unix milliseconds (default: now)")
	replayCmd.Flags().Int("history-window", 0, "Successful runs averaged per task")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	filter, err := utils.ParseTaskFilter(replayFilter)
	if err != nil {
		return err
	}

	now := time.Now
	if replayAt > 0 {
		at := time.UnixMilli(replayAt)
		now = func() time.Time { return at }
	}

	sess := engine.NewSession(discardSender(), engine.Options{
		HistoryWindow: cfg.HistoryWindow,
		Now:           now,
	})
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if replayTasksFile != "" {
		wire, err := readCatalog(replayTasksFile)
		if err != nil {
			return err
		}
		sess.Handle(protocol.UpdateTasksMsg{Tasks: wire})
	}
	if replayHistoryFile != "" {
		wire, err := readHistory(replayHistoryFile)
		if err != nil {
			return err
		}
		sess.Handle(protocol.ExecutionHistoryMsg{History: wire})
	}

	f, err := os.Open(args[0])
	if err != nil {
		return errors.NewValidationFailedError("events file", args[0], "Replay").WithOriginalError(err)
	}
	defer f.Close()

	logger.User.Starting(fmt.Sprintf("Replaying %s", args[0]))
	if err := sess.Run(ctx, f); err != nil {
		return err
	}

	snap := sess.Snapshot()
	var derived *dag.Result
	if sess.Graph().Size() > 0 {
		derived = sess.Derive()
	}

	out := cmd.OutOrStdout()
	table := utils.TaskTable(utils.FilterStore(snap, filter), derived, sess.Averages(), now())
	if table.Len() == 0 {
		logger.User.Info("No tasks matched.")
		return nil
	}
	fmt.Fprint(out, table.String())

	if derived != nil {
		if len(derived.Cycles) > 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), utils.CycleWarning(derived.Cycles))
		}
		viz := dag.NewVisualization(sess.Graph(), derived)
		fmt.Fprintln(out, utils.StateBox(viz.GenerateTreeInfo().Stats))
	}
	logger.User.Successf("Replayed %d tasks", snap.Len())
	return nil
}
