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
	treeDOT     bool
	treeJSONOut string
	treeDOTOut  string
	treeStrict  bool
)

var treeCmd = &cobra.Command{
	Use:   "tree <tasks.json> [events.jsonl]",
	Short: "Show the dependency tree of a task catalog",
	Long: `Prints the dependency tree of a task catalog. When a recorded host stream
is given, every node is labelled with its derived state: error when the task or
a dependency failed, descendant-running while anything below it runs, success
when it and all dependencies succeeded.

Dependency cycles are reported and the closing link is ignored.

Example:
tasklens tree tasks.json
tasklens tree tasks.json session.jsonl --dot | dot -Tsvg > tree.svg
`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runTree,
}

func init() {
	treeCmd.Flags().BoolVar(&treeDOT, "dot", false, "Print Graphviz DOT instead of a text tree")
	treeCmd.Flags().StringVar(&treeJSONOut, "output-json", "", "Also write the tree as JSON to this file")
	treeCmd.Flags().StringVar(&treeDOTOut, "output-dot", "", "Also write the tree as Graphviz DOT to this file")
	treeCmd.Flags().BoolVar(&treeStrict, "strict", false, "Fail when the catalog contains a dependency cycle")
}

func runTree(cmd *cobra.Command, args []string) error {
	wire, err := readCatalog(args[0])
	if err != nil {
		return err
	}

	sess := engine.NewSession(discardSender(), engine.Options{Now: time.Now})
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sess.Handle(protocol.UpdateTasksMsg{Tasks: wire})

	if treeStrict {
		if err := sess.Graph().Validate(); err != nil {
			return err
		}
	}

	if len(args) == 2 {
		f, err := os.Open(args[1])
		if err != nil {
			return errors.NewValidationFailedError("events file", args[1], "Tree").WithOriginalError(err)
		}
		defer f.Close()
		if err := sess.Run(ctx, f); err != nil {
			return err
		}
	}

	derived := sess.Derive()
	if len(derived.Cycles) > 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), utils.CycleWarning(derived.Cycles))
	}
	viz := dag.NewVisualization(sess.Graph(), derived)
	out := cmd.OutOrStdout()
	if treeDOT {
		fmt.Fprint(out, viz.GenerateDOTGraph())
	} else {
		fmt.Fprint(out, viz.GenerateTextTree())
		fmt.Fprintln(out, utils.StateBox(viz.GenerateTreeInfo().Stats))
	}

	if treeJSONOut != "" {
		if err := viz.ExportToJSON(treeJSONOut); err != nil {
			return err
		}
		logger.User.Successf("Tree written to %s", treeJSONOut)
	}
	if treeDOTOut != "" {
		if err := viz.ExportToDOT(treeDOTOut); err != nil {
			return err
		}
		logger.User.Successf("Graph written to %s", treeDOTOut)
	}
	return nil
}
