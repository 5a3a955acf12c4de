package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maxkimambo/tasklens/internal/config"
	"github.com/maxkimambo/tasklens/internal/dag"
	"github.com/maxkimambo/tasklens/internal/engine"
	"github.com/maxkimambo/tasklens/internal/logger"
	"github.com/maxkimambo/tasklens/internal/metrics"
	"github.com/maxkimambo/tasklens/internal/progress"
	"github.com/maxkimambo/tasklens/internal/protocol"
	"github.com/maxkimambo/tasklens/internal/publish"
	"github.com/maxkimambo/tasklens/internal/taskstate"
	"github.com/maxkimambo/tasklens/internal/utils"
)

var (
	watchTasks     []string
	watchDebugLogs bool
	watchSummary   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Track a live host session over stdin and stdout",
	Long: `Reads host messages from stdin, one JSON object per line, and keeps the
live task store up to date. Commands for the host (bootstrap requests, log
polls) are written to stdout; progress and diagnostics go to stderr.

The store can be mirrored to Redis and session metrics exposed for Prometheus.

Example:
host-bridge | tasklens watch --task npm:build
tasklens watch --redis-addr localhost:6379 --metrics-addr :9090 < session.jsonl
`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Int("history-window", 0, "Successful runs averaged per task")
	watchCmd.Flags().Duration("progress-tick", 0, "Interval between progress reports")
	watchCmd.Flags().Duration("log-poll-interval", 0, "Interval between host log requests with --debug-logs")
	watchCmd.Flags().Bool("no-bootstrap", false, "Do not request task lists, panel state and history on start")
	watchCmd.Flags().String("redis-addr", "", "Mirror every snapshot to Redis at this address (optional)")
	watchCmd.Flags().String("redis-key", "", "Redis key for snapshots; updates are published on <key>:updates")
	watchCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (optional)")
	watchCmd.Flags().StringSliceVar(&watchTasks, "task", nil, "Follow the progress of these task keys until they finish")
	watchCmd.Flags().BoolVar(&watchDebugLogs, "debug-logs", false, "Poll the host log buffer while watching")
	watchCmd.Flags().BoolVar(&watchSummary, "summary", true, "Print the task table when the stream ends")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// stdout belongs to the host protocol
	logger.SetUserOutput(cmd.ErrOrStderr())

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sender := engine.NewEncoderSender(protocol.NewEncoder(cmd.OutOrStdout()))
	sess := engine.NewSession(sender, engine.Options{
		HistoryWindow:   cfg.HistoryWindow,
		ProgressTick:    cfg.ProgressTick,
		LogPollInterval: cfg.LogPollInterval,
		Bootstrap:       cfg.Bootstrap,
	})

	if cfg.Redis.Addr != "" {
		pub, err := publish.NewPublisher(ctx, cfg.Redis.Addr, cfg.Redis.Key)
		if err != nil {
			return err
		}
		defer pub.Close()
		sess.SetPublisher(pub)
		defer sess.Close()
		logger.User.Infof("Mirroring snapshots to %s (key %s)", cfg.Redis.Addr, pub.Key())
	}

	if cfg.Metrics.Addr != "" {
		srv := startMetricsServer(cfg.Metrics)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	views := openViews(ctx, sess)
	closeViews := func() {
		for _, v := range views {
			v.Close()
		}
	}
	defer closeViews()

	logger.User.Starting("Watching host events")
	err = sess.Run(ctx, cmd.InOrStdin())
	closeViews()
	if err != nil && !stderrors.Is(err, context.Canceled) {
		return err
	}

	snap := sess.Snapshot()
	if watchSummary && snap.Len() > 0 {
		var derived *dag.Result
		if sess.Graph().Size() > 0 {
			derived = sess.Derive()
		}
		fmt.Fprint(cmd.ErrOrStderr(), utils.TaskTable(snap, derived, sess.Averages(), time.Now()).String())
	}
	logger.User.Successf("Session ended with %d tracked tasks", snap.Len())
	return nil
}

func openViews(ctx context.Context, sess *engine.Session) []*engine.View {
	var views []*engine.View

	if len(watchTasks) > 0 {
		for _, key := range watchTasks {
			key := taskstate.TaskKey(key)
			views = append(views, sess.FollowTask(ctx, key, func(info progress.Info) {
				logger.User.Info(progress.FormatLine(info))
			}))
		}
	} else {
		reporter := progress.NewReporter(0)
		views = append(views, sess.OpenRunningView(ctx, func(infos []progress.Info) {
			now := time.Now()
			if reporter.ShouldReport(now) {
				logger.User.Info(reporter.Report(now, infos))
			}
		}))
	}

	if watchDebugLogs {
		views = append(views, sess.OpenDebugView(ctx))
	}
	return views
}

func startMetricsServer(cfg config.MetricsConfig) *http.Server {
	srv := metrics.NewServer(cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			logger.Op.Errorf("Metrics server stopped: %v", err)
		}
	}()
	logger.User.Infof("Serving metrics on %s/metrics", cfg.Addr)
	return srv
}
