package cmd

import (
	"io"
	"os"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/maxkimambo/tasklens/internal/config"
	"github.com/maxkimambo/tasklens/internal/engine"
	"github.com/maxkimambo/tasklens/internal/errors"
	"github.com/maxkimambo/tasklens/internal/logger"
	"github.com/maxkimambo/tasklens/internal/protocol"
)

// loadConfig layers the config file, TASKLENS_* variables and explicitly set
// flags, in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}
	if changed("history-window") {
		cfg.HistoryWindow, _ = flags.GetInt("history-window")
	}
	if changed("progress-tick") {
		cfg.ProgressTick, _ = flags.GetDuration("progress-tick")
	}
	if changed("log-poll-interval") {
		cfg.LogPollInterval, _ = flags.GetDuration("log-poll-interval")
	}
	if changed("no-bootstrap") {
		noBootstrap, _ := flags.GetBool("no-bootstrap")
		cfg.Bootstrap = !noBootstrap
	}
	if changed("redis-addr") {
		cfg.Redis.Addr, _ = flags.GetString("redis-addr")
	}
	if changed("redis-key") {
		cfg.Redis.Key, _ = flags.GetString("redis-key")
	}
	if changed("metrics-addr") {
		cfg.Metrics.Addr, _ = flags.GetString("metrics-addr")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Op.WithFields(map[string]interface{}{
		"history_window": cfg.HistoryWindow,
		"progress_tick":  cfg.ProgressTick.String(),
		"bootstrap":      cfg.Bootstrap,
	}).Debug("Configuration loaded")
	return cfg, nil
}

// readCatalog loads a JSON array of task definitions.
func readCatalog(path string) ([]*protocol.TaskDefinitionWire, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewValidationFailedError("tasks file", path, "Catalog load").WithOriginalError(err)
	}
	var wire []*protocol.TaskDefinitionWire
	if err := sonic.Unmarshal(data, &wire); err != nil {
		return nil, errors.NewValidationFailedError("tasks file", path, "Catalog load").WithOriginalError(err)
	}
	return wire, nil
}

// readHistory loads a JSON array of execution records.
func readHistory(path string) ([]protocol.ExecutionRecordWire, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewHistoryReadError(path, err)
	}
	var wire []protocol.ExecutionRecordWire
	if err := sonic.Unmarshal(data, &wire); err != nil {
		return nil, errors.NewHistoryReadError(path, err)
	}
	return wire, nil
}

// discardSender drops outbound commands when no host is attached.
func discardSender() engine.Sender {
	return engine.NewEncoderSender(protocol.NewEncoder(io.Discard))
}
