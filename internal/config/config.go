// Package config loads session settings from an optional YAML file and
// TASKLENS_* environment variables. CLI flags are applied last by cmd.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maxkimambo/tasklens/internal/errors"
	"github.com/maxkimambo/tasklens/internal/history"
)

const envPrefix = "TASKLENS_"

// Config holds every tunable of a tracking session
type Config struct {
	HistoryWindow   int           `yaml:"history_window"`
	ProgressTick    time.Duration `yaml:"progress_tick"`
	LogPollInterval time.Duration `yaml:"log_poll_interval"`
	Bootstrap       bool          `yaml:"bootstrap"`
	Redis           RedisConfig   `yaml:"redis"`
	Metrics         MetricsConfig `yaml:"metrics"`
}

// RedisConfig enables the snapshot mirror when Addr is set
type RedisConfig struct {
	Addr string `yaml:"addr"`
	Key  string `yaml:"key"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		HistoryWindow:   history.DefaultWindow,
		ProgressTick:    time.Second,
		LogPollInterval: 2 * time.Second,
		Bootstrap:       true,
		Redis:           RedisConfig{Key: "tasklens:snapshot"},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigReadError(path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewConfigParseError(path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from TASKLENS_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(envPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	if v, ok := get("HISTORY_WINDOW"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.NewInvalidConfigError(envPrefix+"HISTORY_WINDOW", v, "not an integer").WithOriginalError(err)
		}
		c.HistoryWindow = n
	}
	if v, ok := get("PROGRESS_TICK"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.NewInvalidConfigError(envPrefix+"PROGRESS_TICK", v, "not a duration").WithOriginalError(err)
		}
		c.ProgressTick = d
	}
	if v, ok := get("LOG_POLL_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.NewInvalidConfigError(envPrefix+"LOG_POLL_INTERVAL", v, "not a duration").WithOriginalError(err)
		}
		c.LogPollInterval = d
	}
	if v, ok := get("BOOTSTRAP"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.NewInvalidConfigError(envPrefix+"BOOTSTRAP", v, "not a boolean").WithOriginalError(err)
		}
		c.Bootstrap = b
	}
	if v, ok := get("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := get("REDIS_KEY"); ok {
		c.Redis.Key = v
	}
	if v, ok := get("METRICS_ADDR"); ok {
		c.Metrics.Addr = v
	}
	return nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	if c.HistoryWindow <= 0 {
		return errors.NewInvalidConfigError("history_window", c.HistoryWindow, "must be positive")
	}
	if c.ProgressTick <= 0 {
		return errors.NewInvalidConfigError("progress_tick", c.ProgressTick, "must be positive")
	}
	if c.LogPollInterval <= 0 {
		return errors.NewInvalidConfigError("log_poll_interval", c.LogPollInterval, "must be positive")
	}
	if c.Redis.Addr != "" && c.Redis.Key == "" {
		return errors.NewInvalidConfigError("redis.key", c.Redis.Key, "required when redis.addr is set")
	}
	return nil
}
