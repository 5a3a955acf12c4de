package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogType represents the type of log message
type LogType string

const (
	UserLog LogType = "user"
	OpLog   LogType = "op"
)

// UnifiedLogger owns the logrus instance shared by the User and Op loggers
// and records the session's structured events: one entry per applied or
// skipped host event and per command sent to the host.
type UnifiedLogger struct {
	logger *logrus.Logger
}

var (
	unifiedLog *UnifiedLogger
	once       sync.Once
)

// GetLogger returns the global logger instance, initializing it if necessary
func GetLogger() *UnifiedLogger {
	once.Do(func() {
		initDefaultLogger()
	})
	return unifiedLog
}

func initDefaultLogger() {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&CLIFormatter{
		DisableTimestamp: true,
		DisableLevel:     true,
	})

	unifiedLog = &UnifiedLogger{
		logger: logger,
	}
}

func (l *UnifiedLogger) internal() *logrus.Logger {
	return l.logger
}

// op drops empty string fields and tags the entry as an operational log.
func (l *UnifiedLogger) op(fields logrus.Fields) *logrus.Entry {
	for k, v := range fields {
		if s, ok := v.(string); ok && s == "" {
			delete(fields, k)
		}
	}
	fields["log_type"] = string(OpLog)
	return l.internal().WithFields(fields)
}

// EventApplied records a host event folded into the store.
func (l *UnifiedLogger) EventApplied(kind, task string) {
	l.op(logrus.Fields{"event": kind, "task": task}).Debug("Event applied")
}

// EventSkipped records a host event that could not be applied.
func (l *UnifiedLogger) EventSkipped(kind, reason string) {
	l.op(logrus.Fields{"event": kind, "reason": reason}).Warn("Skipping task event")
}

// CommandSent records a command written to the host.
func (l *UnifiedLogger) CommandSent(cmdType, task, requestID string) {
	l.op(logrus.Fields{"command": cmdType, "task": task, "request_id": requestID}).Debug("Command sent")
}

// CommandFailed records a command the host transport rejected.
func (l *UnifiedLogger) CommandFailed(cmdType, task, requestID string, err error) {
	l.op(logrus.Fields{"command": cmdType, "task": task, "request_id": requestID}).
		Warnf("Failed to send command: %v", err)
}
