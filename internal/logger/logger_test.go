package logger

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerInitialization(t *testing.T) {
	assert.NotNil(t, User, "User logger should not be nil after init")
	assert.NotNil(t, Op, "Op logger should not be nil after init")

	ul := GetLogger()
	require.NotNil(t, ul)
	assert.Same(t, ul, GetLogger())
}

func TestLoggerSetup(t *testing.T) {
	tests := []struct {
		name     string
		verbose  bool
		jsonLogs bool
		quiet    bool
		level    logrus.Level
	}{
		{"Default", false, false, false, logrus.InfoLevel},
		{"Verbose", true, false, false, logrus.DebugLevel},
		{"Quiet", false, false, true, logrus.ErrorLevel},
		{"JSON", false, true, false, logrus.InfoLevel},
		{"Verbose JSON", true, true, false, logrus.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_MODE", "")
			t.Setenv("LOG_FORMAT", "")
			Setup(tt.verbose, tt.jsonLogs, tt.quiet)

			assert.NotNil(t, User)
			assert.NotNil(t, Op)
			assert.Equal(t, tt.level, GetLogger().internal().GetLevel())
		})
	}
}

func TestSetupEnvOverride(t *testing.T) {
	t.Setenv("LOG_MODE", "quiet")
	Setup(true, false, false)
	assert.Equal(t, logrus.ErrorLevel, GetLogger().internal().GetLevel())

	t.Setenv("LOG_MODE", "debug")
	Setup(false, false, true)
	assert.Equal(t, logrus.DebugLevel, GetLogger().internal().GetLevel())
}

func TestOutputRouting(t *testing.T) {
	t.Setenv("LOG_MODE", "")
	t.Setenv("LOG_FORMAT", "")
	Setup(false, false, false)

	var userBuf, opBuf bytes.Buffer
	SetUserOutput(&userBuf)
	for _, hooks := range GetLogger().internal().Hooks {
		for _, h := range hooks {
			if router, ok := h.(*OutputRouterHook); ok {
				router.OpWriter = &opBuf
			}
		}
	}

	User.Info("3 tasks running")
	Op.WithFields(map[string]interface{}{"task": "build"}).Warn("skipped line")

	assert.Equal(t, "3 tasks running\n", userBuf.String())
	assert.Contains(t, opBuf.String(), "skipped line task=build")
	assert.NotContains(t, opBuf.String(), "log_type")
}

func TestUserLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	testLogger := logrus.New()
	testLogger.SetOutput(&buf)
	testLogger.SetFormatter(&CLIFormatter{DisableTimestamp: true, DisableLevel: true})

	userLogger := &UserLogger{logger: testLogger}
	userLogger.Starting("watching host events")
	assert.Equal(t, "[STARTING] watching host events\n", buf.String())

	buf.Reset()
	userLogger.Successf("replayed %d events", 4)
	assert.Equal(t, "[SUCCESS] replayed 4 events\n", buf.String())
}

func TestCLIFormatter(t *testing.T) {
	f := &CLIFormatter{DisableTimestamp: true, DisableColors: true}
	entry := &logrus.Entry{
		Level:   logrus.WarnLevel,
		Message: "ignored message",
		Time:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Data: logrus.Fields{
			"type":     "bogus",
			"line":     7,
			"log_type": "op",
		},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "WARNING: ignored message line=7 type=bogus\n", string(out))

	f.DisableTimestamp = false
	out, err = f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01 00:00:00 WARNING: ignored message line=7 type=bogus\n", string(out))
}

func captureOp(t *testing.T) *bytes.Buffer {
	t.Helper()
	t.Setenv("LOG_MODE", "debug")
	t.Setenv("LOG_FORMAT", "")
	Setup(false, false, false)

	var buf bytes.Buffer
	for _, hooks := range GetLogger().internal().Hooks {
		for _, h := range hooks {
			if router, ok := h.(*OutputRouterHook); ok {
				router.OpWriter = &buf
				router.OpFormatter = &CLIFormatter{DisableTimestamp: true, DisableColors: true}
			}
		}
	}
	return &buf
}

func TestSessionEvents(t *testing.T) {
	buf := captureOp(t)

	EventApplied("taskStarted", "build")
	assert.Equal(t, "DEBUG: Event applied event=taskStarted task=build\n", buf.String())

	buf.Reset()
	EventSkipped("taskEnded", "no task id or label")
	assert.Equal(t, "WARNING: Skipping task event event=taskEnded reason=no task id or label\n", buf.String())
}

func TestCommandEvents(t *testing.T) {
	buf := captureOp(t)

	CommandSent("getLogs", "", "req-1")
	assert.Equal(t, "DEBUG: Command sent command=getLogs request_id=req-1\n", buf.String(), "empty task is left out")

	buf.Reset()
	CommandFailed("runTask", "build", "req-2", errors.New("broken pipe"))
	assert.Equal(t, "WARNING: Failed to send command: broken pipe command=runTask request_id=req-2 task=build\n", buf.String())
}
