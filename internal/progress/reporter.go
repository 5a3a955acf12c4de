package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/maxkimambo/tasklens/internal/history"
	"github.com/maxkimambo/tasklens/internal/taskstate"
)

// MaxRunningPercent is the highest progress a task can show while running.
// 100 is reserved for terminal states.
const MaxRunningPercent = 99.0

// Info is the derived, read-only progress of one task at a point in time.
type Info struct {
	Key         taskstate.TaskKey
	State       taskstate.RunState
	Running     bool
	Elapsed     time.Duration
	Estimate    time.Duration
	HasEstimate bool
	Percent     float64
	Remaining   time.Duration
}

// Percent estimates completion from elapsed time and the expected duration,
// capped at MaxRunningPercent.
func Percent(elapsed, estimate time.Duration) float64 {
	if estimate <= 0 || elapsed <= 0 {
		return 0
	}
	p := float64(elapsed) / float64(estimate) * 100
	if p > MaxRunningPercent {
		return MaxRunningPercent
	}
	return p
}

// Compute derives the progress of key at now.
func Compute(key taskstate.TaskKey, st taskstate.TaskRuntimeState, averages map[taskstate.TaskKey]time.Duration, now time.Time) Info {
	info := Info{
		Key:     key,
		State:   st.State,
		Running: st.Running,
		Elapsed: st.Elapsed(now),
	}
	info.Estimate, info.HasEstimate = history.Estimate(key, st, averages)

	switch {
	case st.IsTerminal():
		info.Percent = 100
	case st.Running && info.HasEstimate:
		info.Percent = Percent(info.Elapsed, info.Estimate)
		if info.Elapsed < info.Estimate {
			info.Remaining = info.Estimate - info.Elapsed
		}
	}
	return info
}

// Reporter formats progress lines for running tasks
type Reporter struct {
	lastReportTime time.Time
	reportInterval time.Duration
}

// NewReporter creates a new progress reporter
func NewReporter(interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = time.Second
	}
	return &Reporter{reportInterval: interval}
}

// ShouldReport returns true if it's time to report progress
func (r *Reporter) ShouldReport(now time.Time) bool {
	return now.Sub(r.lastReportTime) >= r.reportInterval
}

// Report renders one line per task and records the report time.
func (r *Reporter) Report(now time.Time, infos []Info) string {
	r.lastReportTime = now

	var sb strings.Builder
	for i, info := range infos {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(FormatLine(info))
	}
	return sb.String()
}

// FormatLine renders a single progress line.
func FormatLine(info Info) string {
	line := fmt.Sprintf("%s: %s [%s]", info.Key, info.State, FormatDuration(info.Elapsed))
	if !info.HasEstimate {
		return line
	}
	line += fmt.Sprintf(" %.0f%%", info.Percent)
	if info.Running && info.Remaining > 0 {
		line += fmt.Sprintf(" (~%s left)", FormatDuration(info.Remaining))
	}
	return line
}

// CalculateETA estimates time remaining based on current progress
func CalculateETA(completed, total int, elapsed time.Duration) time.Duration {
	if completed <= 0 || total <= 0 || completed >= total {
		return 0
	}

	averageTimePerTask := elapsed / time.Duration(completed)
	remainingTasks := total - completed
	return averageTimePerTask * time.Duration(remainingTasks)
}

// FormatDuration formats a duration in a user-friendly way
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
