// Package history derives duration estimates from the host's execution log.
package history

import (
	"time"

	"github.com/maxkimambo/tasklens/internal/taskstate"
)

// DefaultWindow is the number of recent successful runs averaged per task.
const DefaultWindow = 10

// ExecutionRecord is one finished run as reported by the host. The log is
// ordered most-recent-first.
type ExecutionRecord struct {
	ID          string
	TaskKey     taskstate.TaskKey
	StartTime   time.Time
	EndTime     time.Time
	Duration    *time.Duration
	Failed      bool
	ExitCode    *int
	Reason      string
	ParentLabel string
	ChildLabels []string
}

// usable reports whether the record can contribute to an average.
func (r ExecutionRecord) usable() bool {
	return !r.Failed && r.Duration != nil && r.TaskKey != ""
}

// Aggregate averages the first DefaultWindow successful runs of every task.
func Aggregate(records []ExecutionRecord) map[taskstate.TaskKey]time.Duration {
	return AggregateWindow(records, DefaultWindow)
}

// AggregateWindow averages the first window successful runs of every task, in
// log order. Tasks without a usable run are absent from the result.
func AggregateWindow(records []ExecutionRecord, window int) map[taskstate.TaskKey]time.Duration {
	if window <= 0 {
		window = DefaultWindow
	}
	sums := map[taskstate.TaskKey]time.Duration{}
	counts := map[taskstate.TaskKey]int{}

	for _, rec := range records {
		if !rec.usable() || counts[rec.TaskKey] >= window {
			continue
		}
		sums[rec.TaskKey] += *rec.Duration
		counts[rec.TaskKey]++
	}

	out := make(map[taskstate.TaskKey]time.Duration, len(sums))
	for k, sum := range sums {
		out[k] = sum / time.Duration(counts[k])
	}
	return out
}

// Estimate returns the expected duration for key. A live AvgDuration supplied
// by the host wins over the local historical average.
func Estimate(key taskstate.TaskKey, st taskstate.TaskRuntimeState, averages map[taskstate.TaskKey]time.Duration) (time.Duration, bool) {
	if st.AvgDuration != nil && *st.AvgDuration > 0 {
		return *st.AvgDuration, true
	}
	avg, ok := averages[key]
	if !ok || avg <= 0 {
		return 0, false
	}
	return avg, true
}

// Log holds the execution history the session received last. The host always
// sends the whole log, so Replace discards what was there before.
type Log struct {
	records  []ExecutionRecord
	window   int
	averages map[taskstate.TaskKey]time.Duration
}

// NewLog creates an empty log averaging over window runs.
func NewLog(window int) *Log {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Log{window: window, averages: map[taskstate.TaskKey]time.Duration{}}
}

// Replace swaps in a new history and recomputes the averages.
func (l *Log) Replace(records []ExecutionRecord) {
	l.records = append([]ExecutionRecord(nil), records...)
	l.averages = AggregateWindow(l.records, l.window)
}

// Records returns a copy of the current history.
func (l *Log) Records() []ExecutionRecord {
	return append([]ExecutionRecord(nil), l.records...)
}

// Averages returns the per-task historical averages.
func (l *Log) Averages() map[taskstate.TaskKey]time.Duration {
	out := make(map[taskstate.TaskKey]time.Duration, len(l.averages))
	for k, v := range l.averages {
		out[k] = v
	}
	return out
}

// Len returns the number of records held.
func (l *Log) Len() int {
	return len(l.records)
}
