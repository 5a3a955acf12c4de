// Package metrics provides Prometheus metrics for monitoring a tracking session.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/maxkimambo/tasklens/internal/taskstate"
)

var (
	EventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasklens_events_applied_total",
			Help: "Total number of host events applied to the task store",
		},
		[]string{"kind"},
	)
	MessagesIgnored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasklens_messages_ignored_total",
			Help: "Total number of host messages skipped",
		},
		[]string{"reason"},
	)
	TasksDismissed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tasklens_tasks_dismissed_total",
			Help: "Total number of store entries removed by dismissal",
		},
	)
	TasksByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tasklens_tasks",
			Help: "Current number of tracked tasks by state",
		},
		[]string{"state"},
	)
	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tasklens_task_duration_seconds",
			Help:    "Duration of finished tasks in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"status"},
	)
	CommandsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasklens_commands_sent_total",
			Help: "Total number of commands sent to the host",
		},
		[]string{"type"},
	)
	HistoryRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tasklens_history_records",
			Help: "Number of execution records currently loaded",
		},
	)
)

// Reasons a host message is skipped.
const (
	ReasonMalformed  = "malformed"
	ReasonUnknown    = "unknown_type"
	ReasonMissingKey = "missing_key"
)

func RecordEventApplied(kind string) {
	EventsApplied.WithLabelValues(kind).Inc()
}

func RecordMessageIgnored(reason string) {
	MessagesIgnored.WithLabelValues(reason).Inc()
}

func RecordDismissed(count int) {
	if count > 0 {
		TasksDismissed.Add(float64(count))
	}
}

func RecordTaskFinished(failed bool, duration time.Duration) {
	status := "completed"
	if failed {
		status = "failed"
	}
	TaskDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func RecordCommandSent(cmdType string) {
	CommandsSent.WithLabelValues(cmdType).Inc()
}

// UpdateStateGauges replaces the per-state gauges with the counts of s.
func UpdateStateGauges(s taskstate.Store) {
	counts := map[taskstate.RunState]int{}
	for _, e := range s.Entries() {
		counts[e.State.State]++
	}
	TasksByState.Reset()
	for state, n := range counts {
		TasksByState.WithLabelValues(string(state)).Set(float64(n))
	}
}

func UpdateHistorySize(n int) {
	HistoryRecords.Set(float64(n))
}
