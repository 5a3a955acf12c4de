// Package taskstate holds the runtime task model and the immutable snapshot store
// the reducer threads through every event.
package taskstate

import (
	"time"
)

// TaskKey identifies a task in the store. It is the host id when one exists,
// otherwise the task label, resolved once at the protocol boundary.
type TaskKey string

// RunState is the informational substate of a task.
type RunState string

const (
	StateStarting  RunState = "starting"
	StateRunning   RunState = "running"
	StateStopping  RunState = "stopping"
	StateStopped   RunState = "stopped"
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
	StateWaiting   RunState = "waiting"
)

// Valid reports whether s is one of the known substates.
func (s RunState) Valid() bool {
	switch s {
	case StateStarting, StateRunning, StateStopping, StateStopped,
		StateCompleted, StateFailed, StateWaiting:
		return true
	default:
		return false
	}
}

// String returns a string representation of the RunState
func (s RunState) String() string {
	if s == "" {
		return "unknown"
	}
	return string(s)
}

// FailedSubtask records a child that ended with a failure.
type FailedSubtask struct {
	Key      TaskKey
	ExitCode *int
}

// TaskRuntimeState is the live state of one currently or recently active task.
type TaskRuntimeState struct {
	Running   bool
	Completed bool
	Failed    bool
	State     RunState

	StartTime   time.Time
	Duration    *time.Duration
	AvgDuration *time.Duration
	IsFirstRun  bool

	Subtasks       []TaskKey
	ParentTask     TaskKey
	FailedSubtasks []FailedSubtask

	ExitCode         *int
	FailureReason    string
	FailedDependency TaskKey

	CanStop  bool
	CanFocus bool
}

// NewTaskRuntimeState returns a state with the default capabilities set.
func NewTaskRuntimeState() TaskRuntimeState {
	return TaskRuntimeState{
		CanStop:  true,
		CanFocus: true,
	}
}

// Clone returns a deep copy that shares no mutable memory with s.
func (s TaskRuntimeState) Clone() TaskRuntimeState {
	out := s
	if s.Subtasks != nil {
		out.Subtasks = append([]TaskKey(nil), s.Subtasks...)
	}
	if s.FailedSubtasks != nil {
		out.FailedSubtasks = make([]FailedSubtask, len(s.FailedSubtasks))
		for i, fs := range s.FailedSubtasks {
			out.FailedSubtasks[i] = FailedSubtask{Key: fs.Key, ExitCode: copyInt(fs.ExitCode)}
		}
	}
	out.Duration = copyDuration(s.Duration)
	out.AvgDuration = copyDuration(s.AvgDuration)
	out.ExitCode = copyInt(s.ExitCode)
	return out
}

// HasSubtask reports whether key is listed as a child.
func (s TaskRuntimeState) HasSubtask(key TaskKey) bool {
	for _, k := range s.Subtasks {
		if k == key {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the task reached a completed, failed or stopped state.
func (s TaskRuntimeState) IsTerminal() bool {
	return !s.Running && (s.Completed || s.Failed)
}

// Elapsed returns the runtime of the task at now. Terminal tasks report their
// recorded duration when one exists.
func (s TaskRuntimeState) Elapsed(now time.Time) time.Duration {
	if !s.Running && s.Duration != nil {
		return *s.Duration
	}
	if s.StartTime.IsZero() {
		return 0
	}
	d := now.Sub(s.StartTime)
	if d < 0 {
		return 0
	}
	return d
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyDuration(v *time.Duration) *time.Duration {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// DurationPtr returns a pointer to d.
func DurationPtr(d time.Duration) *time.Duration { return &d }
