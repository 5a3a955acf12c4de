package reducer

import (
	"time"

	"github.com/maxkimambo/tasklens/internal/taskstate"
)

// EventKind names a lifecycle event. The values match the host wire names.
type EventKind string

const (
	KindTaskStarted      EventKind = "taskStarted"
	KindTaskEnded        EventKind = "taskEnded"
	KindTaskCompleted    EventKind = "taskCompleted"
	KindTaskStateChanged EventKind = "taskStateChanged"
	KindSubtaskStarted   EventKind = "subtaskStarted"
	KindSubtaskEnded     EventKind = "subtaskEnded"
	KindDismissTaskGroup EventKind = "dismissTaskGroup"
)

// Event is a single lifecycle notification from the host. Keys are already
// canonical when an Event reaches the reducer.
type Event interface {
	Kind() EventKind
}

// TaskStarted creates or restarts a task.
type TaskStarted struct {
	Key         taskstate.TaskKey
	StartTime   *time.Time
	AvgDuration *time.Duration
	IsFirstRun  bool
	Subtasks    []taskstate.TaskKey
	ParentTask  taskstate.TaskKey
	State       taskstate.RunState
}

// TaskEnded is a manual stop.
type TaskEnded struct {
	Key taskstate.TaskKey
}

// TaskCompleted is the natural end of a run, successful or not.
type TaskCompleted struct {
	Key              taskstate.TaskKey
	Failed           bool
	ExitCode         *int
	Reason           string
	FailedDependency taskstate.TaskKey
	Duration         *time.Duration
	ParentTask       taskstate.TaskKey
}

// TaskStateChanged updates the substate and capabilities of a known task.
type TaskStateChanged struct {
	Key      taskstate.TaskKey
	State    taskstate.RunState
	CanStop  *bool
	CanFocus *bool
}

// SubtaskStarted attaches ChildKey under ParentKey.
type SubtaskStarted struct {
	ParentKey       taskstate.TaskKey
	ChildKey        taskstate.TaskKey
	ParentStartTime *time.Time
}

// SubtaskEnded reports the end of an attached child.
type SubtaskEnded struct {
	ParentKey taskstate.TaskKey
	ChildKey  taskstate.TaskKey
	Failed    bool
	ExitCode  *int
}

// DismissTaskGroup removes a task together with its subtree.
type DismissTaskGroup struct {
	Key taskstate.TaskKey
}

func (TaskStarted) Kind() EventKind      { return KindTaskStarted }
func (TaskEnded) Kind() EventKind        { return KindTaskEnded }
func (TaskCompleted) Kind() EventKind    { return KindTaskCompleted }
func (TaskStateChanged) Kind() EventKind { return KindTaskStateChanged }
func (SubtaskStarted) Kind() EventKind   { return KindSubtaskStarted }
func (SubtaskEnded) Kind() EventKind     { return KindSubtaskEnded }
func (DismissTaskGroup) Kind() EventKind { return KindDismissTaskGroup }

// SubjectKey returns the task an event is primarily about.
func SubjectKey(ev Event) taskstate.TaskKey {
	switch e := ev.(type) {
	case TaskStarted:
		return e.Key
	case TaskEnded:
		return e.Key
	case TaskCompleted:
		return e.Key
	case TaskStateChanged:
		return e.Key
	case SubtaskStarted:
		return e.ChildKey
	case SubtaskEnded:
		return e.ChildKey
	case DismissTaskGroup:
		return e.Key
	default:
		return ""
	}
}
