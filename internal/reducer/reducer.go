// Package reducer turns the host's lifecycle event stream into successive
// taskstate.Store snapshots. Apply never mutates the store it is given.
package reducer

import (
	"time"

	"github.com/duke-git/lancet/v2/slice"

	"github.com/maxkimambo/tasklens/internal/taskstate"
)

// Reducer applies events to store snapshots. Now supplies the wall clock for
// events that carry no timestamp of their own.
type Reducer struct {
	Now func() time.Time
}

// New creates a reducer using the system clock.
func New() *Reducer {
	return &Reducer{Now: time.Now}
}

func (r *Reducer) now() time.Time {
	if r == nil || r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// Apply returns the store that results from applying ev to s. Unknown event
// kinds and events that reference unknown keys where no creation rule exists
// return s unchanged.
func (r *Reducer) Apply(s taskstate.Store, ev Event) taskstate.Store {
	switch e := ev.(type) {
	case TaskStarted:
		return r.taskStarted(s, e)
	case TaskEnded:
		return r.taskEnded(s, e)
	case TaskCompleted:
		return r.taskCompleted(s, e)
	case TaskStateChanged:
		return taskStateChanged(s, e)
	case SubtaskStarted:
		return r.subtaskStarted(s, e)
	case SubtaskEnded:
		return subtaskEnded(s, e)
	case DismissTaskGroup:
		return Dismiss(s, e.Key)
	default:
		return s
	}
}

// ApplyAll folds events over s in order.
func (r *Reducer) ApplyAll(s taskstate.Store, events ...Event) taskstate.Store {
	for _, ev := range events {
		s = r.Apply(s, ev)
	}
	return s
}

// Replay rebuilds a store from empty.
func (r *Reducer) Replay(events ...Event) taskstate.Store {
	return r.ApplyAll(taskstate.NewStore(), events...)
}

func (r *Reducer) taskStarted(s taskstate.Store, e TaskStarted) taskstate.Store {
	if e.Key == "" {
		return s
	}
	txn := s.Edit()
	existing, had := txn.Get(e.Key)

	st := taskstate.NewTaskRuntimeState()
	st.Running = true
	st.State = taskstate.StateRunning
	if e.State == taskstate.StateStarting {
		st.State = e.State
	}
	st.StartTime = r.now()
	if e.StartTime != nil {
		st.StartTime = *e.StartTime
	}
	if e.AvgDuration != nil {
		st.AvgDuration = taskstate.DurationPtr(*e.AvgDuration)
	}
	st.IsFirstRun = e.IsFirstRun

	switch {
	case e.Subtasks != nil:
		st.Subtasks = slice.Unique(withoutKey(e.Subtasks, e.Key))
	case had:
		st.Subtasks = existing.Subtasks
	}

	st.ParentTask = resolveParent(txn, e.Key, e.ParentTask, existing, had)
	adoptOrphans(txn, e.Key, &st)
	txn.Set(e.Key, st)

	if st.ParentTask != "" {
		attachChild(txn, st.ParentTask, e.Key)
	}
	return txn.Commit()
}

func (r *Reducer) taskEnded(s taskstate.Store, e TaskEnded) taskstate.Store {
	st, ok := s.Get(e.Key)
	if !ok {
		return s
	}
	if st.Duration == nil && st.Running && !st.StartTime.IsZero() {
		st.Duration = taskstate.DurationPtr(st.Elapsed(r.now()))
	}
	st.Running = false
	st.Completed = true
	st.Failed = false
	st.State = taskstate.StateStopped
	return s.Set(e.Key, st)
}

func (r *Reducer) taskCompleted(s taskstate.Store, e TaskCompleted) taskstate.Store {
	if e.Key == "" {
		return s
	}
	now := r.now()
	txn := s.Edit()
	st, had := txn.Get(e.Key)
	if !had {
		st = taskstate.NewTaskRuntimeState()
		st.StartTime = now
		if e.Duration != nil {
			st.StartTime = now.Add(-*e.Duration)
		}
	}

	switch {
	case e.Duration != nil:
		st.Duration = taskstate.DurationPtr(*e.Duration)
	case st.Running && !st.StartTime.IsZero():
		st.Duration = taskstate.DurationPtr(st.Elapsed(now))
	}

	st.Running = false
	st.Completed = true
	st.Failed = e.Failed
	st.State = taskstate.StateCompleted
	if e.Failed {
		st.State = taskstate.StateFailed
	}
	st.ExitCode = nil
	if e.ExitCode != nil {
		st.ExitCode = taskstate.IntPtr(*e.ExitCode)
	}
	st.FailureReason = e.Reason
	st.FailedDependency = e.FailedDependency

	if e.ParentTask != "" && e.ParentTask != e.Key {
		st.ParentTask = e.ParentTask
	}
	txn.Set(e.Key, st)
	if e.ParentTask != "" && e.ParentTask != e.Key {
		attachChild(txn, e.ParentTask, e.Key)
	}
	return txn.Commit()
}

func taskStateChanged(s taskstate.Store, e TaskStateChanged) taskstate.Store {
	st, ok := s.Get(e.Key)
	if !ok {
		return s
	}
	// A failed task keeps its failed substate until it restarts. Unknown
	// substates are treated as absent.
	if e.State.Valid() && !st.Failed {
		st.State = e.State
	}
	st.CanStop = boolOr(e.CanStop, true)
	st.CanFocus = boolOr(e.CanFocus, true)
	return s.Set(e.Key, st)
}

func (r *Reducer) subtaskStarted(s taskstate.Store, e SubtaskStarted) taskstate.Store {
	if e.ParentKey == "" || e.ChildKey == "" || e.ParentKey == e.ChildKey {
		return s
	}
	txn := s.Edit()

	parent, ok := txn.Get(e.ParentKey)
	if !ok {
		parent = taskstate.NewTaskRuntimeState()
		parent.Running = true
		parent.State = taskstate.StateRunning
		parent.CanFocus = false
		parent.StartTime = r.now()
		if e.ParentStartTime != nil {
			parent.StartTime = *e.ParentStartTime
		}
	}
	if !slice.Contain(parent.Subtasks, e.ChildKey) {
		parent.Subtasks = append(parent.Subtasks, e.ChildKey)
	}
	txn.Set(e.ParentKey, parent)

	child, ok := txn.Get(e.ChildKey)
	if !ok {
		child = taskstate.NewTaskRuntimeState()
		child.State = taskstate.StateWaiting
	}
	child.ParentTask = e.ParentKey
	txn.Set(e.ChildKey, child)

	return txn.Commit()
}

func subtaskEnded(s taskstate.Store, e SubtaskEnded) taskstate.Store {
	parent, ok := s.Get(e.ParentKey)
	if !ok || e.ChildKey == "" || e.ChildKey == e.ParentKey {
		return s
	}
	if !slice.Contain(parent.Subtasks, e.ChildKey) {
		parent.Subtasks = append(parent.Subtasks, e.ChildKey)
	}
	if e.Failed {
		rec := taskstate.FailedSubtask{Key: e.ChildKey}
		if e.ExitCode != nil {
			rec.ExitCode = taskstate.IntPtr(*e.ExitCode)
		}
		replaced := false
		for i, fs := range parent.FailedSubtasks {
			if fs.Key == e.ChildKey {
				parent.FailedSubtasks[i] = rec
				replaced = true
				break
			}
		}
		if !replaced {
			parent.FailedSubtasks = append(parent.FailedSubtasks, rec)
		}
	}
	return s.Set(e.ParentKey, parent)
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func withoutKey(keys []taskstate.TaskKey, key taskstate.TaskKey) []taskstate.TaskKey {
	return slice.Filter(keys, func(_ int, k taskstate.TaskKey) bool {
		return k != key && k != ""
	})
}
