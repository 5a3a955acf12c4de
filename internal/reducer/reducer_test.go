package reducer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxkimambo/tasklens/internal/taskstate"
)

var testNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestReducer() *Reducer {
	return &Reducer{Now: func() time.Time { return testNow }}
}

func mustGet(t *testing.T, s taskstate.Store, key taskstate.TaskKey) taskstate.TaskRuntimeState {
	t.Helper()
	st, ok := s.Get(key)
	require.True(t, ok, "expected %s in store", key)
	return st
}

func TestApply_TaskStarted(t *testing.T) {
	r := newTestReducer()
	start := testNow.Add(-time.Minute)

	s := r.Apply(taskstate.NewStore(), TaskStarted{
		Key:         "build",
		StartTime:   &start,
		AvgDuration: taskstate.DurationPtr(10 * time.Second),
		IsFirstRun:  true,
	})

	st := mustGet(t, s, "build")
	assert.True(t, st.Running)
	assert.False(t, st.Completed)
	assert.False(t, st.Failed)
	assert.Equal(t, taskstate.StateRunning, st.State)
	assert.Equal(t, start, st.StartTime)
	require.NotNil(t, st.AvgDuration)
	assert.Equal(t, 10*time.Second, *st.AvgDuration)
	assert.True(t, st.IsFirstRun)
	assert.True(t, st.CanStop)
	assert.True(t, st.CanFocus)
}

func TestApply_TaskStartedDefaultsStartTime(t *testing.T) {
	s := newTestReducer().Apply(taskstate.NewStore(), TaskStarted{Key: "build"})
	assert.Equal(t, testNow, mustGet(t, s, "build").StartTime)
}

func TestApply_RestartResetsTerminalFields(t *testing.T) {
	r := newTestReducer()
	s := r.ApplyAll(taskstate.NewStore(),
		TaskStarted{Key: "build"},
		TaskCompleted{Key: "build", Failed: true, ExitCode: taskstate.IntPtr(1), Reason: "boom",
			FailedDependency: "lint", Duration: taskstate.DurationPtr(time.Second)},
	)
	failed := mustGet(t, s, "build")
	require.True(t, failed.Failed)
	require.Equal(t, 1, *failed.ExitCode)

	s = r.Apply(s, TaskStarted{Key: "build"})
	st := mustGet(t, s, "build")
	assert.True(t, st.Running)
	assert.False(t, st.Failed)
	assert.False(t, st.Completed)
	assert.Nil(t, st.ExitCode)
	assert.Nil(t, st.Duration)
	assert.Empty(t, st.FailureReason)
	assert.Empty(t, st.FailedDependency)
	assert.Equal(t, taskstate.StateRunning, st.State)
}

func TestApply_TaskEnded(t *testing.T) {
	r := newTestReducer()
	start := testNow.Add(-5 * time.Second)
	s := r.ApplyAll(taskstate.NewStore(),
		TaskStarted{Key: "watch", StartTime: &start},
		TaskEnded{Key: "watch"},
	)

	st := mustGet(t, s, "watch")
	assert.False(t, st.Running)
	assert.True(t, st.Completed)
	assert.False(t, st.Failed)
	assert.Equal(t, taskstate.StateStopped, st.State)
	require.NotNil(t, st.Duration)
	assert.Equal(t, 5*time.Second, *st.Duration)

	// Entry is kept until dismissed
	assert.Equal(t, 1, s.Len())
}

func TestApply_TaskEndedUnknownKey(t *testing.T) {
	s := taskstate.NewStore()
	out := newTestReducer().Apply(s, TaskEnded{Key: "ghost"})
	assert.Equal(t, 0, out.Len())
}

func TestApply_TaskCompleted(t *testing.T) {
	tests := []struct {
		name      string
		event     TaskCompleted
		wantState taskstate.RunState
		wantFail  bool
	}{
		{
			name:      "success",
			event:     TaskCompleted{Key: "test", ExitCode: taskstate.IntPtr(0)},
			wantState: taskstate.StateCompleted,
		},
		{
			name:      "failure",
			event:     TaskCompleted{Key: "test", Failed: true, ExitCode: taskstate.IntPtr(2), Reason: "exit status 2"},
			wantState: taskstate.StateFailed,
			wantFail:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestReducer()
			start := testNow.Add(-3 * time.Second)
			s := r.ApplyAll(taskstate.NewStore(), TaskStarted{Key: "test", StartTime: &start}, tt.event)

			st := mustGet(t, s, "test")
			assert.False(t, st.Running)
			assert.True(t, st.Completed)
			assert.Equal(t, tt.wantFail, st.Failed)
			assert.Equal(t, tt.wantState, st.State)
			require.NotNil(t, st.Duration)
			assert.Equal(t, 3*time.Second, *st.Duration)
			assert.Equal(t, tt.event.Reason, st.FailureReason)
		})
	}
}

func TestApply_TaskCompletedWithoutStart(t *testing.T) {
	r := newTestReducer()
	s := r.Apply(taskstate.NewStore(), TaskCompleted{Key: "restored", Duration: taskstate.DurationPtr(8 * time.Second)})

	st := mustGet(t, s, "restored")
	assert.True(t, st.Completed)
	assert.False(t, st.Running)
	assert.Equal(t, testNow.Add(-8*time.Second), st.StartTime)
	assert.Equal(t, 8*time.Second, *st.Duration)
}

func TestApply_TaskCompletedMissingDurationStaysAbsent(t *testing.T) {
	s := newTestReducer().Apply(taskstate.NewStore(), TaskCompleted{Key: "restored"})
	st := mustGet(t, s, "restored")
	assert.Nil(t, st.Duration, "absent duration must not be coerced to zero")
	assert.Nil(t, st.ExitCode)
}

func TestApply_TaskCompletedDuplicateIsHarmless(t *testing.T) {
	r := newTestReducer()
	ev := TaskCompleted{Key: "t", Failed: true, ExitCode: taskstate.IntPtr(1), Duration: taskstate.DurationPtr(time.Second)}
	once := r.ApplyAll(taskstate.NewStore(), TaskStarted{Key: "t"}, ev)
	twice := r.Apply(once, ev)
	assert.Equal(t, once.Entries(), twice.Entries())
}

func TestApply_TaskCompletedAttachesParent(t *testing.T) {
	r := newTestReducer()
	s := r.ApplyAll(taskstate.NewStore(),
		TaskStarted{Key: "all"},
		TaskCompleted{Key: "unit", ParentTask: "all", Duration: taskstate.DurationPtr(time.Second)},
	)
	assert.Equal(t, []taskstate.TaskKey{"unit"}, mustGet(t, s, "all").Subtasks)
	assert.Equal(t, taskstate.TaskKey("all"), mustGet(t, s, "unit").ParentTask)
}

func TestApply_TaskStateChanged(t *testing.T) {
	r := newTestReducer()
	s := r.Apply(taskstate.NewStore(), TaskStarted{Key: "serve", AvgDuration: taskstate.DurationPtr(time.Second)})

	no := false
	s = r.Apply(s, TaskStateChanged{Key: "serve", State: taskstate.StateStopping, CanStop: &no})
	st := mustGet(t, s, "serve")
	assert.Equal(t, taskstate.StateStopping, st.State)
	assert.False(t, st.CanStop)
	assert.True(t, st.CanFocus, "absent canFocus defaults to true")
	assert.True(t, st.Running, "flags untouched")
	assert.NotNil(t, st.AvgDuration, "other fields untouched")

	s = r.Apply(s, TaskStateChanged{Key: "serve", State: taskstate.StateRunning})
	assert.True(t, mustGet(t, s, "serve").CanStop, "absent canStop defaults to true")
}

func TestApply_TaskStateChangedIgnoresUnknownSubstate(t *testing.T) {
	r := newTestReducer()
	s := r.Apply(taskstate.NewStore(), TaskStarted{Key: "serve"})

	s = r.Apply(s, TaskStateChanged{Key: "serve", State: taskstate.RunState("exploded")})
	st := mustGet(t, s, "serve")
	assert.Equal(t, taskstate.StateRunning, st.State)
	assert.True(t, st.State.Valid())
	assert.True(t, st.Running)
}

func TestApply_TaskStateChangedUnknownKey(t *testing.T) {
	s := newTestReducer().Apply(taskstate.NewStore(), TaskStateChanged{Key: "ghost", State: taskstate.StateRunning})
	assert.False(t, s.Has("ghost"))
}

func TestApply_SubtaskStartedCreatesPlaceholders(t *testing.T) {
	r := newTestReducer()
	s := r.Apply(taskstate.NewStore(), SubtaskStarted{ParentKey: "P", ChildKey: "C"})

	p := mustGet(t, s, "P")
	assert.True(t, p.Running)
	assert.Equal(t, taskstate.StateRunning, p.State)
	assert.False(t, p.CanFocus)
	assert.Equal(t, []taskstate.TaskKey{"C"}, p.Subtasks)

	c := mustGet(t, s, "C")
	assert.False(t, c.Running)
	assert.Equal(t, taskstate.StateWaiting, c.State)
	assert.Equal(t, taskstate.TaskKey("P"), c.ParentTask)
}

func TestApply_SubtaskStartedIsIdempotent(t *testing.T) {
	r := newTestReducer()
	ev := SubtaskStarted{ParentKey: "P", ChildKey: "C"}
	s := r.ApplyAll(taskstate.NewStore(), ev, ev, ev)
	assert.Equal(t, []taskstate.TaskKey{"C"}, mustGet(t, s, "P").Subtasks)
	assert.Equal(t, 2, s.Len())
}

func TestApply_SubtaskStartedExistingChild(t *testing.T) {
	r := newTestReducer()
	s := r.ApplyAll(taskstate.NewStore(),
		TaskStarted{Key: "C"},
		SubtaskStarted{ParentKey: "P", ChildKey: "C"},
	)
	c := mustGet(t, s, "C")
	assert.True(t, c.Running, "existing child keeps its own state")
	assert.Equal(t, taskstate.TaskKey("P"), c.ParentTask)
}

func TestApply_SubtaskEnded(t *testing.T) {
	r := newTestReducer()
	s := r.ApplyAll(taskstate.NewStore(),
		TaskStarted{Key: "P"},
		SubtaskStarted{ParentKey: "P", ChildKey: "a"},
		SubtaskStarted{ParentKey: "P", ChildKey: "b"},
		SubtaskEnded{ParentKey: "P", ChildKey: "a"},
		SubtaskEnded{ParentKey: "P", ChildKey: "b", Failed: true, ExitCode: taskstate.IntPtr(3)},
		SubtaskEnded{ParentKey: "P", ChildKey: "b", Failed: true, ExitCode: taskstate.IntPtr(3)},
	)

	p := mustGet(t, s, "P")
	assert.Equal(t, []taskstate.TaskKey{"a", "b"}, p.Subtasks, "children stay visible")
	require.Len(t, p.FailedSubtasks, 1)
	assert.Equal(t, taskstate.TaskKey("b"), p.FailedSubtasks[0].Key)
	assert.Equal(t, 3, *p.FailedSubtasks[0].ExitCode)
}

func TestApply_SubtaskEndedUnknownParent(t *testing.T) {
	s := newTestReducer().Apply(taskstate.NewStore(), SubtaskEnded{ParentKey: "P", ChildKey: "C", Failed: true})
	assert.Equal(t, 0, s.Len())
}

type unknownEvent struct{}

func (unknownEvent) Kind() EventKind { return "somethingNew" }

func TestApply_UnknownEventIgnored(t *testing.T) {
	r := newTestReducer()
	s := r.Apply(taskstate.NewStore(), TaskStarted{Key: "a"})
	out := r.Apply(s, unknownEvent{})
	assert.Equal(t, s.Entries(), out.Entries())
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	r := newTestReducer()
	s0 := r.Apply(taskstate.NewStore(), SubtaskStarted{ParentKey: "P", ChildKey: "C"})
	before := s0.Entries()

	_ = r.ApplyAll(s0,
		TaskStarted{Key: "C"},
		SubtaskEnded{ParentKey: "P", ChildKey: "C", Failed: true},
		TaskCompleted{Key: "P", Failed: true},
		DismissTaskGroup{Key: "P"},
	)
	assert.Equal(t, before, s0.Entries())
}

func TestSubjectKey(t *testing.T) {
	assert.Equal(t, taskstate.TaskKey("c"), SubjectKey(SubtaskStarted{ParentKey: "p", ChildKey: "c"}))
	assert.Equal(t, taskstate.TaskKey("k"), SubjectKey(TaskEnded{Key: "k"}))
	assert.Equal(t, taskstate.TaskKey(""), SubjectKey(unknownEvent{}))
}
