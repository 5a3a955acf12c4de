package reducer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxkimambo/tasklens/internal/taskstate"
)

func buildGroup(t *testing.T) taskstate.Store {
	t.Helper()
	return newTestReducer().Replay(
		TaskStarted{Key: "other"},
		TaskStarted{Key: "root"},
		SubtaskStarted{ParentKey: "root", ChildKey: "mid"},
		SubtaskStarted{ParentKey: "mid", ChildKey: "leaf"},
		TaskStarted{Key: "loose", ParentTask: "leaf"},
	)
}

func TestDismissalSet(t *testing.T) {
	s := buildGroup(t)

	set := DismissalSet(s, "root")
	assert.ElementsMatch(t, []taskstate.TaskKey{"root", "mid", "leaf", "loose"}, set)
	assert.Equal(t, taskstate.TaskKey("root"), set[0])

	assert.Empty(t, DismissalSet(s, "missing"))
}

func TestDismissalSet_ParentTaskOnlyLink(t *testing.T) {
	// "orphan" points at root but root's subtasks never listed it
	s := taskstate.NewStore()
	root := taskstate.NewTaskRuntimeState()
	root.Running = true
	orphan := taskstate.NewTaskRuntimeState()
	orphan.ParentTask = "root"
	grandchild := taskstate.NewTaskRuntimeState()
	grandchild.ParentTask = "orphan"
	s = s.Set("grandchild", grandchild).Set("orphan", orphan).Set("root", root)

	assert.ElementsMatch(t, []taskstate.TaskKey{"root", "orphan", "grandchild"}, DismissalSet(s, "root"))
}

func TestDismiss_CascadeCompleteness(t *testing.T) {
	s := buildGroup(t)
	out := Dismiss(s, "root")

	assert.Equal(t, []taskstate.TaskKey{"other"}, out.Keys())
	for _, e := range out.Entries() {
		assert.NotEqual(t, taskstate.TaskKey("root"), e.State.ParentTask)
	}
	assert.Equal(t, 5, s.Len(), "input snapshot untouched")
}

func TestDismiss_Idempotent(t *testing.T) {
	s := buildGroup(t)
	once := Dismiss(s, "mid")
	twice := Dismiss(once, "mid")
	assert.Equal(t, once.Entries(), twice.Entries())
	assert.Equal(t, once.Keys(), twice.Keys())
}

func TestDismiss_ScrubsSurvivingParent(t *testing.T) {
	s := newTestReducer().Replay(
		TaskStarted{Key: "P"},
		SubtaskStarted{ParentKey: "P", ChildKey: "a"},
		SubtaskStarted{ParentKey: "P", ChildKey: "b"},
		SubtaskEnded{ParentKey: "P", ChildKey: "a", Failed: true},
	)

	out := Dismiss(s, "a")
	p, ok := out.Get("P")
	require.True(t, ok)
	assert.Equal(t, []taskstate.TaskKey{"b"}, p.Subtasks)
	assert.Empty(t, p.FailedSubtasks)
}

func TestDismiss_CyclicSubtasks(t *testing.T) {
	s := newTestReducer().Replay(
		SubtaskStarted{ParentKey: "a", ChildKey: "b"},
		SubtaskStarted{ParentKey: "b", ChildKey: "a"},
	)
	out := Dismiss(s, "a")
	assert.Equal(t, 0, out.Len())
}

func TestDismiss_ViaReducer(t *testing.T) {
	r := newTestReducer()
	s := buildGroup(t)
	out := r.Apply(s, DismissTaskGroup{Key: "root"})
	assert.Equal(t, []taskstate.TaskKey{"other"}, out.Keys())
	assert.Equal(t, out.Keys(), r.Apply(out, DismissTaskGroup{Key: "root"}).Keys())
}
