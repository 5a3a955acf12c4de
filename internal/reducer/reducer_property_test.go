package reducer

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/maxkimambo/tasklens/internal/taskstate"
)

var propertyKeys = []taskstate.TaskKey{"a", "b", "c", "d", "e"}

func drawEvent(t *rapid.T, label string) Event {
	key := rapid.SampledFrom(propertyKeys).Draw(t, label+"_key")
	other := rapid.SampledFrom(propertyKeys).Draw(t, label+"_other")
	failed := rapid.Bool().Draw(t, label+"_failed")

	switch rapid.IntRange(0, 6).Draw(t, label+"_kind") {
	case 0:
		ev := TaskStarted{Key: key}
		if rapid.Bool().Draw(t, label+"_withParent") {
			ev.ParentTask = other
		}
		return ev
	case 1:
		return TaskEnded{Key: key}
	case 2:
		ev := TaskCompleted{Key: key, Failed: failed}
		if failed {
			ev.ExitCode = taskstate.IntPtr(rapid.IntRange(1, 3).Draw(t, label+"_exit"))
		}
		return ev
	case 3:
		return TaskStateChanged{Key: key, State: taskstate.StateStopping}
	case 4:
		return SubtaskStarted{ParentKey: other, ChildKey: key}
	case 5:
		return SubtaskEnded{ParentKey: other, ChildKey: key, Failed: failed}
	default:
		return DismissTaskGroup{Key: key}
	}
}

func drawStore(t *rapid.T) taskstate.Store {
	r := &Reducer{Now: func() time.Time { return testNow }}
	n := rapid.IntRange(0, 40).Draw(t, "events")
	s := taskstate.NewStore()
	for i := 0; i < n; i++ {
		s = r.Apply(s, drawEvent(t, "ev"))
	}
	return s
}

func TestProperty_MutualExclusion(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := drawStore(t)
		for _, e := range s.Entries() {
			if e.State.Running && (e.State.Completed || e.State.Failed) {
				t.Fatalf("%s is running and terminal: %+v", e.Key, e.State)
			}
			if e.State.Failed && e.State.State != taskstate.StateFailed {
				t.Fatalf("%s failed but state is %s", e.Key, e.State.State)
			}
		}
	})
}

func TestProperty_SubtasksHaveNoDuplicates(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := drawStore(t)
		for _, e := range s.Entries() {
			seen := map[taskstate.TaskKey]bool{}
			for _, k := range e.State.Subtasks {
				if seen[k] {
					t.Fatalf("%s lists %s twice: %v", e.Key, k, e.State.Subtasks)
				}
				seen[k] = true
			}
		}
	})
}

func TestProperty_DismissalCascade(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := drawStore(t)
		target := rapid.SampledFrom(propertyKeys).Draw(t, "target")

		reachable := map[taskstate.TaskKey]bool{}
		stack := []taskstate.TaskKey{target}
		for len(stack) > 0 {
			k := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			st, ok := s.Get(k)
			if !ok || reachable[k] {
				continue
			}
			reachable[k] = true
			stack = append(stack, st.Subtasks...)
		}

		once := Dismiss(s, target)
		for k := range reachable {
			if once.Has(k) {
				t.Fatalf("%s reachable from %s survived dismissal", k, target)
			}
		}
		for _, e := range once.Entries() {
			if e.State.ParentTask == target {
				t.Fatalf("%s still points at dismissed %s", e.Key, target)
			}
		}

		twice := Dismiss(once, target)
		if len(once.Keys()) != len(twice.Keys()) {
			t.Fatalf("dismissal not idempotent: %v vs %v", once.Keys(), twice.Keys())
		}
	})
}
