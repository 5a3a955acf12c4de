package reducer

import (
	"github.com/maxkimambo/tasklens/internal/taskstate"
)

// DismissalSet returns every key removed when key is dismissed: key itself,
// everything reachable through Subtasks, and every entry whose ParentTask is
// already in the set, repeated until nothing new is found. The result is in
// discovery order and empty when key is absent.
func DismissalSet(s taskstate.Store, key taskstate.TaskKey) []taskstate.TaskKey {
	if !s.Has(key) {
		return nil
	}

	seen := map[taskstate.TaskKey]bool{}
	var order []taskstate.TaskKey
	var stack []taskstate.TaskKey

	push := func(k taskstate.TaskKey) {
		if seen[k] || !s.Has(k) {
			return
		}
		seen[k] = true
		order = append(order, k)
		stack = append(stack, k)
	}
	walk := func() {
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			st, _ := s.Get(cur)
			for _, child := range st.Subtasks {
				push(child)
			}
		}
	}

	push(key)
	walk()

	entries := s.Entries()
	for changed := true; changed; {
		changed = false
		for _, e := range entries {
			if seen[e.Key] || e.State.ParentTask == "" || !seen[e.State.ParentTask] {
				continue
			}
			push(e.Key)
			walk()
			changed = true
		}
	}
	return order
}

// Dismiss removes key and its subtree in a single store update. Surviving
// entries lose any reference to removed keys. Dismissing an absent key
// returns s unchanged.
func Dismiss(s taskstate.Store, key taskstate.TaskKey) taskstate.Store {
	removed := DismissalSet(s, key)
	if len(removed) == 0 {
		return s
	}
	gone := make(map[taskstate.TaskKey]bool, len(removed))
	for _, k := range removed {
		gone[k] = true
	}

	txn := s.Edit()
	txn.Remove(removed...)
	for _, k := range txn.Keys() {
		st, _ := txn.Get(k)
		if scrub(&st, gone) {
			txn.Set(k, st)
		}
	}
	return txn.Commit()
}

func scrub(st *taskstate.TaskRuntimeState, gone map[taskstate.TaskKey]bool) bool {
	changed := false

	if len(st.Subtasks) > 0 {
		kept := make([]taskstate.TaskKey, 0, len(st.Subtasks))
		for _, k := range st.Subtasks {
			if gone[k] {
				changed = true
				continue
			}
			kept = append(kept, k)
		}
		st.Subtasks = kept
	}

	if len(st.FailedSubtasks) > 0 {
		kept := make([]taskstate.FailedSubtask, 0, len(st.FailedSubtasks))
		for _, fs := range st.FailedSubtasks {
			if gone[fs.Key] {
				changed = true
				continue
			}
			kept = append(kept, fs)
		}
		st.FailedSubtasks = kept
	}

	if st.ParentTask != "" && gone[st.ParentTask] {
		st.ParentTask = ""
		changed = true
	}
	return changed
}
