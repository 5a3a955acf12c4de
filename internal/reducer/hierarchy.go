package reducer

import (
	"github.com/duke-git/lancet/v2/slice"

	"github.com/maxkimambo/tasklens/internal/taskstate"
)

// resolveParent picks the parent for a task that is (re)starting.
//
// Order: the event's explicit parent, then the parent recorded on an existing
// placeholder, then the first running entry (store order) that lists key as a
// subtask. A recorded parent that is present but no longer running is ignored
// so a restart never reattaches to a finished group.
func resolveParent(txn *taskstate.Txn, key, explicit taskstate.TaskKey, existing taskstate.TaskRuntimeState, had bool) taskstate.TaskKey {
	if explicit != "" && explicit != key {
		return explicit
	}

	if had && existing.ParentTask != "" && existing.ParentTask != key {
		p, ok := txn.Get(existing.ParentTask)
		if !ok || p.Running {
			return existing.ParentTask
		}
	}

	for _, k := range txn.Keys() {
		if k == key {
			continue
		}
		p, _ := txn.Get(k)
		if p.Running && p.HasSubtask(key) {
			return k
		}
	}
	return ""
}

// attachChild lists child under parent when the parent entry exists.
func attachChild(txn *taskstate.Txn, parent, child taskstate.TaskKey) {
	p, ok := txn.Get(parent)
	if !ok || slice.Contain(p.Subtasks, child) {
		return
	}
	p.Subtasks = append(p.Subtasks, child)
	txn.Set(parent, p)
}

// adoptOrphans adds entries that already point at key through ParentTask to
// st.Subtasks. This repairs the forward list when a child's start arrived
// before its parent existed.
func adoptOrphans(txn *taskstate.Txn, key taskstate.TaskKey, st *taskstate.TaskRuntimeState) {
	for _, k := range txn.Keys() {
		if k == key || slice.Contain(st.Subtasks, k) {
			continue
		}
		child, _ := txn.Get(k)
		if child.ParentTask == key {
			st.Subtasks = append(st.Subtasks, k)
		}
	}
}

// Children returns the subtasks of key that are present in s, in list order.
func Children(s taskstate.Store, key taskstate.TaskKey) []taskstate.TaskKey {
	st, ok := s.Get(key)
	if !ok {
		return nil
	}
	return slice.Filter(st.Subtasks, func(_ int, k taskstate.TaskKey) bool {
		return s.Has(k)
	})
}

// Roots returns the entries that have no parent in s, in store order.
func Roots(s taskstate.Store) []taskstate.TaskKey {
	var roots []taskstate.TaskKey
	for _, e := range s.Entries() {
		if e.State.ParentTask == "" || !s.Has(e.State.ParentTask) {
			roots = append(roots, e.Key)
		}
	}
	return roots
}
