package utils

import (
	"path"
	"strings"

	"github.com/maxkimambo/tasklens/internal/errors"
	"github.com/maxkimambo/tasklens/internal/taskstate"
)

// TaskFilter selects store entries for display.
type TaskFilter func(key taskstate.TaskKey, st taskstate.TaskRuntimeState) bool

// ParseTaskFilter builds a filter from a CLI expression.
// Input examples:
//   - "" matches everything
//   - "npm:*" matches keys against a glob
//   - "state=running" matches the run state
//   - "parent=ci" matches the parent key
//   - "status=failed" matches running, failed, succeeded or stopped
func ParseTaskFilter(expr string) (TaskFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return func(taskstate.TaskKey, taskstate.TaskRuntimeState) bool { return true }, nil
	}

	if !strings.Contains(expr, "=") {
		if _, err := path.Match(expr, ""); err != nil {
			return nil, errors.NewValidationFailedError("filter", expr, "Task filtering")
		}
		return func(key taskstate.TaskKey, _ taskstate.TaskRuntimeState) bool {
			ok, _ := path.Match(expr, string(key))
			return ok
		}, nil
	}

	parts := strings.SplitN(expr, "=", 2)
	field := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])
	if field == "" || value == "" {
		return nil, errors.NewValidationFailedError("filter", expr, "Task filtering")
	}

	switch field {
	case "state":
		want := taskstate.RunState(value)
		if !want.Valid() {
			return nil, errors.NewValidationFailedError("state", value, "Task filtering")
		}
		return func(_ taskstate.TaskKey, st taskstate.TaskRuntimeState) bool {
			return st.State == want
		}, nil
	case "parent":
		return func(_ taskstate.TaskKey, st taskstate.TaskRuntimeState) bool {
			return string(st.ParentTask) == value
		}, nil
	case "status":
		return statusFilter(value)
	default:
		return nil, errors.NewValidationFailedError("filter field", field, "Task filtering")
	}
}

func statusFilter(value string) (TaskFilter, error) {
	switch value {
	case "running":
		return func(_ taskstate.TaskKey, st taskstate.TaskRuntimeState) bool { return st.Running }, nil
	case "failed":
		return func(_ taskstate.TaskKey, st taskstate.TaskRuntimeState) bool { return st.Failed }, nil
	case "succeeded":
		return func(_ taskstate.TaskKey, st taskstate.TaskRuntimeState) bool {
			return st.Completed && !st.Failed && st.State == taskstate.StateCompleted
		}, nil
	case "stopped":
		return func(_ taskstate.TaskKey, st taskstate.TaskRuntimeState) bool {
			return st.State == taskstate.StateStopped
		}, nil
	default:
		return nil, errors.NewValidationFailedError("status", value, "Task filtering")
	}
}

// FilterStore keeps the entries of s that match f, preserving store order.
func FilterStore(s taskstate.Store, f TaskFilter) taskstate.Store {
	txn := s.Edit()
	for _, e := range s.Entries() {
		if !f(e.Key, e.State) {
			txn.Remove(e.Key)
		}
	}
	return txn.Commit()
}
