package protocol

import (
	"time"

	"github.com/duke-git/lancet/v2/slice"

	"github.com/maxkimambo/tasklens/internal/dag"
	"github.com/maxkimambo/tasklens/internal/errors"
	"github.com/maxkimambo/tasklens/internal/history"
	"github.com/maxkimambo/tasklens/internal/reducer"
	"github.com/maxkimambo/tasklens/internal/taskstate"
)

// Normalizer resolves every external task reference to one canonical key
// before it reaches the reducer. The host id wins; a bare label is mapped
// through the catalog when the catalog knows it, then through the id/label
// pairs seen on events, otherwise the label itself is the key.
type Normalizer struct {
	byLabel map[string]taskstate.TaskKey
	learned map[string]taskstate.TaskKey
}

// NewNormalizer creates a normalizer with an empty catalog.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		byLabel: map[string]taskstate.TaskKey{},
		learned: map[string]taskstate.TaskKey{},
	}
}

// Key returns the canonical key for an id/label pair, empty when both are empty.
func (n *Normalizer) Key(id, label string) taskstate.TaskKey {
	if id != "" {
		return taskstate.TaskKey(id)
	}
	if label == "" {
		return ""
	}
	if k, ok := n.byLabel[label]; ok {
		return k
	}
	if k, ok := n.learned[label]; ok {
		return k
	}
	return taskstate.TaskKey(label)
}

// learn remembers that label names the task with the given id. The first
// pairing wins and the catalog takes precedence.
func (n *Normalizer) learn(id, label string) {
	if id == "" || label == "" || id == label {
		return
	}
	if _, ok := n.byLabel[label]; ok {
		return
	}
	if _, ok := n.learned[label]; !ok {
		n.learned[label] = taskstate.TaskKey(id)
	}
}

// Keys normalizes a list of references, dropping empties and duplicates.
func (n *Normalizer) Keys(refs []string) []taskstate.TaskKey {
	keys := slice.Map(refs, func(_ int, ref string) taskstate.TaskKey {
		return n.Key("", ref)
	})
	return slice.Unique(slice.Compact(keys))
}

// Catalog converts host definitions to dependency trees and learns their
// labels. The alias table is replaced, not merged.
func (n *Normalizer) Catalog(tasks []*TaskDefinitionWire) []*dag.TaskDefinition {
	n.byLabel = map[string]taskstate.TaskKey{}

	type pending struct {
		wire *TaskDefinitionWire
		def  *dag.TaskDefinition
	}
	var work []pending
	// declared holds the first definition with a host id per key; refs are
	// label-only dependencies that stand in for one.
	declared := map[taskstate.TaskKey]*dag.TaskDefinition{}
	refs := map[*dag.TaskDefinition]bool{}
	roots := make([]*dag.TaskDefinition, 0, len(tasks))

	for _, w := range tasks {
		if w == nil {
			continue
		}
		d := &dag.TaskDefinition{}
		roots = append(roots, d)
		work = append(work, pending{wire: w, def: d})
	}

	for len(work) > 0 {
		p := work[len(work)-1]
		work = work[:len(work)-1]

		w, d := p.wire, p.def
		d.Key = keyOf(w.ID, w.Label)
		d.Label = w.Label
		d.DisplayLabel = w.DisplayLabel
		d.Source = w.Source
		d.DependsOrder = dag.OrderParallel
		if w.DependsOrder == string(dag.OrderSequence) {
			d.DependsOrder = dag.OrderSequence
		}
		if w.Label != "" && w.ID != "" {
			if _, seen := n.byLabel[w.Label]; !seen {
				n.byLabel[w.Label] = taskstate.TaskKey(w.ID)
			}
		}
		switch prev, ok := declared[d.Key]; {
		case w.ID == "" && len(w.DependsOn) == 0:
			refs[d] = true
		case w.ID != "" && (!ok || (!prev.IsComposite() && len(w.DependsOn) > 0)):
			declared[d.Key] = d
		}

		for _, dep := range w.DependsOn {
			if dep == nil {
				continue
			}
			child := &dag.TaskDefinition{}
			d.DependsOn = append(d.DependsOn, child)
			work = append(work, pending{wire: dep, def: child})
		}
	}

	// Dependencies are often declared by label only; point them at the id and
	// then at the declared definition so its own dependencies are not lost.
	seen := map[*dag.TaskDefinition]bool{}
	for _, r := range roots {
		n.rekey(r, seen)
	}
	clear(seen)
	for _, r := range roots {
		resolveRefs(r, declared, refs, seen)
	}
	return roots
}

func (n *Normalizer) rekey(root *dag.TaskDefinition, seen map[*dag.TaskDefinition]bool) {
	stack := []*dag.TaskDefinition{root}
	for len(stack) > 0 {
		d := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[d] {
			continue
		}
		seen[d] = true
		if k, ok := n.byLabel[string(d.Key)]; ok && d.Label == string(d.Key) {
			d.Key = k
		}
		stack = append(stack, d.DependsOn...)
	}
}

func resolveRefs(root *dag.TaskDefinition, declared map[taskstate.TaskKey]*dag.TaskDefinition, refs, seen map[*dag.TaskDefinition]bool) {
	stack := []*dag.TaskDefinition{root}
	for len(stack) > 0 {
		d := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[d] {
			continue
		}
		seen[d] = true
		for i, dep := range d.DependsOn {
			if full, ok := declared[dep.Key]; ok && refs[dep] {
				d.DependsOn[i] = full
			}
		}
		stack = append(stack, d.DependsOn...)
	}
}

func keyOf(id, label string) taskstate.TaskKey {
	if id != "" {
		return taskstate.TaskKey(id)
	}
	return taskstate.TaskKey(label)
}

// Event converts a task message into a reducer event. ok is false for
// messages that are not task events.
func (n *Normalizer) Event(msg Message) (reducer.Event, bool, error) {
	switch m := msg.(type) {
	case TaskStartedMsg:
		key, err := n.require(m.TaskRef, m.MessageType())
		if err != nil {
			return nil, true, err
		}
		// An absent list keeps the subtasks already known; an empty one clears them.
		var subtasks []taskstate.TaskKey
		if m.Subtasks != nil {
			subtasks = append([]taskstate.TaskKey{}, n.Keys(m.Subtasks)...)
		}
		return reducer.TaskStarted{
			Key:         key,
			StartTime:   timePtr(m.StartTime),
			AvgDuration: durationPtr(m.AvgDuration),
			IsFirstRun:  m.IsFirstRun,
			Subtasks:    subtasks,
			ParentTask:  n.Key("", m.ParentTask),
			State:       runState(m.State),
		}, true, nil

	case TaskEndedMsg:
		key, err := n.require(m.TaskRef, m.MessageType())
		if err != nil {
			return nil, true, err
		}
		return reducer.TaskEnded{Key: key}, true, nil

	case TaskCompletedMsg:
		key, err := n.require(m.TaskRef, m.MessageType())
		if err != nil {
			return nil, true, err
		}
		return reducer.TaskCompleted{
			Key:              key,
			Failed:           m.Failed,
			ExitCode:         m.ExitCode,
			Reason:           m.Reason,
			FailedDependency: n.Key("", m.FailedDependency),
			Duration:         durationPtr(m.Duration),
			ParentTask:       n.Key("", m.ParentTask),
		}, true, nil

	case TaskStateChangedMsg:
		key, err := n.require(m.TaskRef, m.MessageType())
		if err != nil {
			return nil, true, err
		}
		return reducer.TaskStateChanged{
			Key:      key,
			State:    runState(m.State),
			CanStop:  m.CanStop,
			CanFocus: m.CanFocus,
		}, true, nil

	case SubtaskStartedMsg:
		n.learn(m.ParentTaskID, m.ParentLabel)
		n.learn(m.ChildTaskID, m.ChildLabel)
		parent := n.Key(m.ParentTaskID, m.ParentLabel)
		child := n.Key(m.ChildTaskID, m.ChildLabel)
		if parent == "" || child == "" {
			return nil, true, errors.NewMissingKeyError(m.MessageType())
		}
		return reducer.SubtaskStarted{
			ParentKey:       parent,
			ChildKey:        child,
			ParentStartTime: timePtr(m.ParentStartTime),
		}, true, nil

	case SubtaskEndedMsg:
		n.learn(m.ParentTaskID, m.ParentLabel)
		n.learn(m.ChildTaskID, m.ChildLabel)
		parent := n.Key(m.ParentTaskID, m.ParentLabel)
		child := n.Key(m.ChildTaskID, m.ChildLabel)
		if parent == "" || child == "" {
			return nil, true, errors.NewMissingKeyError(m.MessageType())
		}
		return reducer.SubtaskEnded{
			ParentKey: parent,
			ChildKey:  child,
			Failed:    m.Failed,
			ExitCode:  m.ExitCode,
		}, true, nil

	case DismissTaskGroupMsg:
		key, err := n.require(m.TaskRef, m.MessageType())
		if err != nil {
			return nil, true, err
		}
		return reducer.DismissTaskGroup{Key: key}, true, nil
	}
	return nil, false, nil
}

func (n *Normalizer) require(ref TaskRef, msgType string) (taskstate.TaskKey, error) {
	n.learn(ref.TaskID, ref.TaskLabel)
	key := n.Key(ref.TaskID, ref.TaskLabel)
	if key == "" {
		return "", errors.NewMissingKeyError(msgType)
	}
	return key, nil
}

// Records converts host history to aggregator input, dropping records that
// name no task.
func (n *Normalizer) Records(wire []ExecutionRecordWire) []history.ExecutionRecord {
	out := make([]history.ExecutionRecord, 0, len(wire))
	for _, w := range wire {
		key := n.Key(w.TaskID, w.TaskLabel)
		if key == "" {
			continue
		}
		rec := history.ExecutionRecord{
			ID:          w.ID,
			TaskKey:     key,
			StartTime:   timeOrZero(w.StartTime),
			Duration:    durationPtr(w.Duration),
			Failed:      w.Failed,
			ExitCode:    w.ExitCode,
			Reason:      w.Reason,
			ParentLabel: string(n.Key("", w.ParentLabel)),
		}
		for _, c := range n.Keys(w.ChildLabels) {
			rec.ChildLabels = append(rec.ChildLabels, string(c))
		}
		rec.EndTime = timeOrZero(w.EndTime)
		out = append(out, rec)
	}
	return out
}

// runState drops substates outside the known set.
func runState(s string) taskstate.RunState {
	if st := taskstate.RunState(s); st.Valid() {
		return st
	}
	return ""
}

func timeOrZero(ms *int64) time.Time {
	if ms == nil {
		return time.Time{}
	}
	return time.UnixMilli(*ms)
}

func timePtr(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms)
	return &t
}

func durationPtr(ms *int64) *time.Duration {
	if ms == nil {
		return nil
	}
	d := time.Duration(*ms) * time.Millisecond
	return &d
}
