package dag

import (
	"github.com/maxkimambo/tasklens/internal/taskstate"
)

// AggregateState is the derived visual state of a task in a dependency tree.
type AggregateState string

const (
	AggregateIdle              AggregateState = "idle"
	AggregateRunning           AggregateState = "running"
	AggregateSuccess           AggregateState = "success"
	AggregateError             AggregateState = "error"
	AggregateDescendantRunning AggregateState = "descendant-running"
)

// DirectState is what the live store says about a single task.
type DirectState struct {
	Running   bool
	Failed    bool
	Succeeded bool
}

// Own maps the direct state of a task to its undecorated aggregate state.
func (d DirectState) Own() AggregateState {
	switch {
	case d.Failed:
		return AggregateError
	case d.Running:
		return AggregateRunning
	case d.Succeeded:
		return AggregateSuccess
	default:
		return AggregateIdle
	}
}

// StateLookup returns the direct state of key.
type StateLookup func(key taskstate.TaskKey) DirectState

// StoreLookup reads direct states from a store snapshot. A manual stop is not
// a success.
func StoreLookup(s taskstate.Store) StateLookup {
	return func(key taskstate.TaskKey) DirectState {
		st, ok := s.Get(key)
		if !ok {
			return DirectState{}
		}
		return DirectState{
			Running:   st.Running,
			Failed:    st.Failed,
			Succeeded: st.Completed && !st.Failed && st.State == taskstate.StateCompleted,
		}
	}
}

// Result holds the derived state of every node reachable from the roots.
type Result struct {
	States map[taskstate.TaskKey]AggregateState
	// Cycles lists dependency links that were ignored because they close a loop.
	Cycles []Edge
}

// State returns the derived state for key, idle when unknown.
func (r *Result) State(key taskstate.TaskKey) AggregateState {
	if s, ok := r.States[key]; ok {
		return s
	}
	return AggregateIdle
}

// summary describes the set of derived states below a node.
type summary struct {
	descendants int
	hasError    bool
	hasRunning  bool
	allSuccess  bool
}

// Derive computes aggregate states bottom-up for every node of g.
//
// Priority for a node with descendants: error, then descendant-running, then
// success when every descendant is a success, otherwise the node's own state.
// A leaf shows its own state.
func Derive(g *Graph, lookup StateLookup) *Result {
	res := &Result{States: make(map[taskstate.TaskKey]AggregateState, g.Size())}
	sums := make(map[taskstate.TaskKey]summary, g.Size())

	const (
		white = iota
		grey
		black
	)
	color := make(map[taskstate.TaskKey]int, g.Size())
	skipped := map[Edge]bool{}

	type frame struct {
		key taskstate.TaskKey
		idx int
	}

	for _, start := range g.order {
		if color[start] != white {
			continue
		}
		color[start] = grey
		stack := []frame{{key: start}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			kids := g.children[top.key]
			if top.idx < len(kids) {
				c := kids[top.idx]
				top.idx++
				switch color[c] {
				case white:
					color[c] = grey
					stack = append(stack, frame{key: c})
				case grey:
					e := Edge{From: top.key, To: c}
					if !skipped[e] {
						skipped[e] = true
						res.Cycles = append(res.Cycles, e)
					}
				}
				continue
			}

			key := top.key
			stack = stack[:len(stack)-1]
			color[key] = black

			sum := summary{allSuccess: true}
			for _, c := range kids {
				if skipped[Edge{From: key, To: c}] {
					continue
				}
				cs := res.States[c]
				csum := sums[c]
				sum.descendants += 1 + csum.descendants
				sum.hasError = sum.hasError || cs == AggregateError || csum.hasError
				sum.hasRunning = sum.hasRunning || cs == AggregateRunning ||
					cs == AggregateDescendantRunning || csum.hasRunning
				sum.allSuccess = sum.allSuccess && cs == AggregateSuccess && csum.allSuccess
			}
			sums[key] = sum
			res.States[key] = decide(lookup(key).Own(), sum)
		}
	}
	return res
}

func decide(own AggregateState, sum summary) AggregateState {
	if sum.descendants == 0 {
		return own
	}
	switch {
	case own == AggregateError || sum.hasError:
		return AggregateError
	case own == AggregateRunning || sum.hasRunning:
		return AggregateDescendantRunning
	case sum.allSuccess:
		return AggregateSuccess
	default:
		return own
	}
}

// DeriveTree is a convenience for a single definition tree.
func DeriveTree(root *TaskDefinition, lookup StateLookup) *Result {
	return Derive(NewGraph(root), lookup)
}
