// Package dag models the host's static task dependency trees and derives the
// aggregate visual state of composite tasks from the live task store.
package dag

import (
	"github.com/maxkimambo/tasklens/internal/errors"
	"github.com/maxkimambo/tasklens/internal/taskstate"
)

// DependsOrder tells whether dependencies run side by side or one after another.
type DependsOrder string

const (
	OrderParallel DependsOrder = "parallel"
	OrderSequence DependsOrder = "sequence"
)

// TaskDefinition is a task as declared by the host. DependsOn forms a tree;
// the same key may appear under several parents.
type TaskDefinition struct {
	Key          taskstate.TaskKey
	Label        string
	DisplayLabel string
	Source       string
	DependsOn    []*TaskDefinition
	DependsOrder DependsOrder
}

// Name returns the label shown to users.
func (d *TaskDefinition) Name() string {
	if d.DisplayLabel != "" {
		return d.DisplayLabel
	}
	if d.Label != "" {
		return d.Label
	}
	return string(d.Key)
}

// IsComposite reports whether the task has dependencies.
func (d *TaskDefinition) IsComposite() bool {
	return len(d.DependsOn) > 0
}

// Edge is a dependency link from a task to one of its dependencies.
type Edge struct {
	From taskstate.TaskKey
	To   taskstate.TaskKey
}

// Graph is an arena of definitions indexed by key. Children keep declaration
// order; the first definition seen for a key wins unless it is a bare
// reference and a later one declares dependencies.
type Graph struct {
	defs     map[taskstate.TaskKey]*TaskDefinition
	children map[taskstate.TaskKey][]taskstate.TaskKey
	order    []taskstate.TaskKey
	roots    []taskstate.TaskKey
}

// NewGraph flattens the given definition trees into an arena.
func NewGraph(roots ...*TaskDefinition) *Graph {
	g := &Graph{
		defs:     map[taskstate.TaskKey]*TaskDefinition{},
		children: map[taskstate.TaskKey][]taskstate.TaskKey{},
	}

	var stack []*TaskDefinition
	for i := len(roots) - 1; i >= 0; i-- {
		if roots[i] != nil && roots[i].Key != "" {
			stack = append(stack, roots[i])
		}
	}
	for _, r := range roots {
		if r != nil && r.Key != "" {
			g.roots = append(g.roots, r.Key)
		}
	}

	for len(stack) > 0 {
		def := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if prev, seen := g.defs[def.Key]; seen {
			if !replaces(prev, def) {
				continue
			}
		} else {
			g.order = append(g.order, def.Key)
		}
		g.defs[def.Key] = def

		kids := make([]taskstate.TaskKey, 0, len(def.DependsOn))
		for _, dep := range def.DependsOn {
			if dep == nil || dep.Key == "" {
				continue
			}
			kids = append(kids, dep.Key)
		}
		g.children[def.Key] = kids
		for i := len(def.DependsOn) - 1; i >= 0; i-- {
			dep := def.DependsOn[i]
			if dep == nil || dep.Key == "" {
				continue
			}
			if prev, seen := g.defs[dep.Key]; !seen || replaces(prev, dep) {
				stack = append(stack, dep)
			}
		}
	}
	return g
}

// replaces reports whether next should take the place of prev: prev is a bare
// reference to the key and next carries its dependencies.
func replaces(prev, next *TaskDefinition) bool {
	return prev != next && !prev.IsComposite() && next.IsComposite()
}

// Get returns the definition for key.
func (g *Graph) Get(key taskstate.TaskKey) (*TaskDefinition, bool) {
	d, ok := g.defs[key]
	return d, ok
}

// Keys returns every key in depth-first discovery order.
func (g *Graph) Keys() []taskstate.TaskKey {
	return append([]taskstate.TaskKey(nil), g.order...)
}

// Roots returns the keys of the trees the graph was built from.
func (g *Graph) Roots() []taskstate.TaskKey {
	return append([]taskstate.TaskKey(nil), g.roots...)
}

// Children returns the direct dependencies of key.
func (g *Graph) Children(key taskstate.TaskKey) []taskstate.TaskKey {
	return append([]taskstate.TaskKey(nil), g.children[key]...)
}

// Edges returns every dependency link in discovery order.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, k := range g.order {
		for _, c := range g.children[k] {
			edges = append(edges, Edge{From: k, To: c})
		}
	}
	return edges
}

// Size returns the number of distinct tasks.
func (g *Graph) Size() int {
	return len(g.order)
}

// FindCycles returns the back edges found by a depth-first walk. An empty
// result means the graph is acyclic.
func (g *Graph) FindCycles() []Edge {
	const (
		white = iota
		grey
		black
	)
	color := make(map[taskstate.TaskKey]int, len(g.order))
	var back []Edge

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
					back = append(back, Edge{From: top.key, To: c})
				}
				continue
			}
			color[top.key] = black
			stack = stack[:len(stack)-1]
		}
	}
	return back
}

// Validate returns an error when the dependency graph contains a cycle.
func (g *Graph) Validate() error {
	if cycles := g.FindCycles(); len(cycles) > 0 {
		return errors.NewDependencyCycleError(string(cycles[0].From), string(cycles[0].To))
	}
	return nil
}
