package history

import (
	"github.com/duke-git/lancet/v2/slice"

	"github.com/maxkimambo/tasklens/internal/taskstate"
)

// CallNode is one historical run placed in its call tree.
type CallNode struct {
	Record   ExecutionRecord
	Children []*CallNode
	parent   *CallNode
}

// BuildCallTree reconstructs which runs were started by which, using each
// record's ParentLabel and ChildLabels. A child attaches to the most recent
// run of its parent label that started no later than the child. Roots are
// returned in log order.
func BuildCallTree(records []ExecutionRecord) []*CallNode {
	nodes := make([]*CallNode, len(records))
	for i, rec := range records {
		nodes[i] = &CallNode{Record: rec}
	}

	for i, n := range nodes {
		if n.Record.ParentLabel == "" {
			continue
		}
		if p := findParent(nodes, i, taskstate.TaskKey(n.Record.ParentLabel)); p != nil {
			link(p, n)
		}
	}

	// Runs that name their children but whose children did not name them back
	for _, p := range nodes {
		if len(p.Record.ChildLabels) == 0 {
			continue
		}
		for _, c := range nodes {
			if c == p || c.parent != nil || c.Record.ParentLabel != "" {
				continue
			}
			if !slice.Contain(p.Record.ChildLabels, string(c.Record.TaskKey)) {
				continue
			}
			if !within(p.Record, c.Record) {
				continue
			}
			link(p, c)
		}
	}

	var roots []*CallNode
	for _, n := range nodes {
		if n.parent == nil {
			roots = append(roots, n)
		}
	}
	return roots
}

func findParent(nodes []*CallNode, childIdx int, label taskstate.TaskKey) *CallNode {
	child := nodes[childIdx].Record
	for i, n := range nodes {
		if i == childIdx || n.Record.TaskKey != label {
			continue
		}
		if !n.Record.StartTime.IsZero() && !child.StartTime.IsZero() && n.Record.StartTime.After(child.StartTime) {
			continue
		}
		return n
	}
	return nil
}

func within(parent, child ExecutionRecord) bool {
	if parent.StartTime.IsZero() || child.StartTime.IsZero() {
		return true
	}
	if child.StartTime.Before(parent.StartTime) {
		return false
	}
	return parent.EndTime.IsZero() || !child.StartTime.After(parent.EndTime)
}

// link attaches c under p unless that would make c its own ancestor.
func link(p, c *CallNode) {
	for a := p; a != nil; a = a.parent {
		if a == c {
			return
		}
	}
	c.parent = p
	p.Children = append(p.Children, c)
}

// Walk visits the tree depth-first with an explicit stack.
func Walk(roots []*CallNode, visit func(n *CallNode, depth int)) {
	type frame struct {
		node  *CallNode
		depth int
	}
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{roots[i], 0})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visit(f.node, f.depth)
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.node.Children[i], f.depth + 1})
		}
	}
}
