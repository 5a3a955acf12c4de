package dag

import (
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/maxkimambo/tasklens/internal/taskstate"
)

// Visualization renders a dependency graph together with derived states
type Visualization struct {
	graph  *Graph
	result *Result
}

// NewVisualization creates a new visualization helper
func NewVisualization(g *Graph, result *Result) *Visualization {
	return &Visualization{graph: g, result: result}
}

// NodeInfo contains information about a node for visualization
type NodeInfo struct {
	Key       taskstate.TaskKey `json:"key"`
	Label     string            `json:"label"`
	Source    string            `json:"source,omitempty"`
	Order     DependsOrder      `json:"dependsOrder,omitempty"`
	State     AggregateState    `json:"state"`
	Composite bool              `json:"composite"`
}

// EdgeInfo contains information about an edge for visualization
type EdgeInfo struct {
	From taskstate.TaskKey `json:"from"`
	To   taskstate.TaskKey `json:"to"`
}

// TreeStats counts nodes per derived state
type TreeStats struct {
	TotalNodes   int `json:"totalNodes"`
	Idle         int `json:"idle"`
	Running      int `json:"running"`
	Descendant   int `json:"descendantRunning"`
	Succeeded    int `json:"success"`
	Errored      int `json:"error"`
	IgnoredLinks int `json:"ignoredLinks"`
}

// TreeInfo contains the full structure for visualization
type TreeInfo struct {
	Nodes []NodeInfo `json:"nodes"`
	Edges []EdgeInfo `json:"edges"`
	Stats TreeStats  `json:"stats"`
}

// GenerateTreeInfo creates a representation of the graph for visualization
func (v *Visualization) GenerateTreeInfo() *TreeInfo {
	keys := v.graph.Keys()
	info := &TreeInfo{
		Nodes: make([]NodeInfo, 0, len(keys)),
		Edges: []EdgeInfo{},
		Stats: TreeStats{TotalNodes: len(keys), IgnoredLinks: len(v.result.Cycles)},
	}

	for _, k := range keys {
		def, _ := v.graph.Get(k)
		state := v.result.State(k)
		info.Nodes = append(info.Nodes, NodeInfo{
			Key:       k,
			Label:     def.Name(),
			Source:    def.Source,
			Order:     def.DependsOrder,
			State:     state,
			Composite: def.IsComposite(),
		})

		switch state {
		case AggregateIdle:
			info.Stats.Idle++
		case AggregateRunning:
			info.Stats.Running++
		case AggregateDescendantRunning:
			info.Stats.Descendant++
		case AggregateSuccess:
			info.Stats.Succeeded++
		case AggregateError:
			info.Stats.Errored++
		}
	}

	for _, e := range v.graph.Edges() {
		info.Edges = append(info.Edges, EdgeInfo{From: e.From, To: e.To})
	}
	return info
}

// ExportToJSON exports the visualization to a JSON file
func (v *Visualization) ExportToJSON(filename string) error {
	data, err := sonic.ConfigStd.MarshalIndent(v.GenerateTreeInfo(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

func stateColor(s AggregateState) string {
	switch s {
	case AggregateRunning:
		return "lightblue"
	case AggregateDescendantRunning:
		return "lightcyan"
	case AggregateSuccess:
		return "lightgreen"
	case AggregateError:
		return "salmon"
	default:
		return "lightgrey"
	}
}

// GenerateDOTGraph creates a DOT format graph for visualization with Graphviz
func (v *Visualization) GenerateDOTGraph() string {
	info := v.GenerateTreeInfo()

	var sb strings.Builder
	sb.WriteString("digraph TaskTree {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box, style=filled];\n\n")

	for _, n := range info.Nodes {
		label := fmt.Sprintf("%s\\n%s", escapeDOT(n.Label), n.State)
		if n.Composite && n.Order == OrderSequence {
			label += "\\n(sequence)"
		}
		sb.WriteString(fmt.Sprintf("  \"%s\" [label=\"%s\", fillcolor=\"%s\"];\n",
			escapeDOT(string(n.Key)), label, stateColor(n.State)))
	}

	sb.WriteString("\n")
	ignored := map[Edge]bool{}
	for _, e := range v.result.Cycles {
		ignored[e] = true
	}
	for _, e := range info.Edges {
		attrs := ""
		if ignored[Edge{From: e.From, To: e.To}] {
			attrs = " [style=dashed, color=red]"
		}
		sb.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\"%s;\n", escapeDOT(string(e.From)), escapeDOT(string(e.To)), attrs))
	}

	sb.WriteString("}\n")
	return sb.String()
}

// ExportToDOT exports the visualization to a DOT file
func (v *Visualization) ExportToDOT(filename string) error {
	return os.WriteFile(filename, []byte(v.GenerateDOTGraph()), 0644)
}

// GenerateTextTree renders the roots and their dependencies as an indented tree.
// A task reached twice along the same path is printed once with a marker.
func (v *Visualization) GenerateTextTree() string {
	var sb strings.Builder

	type frame struct {
		key   taskstate.TaskKey
		depth int
		path  map[taskstate.TaskKey]bool
	}
	roots := v.graph.Roots()
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{key: roots[i], path: map[taskstate.TaskKey]bool{}})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		def, _ := v.graph.Get(f.key)
		sb.WriteString(strings.Repeat("  ", f.depth))
		if f.path[f.key] {
			sb.WriteString(fmt.Sprintf("- %s (cycle)\n", def.Name()))
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s [%s]\n", def.Name(), v.result.State(f.key)))

		path := make(map[taskstate.TaskKey]bool, len(f.path)+1)
		for k := range f.path {
			path[k] = true
		}
		path[f.key] = true
		kids := v.graph.Children(f.key)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{key: kids[i], depth: f.depth + 1, path: path})
		}
	}
	return sb.String()
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}
