package dag

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleVisualization() *Visualization {
	shared := def("gen")
	root := &TaskDefinition{
		Key:          "all",
		DisplayLabel: "Build \"all\"",
		DependsOn:    []*TaskDefinition{def("api", shared), def("web", shared)},
		DependsOrder: OrderSequence,
	}
	g := NewGraph(root)
	return NewVisualization(g, Derive(g, states{"gen": succeeded, "web": running}.lookup))
}

func TestGenerateTreeInfo(t *testing.T) {
	info := sampleVisualization().GenerateTreeInfo()

	assert.Equal(t, 4, info.Stats.TotalNodes)
	assert.Len(t, info.Nodes, 4)
	assert.Len(t, info.Edges, 4)
	assert.Equal(t, 2, info.Stats.Succeeded)
	assert.Equal(t, 2, info.Stats.Descendant)
	assert.Equal(t, 0, info.Stats.Running)
	assert.Equal(t, 0, info.Stats.Errored)

	assert.Equal(t, "all", string(info.Nodes[0].Key))
	assert.True(t, info.Nodes[0].Composite)
	assert.Equal(t, AggregateDescendantRunning, info.Nodes[0].State)
}

func TestGenerateDOTGraph(t *testing.T) {
	dot := sampleVisualization().GenerateDOTGraph()

	assert.True(t, strings.HasPrefix(dot, "digraph TaskTree {"))
	assert.Contains(t, dot, `"all" [label="Build \"all\"\ndescendant-running\n(sequence)", fillcolor="lightcyan"];`)
	assert.Contains(t, dot, `"gen" [label="gen\nsuccess", fillcolor="lightgreen"];`)
	assert.Contains(t, dot, `"api" -> "gen";`)
	assert.NotContains(t, dot, "dashed")
}

func TestGenerateDOTGraph_MarksCycles(t *testing.T) {
	a := def("a")
	a.DependsOn = []*TaskDefinition{def("b", a)}
	g := NewGraph(a)

	dot := NewVisualization(g, Derive(g, states{}.lookup)).GenerateDOTGraph()
	assert.Contains(t, dot, `"b" -> "a" [style=dashed, color=red];`)
}

func TestGenerateTextTree(t *testing.T) {
	out := sampleVisualization().GenerateTextTree()
	assert.Equal(t, strings.Join([]string{
		`- Build "all" [descendant-running]`,
		"  - api [success]",
		"    - gen [success]",
		"  - web [descendant-running]",
		"    - gen [success]",
		"",
	}, "\n"), out)

	a := def("a")
	a.DependsOn = []*TaskDefinition{def("b", a)}
	g := NewGraph(a)
	out = NewVisualization(g, Derive(g, states{}.lookup)).GenerateTextTree()
	assert.Equal(t, "- a [idle]\n  - b [idle]\n    - a (cycle)\n", out)
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	v := sampleVisualization()

	jsonPath := filepath.Join(dir, "tree.json")
	require.NoError(t, v.ExportToJSON(jsonPath))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)

	var info TreeInfo
	require.NoError(t, sonic.Unmarshal(data, &info))
	assert.Equal(t, 4, info.Stats.TotalNodes)

	dotPath := filepath.Join(dir, "tree.dot")
	require.NoError(t, v.ExportToDOT(dotPath))
	data, err = os.ReadFile(dotPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "digraph TaskTree")
}
