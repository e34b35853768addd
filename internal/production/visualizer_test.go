package production

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/chartx/internal/model"
	"github.com/comalice/chartx/internal/primitives"
)

func TestVisualizerExportDOT(t *testing.T) {
	t.Parallel()
	v := &Visualizer{}
	dot := v.ExportDOT(trafficDoc(t), []string{"light", "yellow"})

	for _, want := range []string{
		`digraph "traffic" {`,
		`subgraph "cluster_light" {`,
		`label="light (compound)";`,
		`"light.h" [shape=circle, label="H"];`,
		`"yellow" [label="yellow", style=filled, fillcolor=lightgreen];`,
		`"green" [label="green"];`,
		`"__start" -> "light";`,
		`"green" -> "yellow" [label="timer"];`,
		`"off" -> "light.h" [label="restore"];`,
	} {
		assert.Contains(t, dot, want)
	}
}

func TestVisualizerParallelAndGuards(t *testing.T) {
	t.Parallel()
	cfg, err := primitives.NewDocumentBuilder("").
		Parallel("p").
		Compound("r1").Atomic("a").Always("done", primitives.TransitionConfig{Cond: "ready"}).Final("done").Up().
		Compound("r2").Atomic("b").On("poke", "").Up().
		Up().
		Build()
	require.NoError(t, err)
	doc, err := model.Compile(cfg)
	require.NoError(t, err)

	dot := (&Visualizer{}).ExportDOT(doc, nil)
	assert.Contains(t, dot, `digraph "chart" {`)
	assert.Contains(t, dot, `style=dashed;`)
	assert.Contains(t, dot, `"done" [shape=doublecircle];`)
	assert.Contains(t, dot, `"a" -> "done" [label="always [ready]"];`)
	assert.Contains(t, dot, `"b" -> "b" [label="poke", style=dotted];`)
}

func TestVisualizerExportJSON(t *testing.T) {
	t.Parallel()
	data, err := (&Visualizer{}).ExportJSON(trafficDoc(t), []string{"off"})
	require.NoError(t, err)

	var g Graph
	require.NoError(t, json.Unmarshal(data, &g))
	assert.Equal(t, "traffic", g.Name)
	require.Len(t, g.Nodes, 6)
	assert.Equal(t, GraphNode{ID: "light", Kind: "compound"}, g.Nodes[0])
	assert.Equal(t, GraphNode{ID: "light.h", Kind: "history", Parent: "light"}, g.Nodes[1])
	assert.Equal(t, GraphNode{ID: "off", Kind: "basic", Active: true}, g.Nodes[5])
	assert.Contains(t, g.Edges, GraphEdge{From: "light", To: []string{"off"}, Event: "outage"})
}
