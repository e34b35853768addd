package production

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/comalice/chartx/internal/model"
)

// Visualizer renders compiled documents.
type Visualizer struct{}

// Graph is the JSON form of a document.
type Graph struct {
	Name  string      `json:"name,omitempty"`
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

type GraphNode struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Parent string `json:"parent,omitempty"`
	Active bool   `json:"active,omitempty"`
}

type GraphEdge struct {
	From    string   `json:"from"`
	To      []string `json:"to,omitempty"`
	Event   string   `json:"event,omitempty"`
	Cond    string   `json:"cond,omitempty"`
	Guarded bool     `json:"guarded,omitempty"`
	Kind    string   `json:"kind,omitempty"`
}

// Graph builds the node and edge lists, marking the active ids.
func (v *Visualizer) Graph(doc *model.Document, active []string) Graph {
	on := activeSet(active)
	g := Graph{Name: doc.Name}
	for i := 1; i < doc.Len(); i++ {
		n := doc.Node(model.NodeID(i))
		node := GraphNode{ID: n.ID, Kind: kindLabel(n), Active: on[n.ID]}
		if n.Parent != model.RootID {
			node.Parent = doc.Node(n.Parent).ID
		}
		g.Nodes = append(g.Nodes, node)
	}
	for _, t := range doc.Transitions() {
		if t.Source == model.RootID {
			continue
		}
		edge := GraphEdge{
			From:    doc.Node(t.Source).ID,
			To:      doc.IDs(t.Targets),
			Event:   strings.Join(t.Events, " "),
			Cond:    t.Cond,
			Guarded: t.Guard != nil,
		}
		if t.Internal {
			edge.Kind = "internal"
		}
		g.Edges = append(g.Edges, edge)
	}
	return g
}

// ExportJSON renders Graph as indented JSON.
func (v *Visualizer) ExportJSON(doc *model.Document, active []string) ([]byte, error) {
	return json.MarshalIndent(v.Graph(doc, active), "", "  ")
}

// ExportDOT renders Graphviz source. Compound and parallel states become
// clusters; active states are filled.
func (v *Visualizer) ExportDOT(doc *model.Document, active []string) string {
	on := activeSet(active)
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph %q {\n", graphName(doc))
	buf.WriteString("  compound=true;\n  rankdir=LR;\n  node [shape=box, fontsize=10, style=rounded];\n  edge [fontsize=9];\n")

	root := doc.Root()
	buf.WriteString("  \"__start\" [shape=point];\n")
	for _, child := range root.Children {
		renderNode(&buf, doc, child, on, 1)
	}
	if root.Initial != nil {
		for _, target := range root.Initial.Targets {
			fmt.Fprintf(&buf, "  \"__start\" -> %q;\n", doc.Node(target).ID)
		}
	}
	for _, t := range doc.Transitions() {
		if t.Source == model.RootID {
			continue
		}
		from := doc.Node(t.Source).ID
		label := edgeLabel(t)
		if t.Targetless() {
			fmt.Fprintf(&buf, "  %q -> %q [label=%q, style=dotted];\n", from, from, label)
			continue
		}
		for _, target := range t.Targets {
			fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", from, doc.Node(target).ID, label)
		}
	}
	buf.WriteString("}\n")
	return buf.String()
}

func renderNode(buf *bytes.Buffer, doc *model.Document, id model.NodeID, on map[string]bool, depth int) {
	n := doc.Node(id)
	indent := strings.Repeat("  ", depth)
	fill := ""
	if on[n.ID] {
		fill = ", style=filled, fillcolor=lightgreen"
	}
	switch n.Kind {
	case model.Compound, model.Parallel:
		fmt.Fprintf(buf, "%ssubgraph %q {\n", indent, "cluster_"+n.ID)
		fmt.Fprintf(buf, "%s  label=%q;\n", indent, fmt.Sprintf("%s (%s)", n.ID, n.Kind))
		if n.Kind == model.Parallel {
			fmt.Fprintf(buf, "%s  style=dashed;\n", indent)
		}
		if on[n.ID] {
			fmt.Fprintf(buf, "%s  color=darkgreen;\n", indent)
		}
		fmt.Fprintf(buf, "%s  %q [shape=ellipse%s];\n", indent, n.ID, fill)
		for _, h := range n.History {
			renderNode(buf, doc, h, on, depth+1)
		}
		for _, child := range n.Children {
			renderNode(buf, doc, child, on, depth+1)
		}
		fmt.Fprintf(buf, "%s}\n", indent)
	case model.Final:
		fmt.Fprintf(buf, "%s%q [shape=doublecircle%s];\n", indent, n.ID, fill)
	case model.History:
		label := "H"
		if n.Deep {
			label = "H*"
		}
		fmt.Fprintf(buf, "%s%q [shape=circle, label=%q];\n", indent, n.ID, label)
	default:
		fmt.Fprintf(buf, "%s%q [label=%q%s];\n", indent, n.ID, n.ID, fill)
	}
}

func edgeLabel(t *model.Transition) string {
	label := strings.Join(t.Events, " ")
	if label == "" {
		label = "always"
	}
	switch {
	case t.Cond != "":
		label += " [" + t.Cond + "]"
	case t.Guard != nil:
		label += " [guard]"
	}
	return label
}

func kindLabel(n *model.Node) string {
	if n.Kind == model.History && n.Deep {
		return "history(deep)"
	}
	return n.Kind.String()
}

func graphName(doc *model.Document) string {
	if doc.Name == "" {
		return "chart"
	}
	return doc.Name
}

func activeSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
