package scenesync

import (
	"fmt"
	"strings"
)

// EdgeKind tells why one node reads another.
type EdgeKind uint8

const (
	EdgeRef   EdgeKind = iota // reference-valued property
	EdgeChild                 // a parent reads its children's scene objects
	EdgeLink                  // valid, non-weak link ending at the node
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeRef:
		return "ref"
	case EdgeChild:
		return "child"
	case EdgeLink:
		return "link"
	}
	return fmt.Sprintf("EdgeKind(%d)", uint8(k))
}

type GraphNode struct {
	ID   NodeID `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// GraphEdge means "From reads To".
type GraphEdge struct {
	From NodeID   `json:"from"`
	To   NodeID   `json:"to"`
	Kind EdgeKind `json:"kind"`
}

// Graph is a snapshot of the dependency graph. Nodes are listed in visiting
// order. Cycles holds the link cycles whose closing edge was left out.
type Graph struct {
	Nodes  []GraphNode `json:"nodes"`
	Edges  []GraphEdge `json:"edges"`
	Cycles [][]NodeID  `json:"cycles,omitempty"`
}

func (g *dependencyGraph) snapshot() Graph {
	if g == nil {
		return Graph{}
	}
	out := Graph{Nodes: make([]GraphNode, 0, len(g.entries))}
	for _, e := range g.entries {
		out.Nodes = append(out.Nodes, GraphNode{ID: e.Node.ID(), Name: e.Node.Name(), Type: e.Node.Type()})
		for i, ref := range e.References {
			out.Edges = append(out.Edges, GraphEdge{From: e.Node.ID(), To: ref, Kind: e.kinds[i]})
		}
	}
	for _, c := range g.cycles {
		out.Cycles = append(out.Cycles, c.Path)
	}
	return out
}

// Order returns the node ids in visiting order.
func (g Graph) Order() []NodeID {
	ids := make([]NodeID, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	return ids
}

func (g Graph) aliases() map[NodeID]string {
	aliases := make(map[NodeID]string, len(g.Nodes))
	for i, n := range g.Nodes {
		aliases[n.ID] = fmt.Sprintf("n%d", i)
	}
	return aliases
}

// cycleClosers returns the dropped back edges in discovery order.
func (g Graph) cycleClosers() [][2]NodeID {
	var out [][2]NodeID
	seen := make(map[[2]NodeID]struct{}, len(g.Cycles))
	for _, c := range g.Cycles {
		if len(c) < 2 {
			continue
		}
		closer := [2]NodeID{c[len(c)-2], c[len(c)-1]}
		if _, dup := seen[closer]; dup {
			continue
		}
		seen[closer] = struct{}{}
		out = append(out, closer)
	}
	return out
}

var dotEdgeAttrs = map[EdgeKind]string{
	EdgeRef:   "",
	EdgeChild: " [style=dashed, arrowhead=odot]",
	EdgeLink:  " [color=blue, label=\"link\"]",
}

// DOT exports Graphviz DOT text with edges styled by kind. Dropped cycle
// edges are drawn red and dotted.
func (g Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph scene {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box];\n")

	aliases := g.aliases()
	for _, n := range g.Nodes {
		label := escapeDOT(n.Name)
		if n.Type != "" {
			label += "\\n(" + escapeDOT(n.Type) + ")"
		}
		fmt.Fprintf(&b, "  %s [label=\"%s\"];\n", aliases[n.ID], label)
	}
	for _, e := range g.Edges {
		from, okFrom := aliases[e.From]
		to, okTo := aliases[e.To]
		if !okFrom || !okTo {
			continue
		}
		fmt.Fprintf(&b, "  %s -> %s%s;\n", from, to, dotEdgeAttrs[e.Kind])
	}
	for _, closer := range g.cycleClosers() {
		from, okFrom := aliases[closer[0]]
		to, okTo := aliases[closer[1]]
		if okFrom && okTo {
			fmt.Fprintf(&b, "  %s -> %s [color=red, style=dotted, label=\"cycle\"];\n", from, to)
		}
	}
	b.WriteString("}\n")
	return b.String()
}

var mermaidArrows = map[EdgeKind]string{
	EdgeRef:   "-->",
	EdgeChild: "-.->",
	EdgeLink:  "==>|link|",
}

// Mermaid exports Mermaid flowchart text using the same edge distinctions as
// DOT.
func (g Graph) Mermaid() string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	aliases := g.aliases()
	for _, n := range g.Nodes {
		label := escapeMermaid(n.Name)
		if n.Type != "" {
			label += "<br/>(" + escapeMermaid(n.Type) + ")"
		}
		fmt.Fprintf(&b, "    %s[\"%s\"]\n", aliases[n.ID], label)
	}
	for _, e := range g.Edges {
		from, okFrom := aliases[e.From]
		to, okTo := aliases[e.To]
		if !okFrom || !okTo {
			continue
		}
		fmt.Fprintf(&b, "    %s %s %s\n", from, mermaidArrows[e.Kind], to)
	}
	for _, closer := range g.cycleClosers() {
		from, okFrom := aliases[closer[0]]
		to, okTo := aliases[closer[1]]
		if okFrom && okTo {
			fmt.Fprintf(&b, "    %s -.->|cycle| %s\n", from, to)
		}
	}
	return b.String()
}

var (
	dotEscaper     = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	mermaidEscaper = strings.NewReplacer(`"`, "#quot;", "<", "#lt;", ">", "#gt;")
)

func escapeDOT(s string) string { return dotEscaper.Replace(s) }

func escapeMermaid(s string) string { return mermaidEscaper.Replace(s) }
