package scenesync

// DependencyEntry is one node of the dependency graph together with the nodes
// whose output it reads. Every referenced node precedes the entry in graph
// order.
type DependencyEntry struct {
	Node       Node
	References []NodeID

	kinds []EdgeKind
	refs  map[NodeID]struct{}
}

// DependsOn reports whether the entry reads id.
func (e DependencyEntry) DependsOn(id NodeID) bool {
	_, ok := e.refs[id]
	return ok
}

type dependencyGraph struct {
	entries []DependencyEntry
	index   map[NodeID]int
	cycles  []CycleDetectedError
}

func (g *dependencyGraph) empty() bool {
	return g == nil || len(g.entries) == 0
}

func (g *dependencyGraph) position(id NodeID) (int, bool) {
	if g == nil {
		return 0, false
	}
	pos, ok := g.index[id]
	return pos, ok
}

// buildDependencyGraph orders nodes so that references come first. Roots are
// visited in the given order, which keeps unconstrained nodes in creation
// order. Edges closing a cycle are dropped and reported in cycles.
func buildDependencyGraph(nodes []Node, links []Link) *dependencyGraph {
	const (
		stateNew uint8 = iota
		stateVisiting
		stateDone
	)

	byID := make(map[NodeID]Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID()] = n
	}

	incoming := make(map[NodeID][]NodeID)
	for _, l := range links {
		if !l.Valid || l.Weak {
			continue
		}
		incoming[l.End.Node] = append(incoming[l.End.Node], l.Start.Node)
	}

	g := &dependencyGraph{
		entries: make([]DependencyEntry, 0, len(nodes)),
		index:   make(map[NodeID]int, len(nodes)),
	}
	state := make(map[NodeID]uint8, len(nodes))
	stack := make([]NodeID, 0, len(nodes))
	stackPos := make(map[NodeID]int, len(nodes))

	var dfs func(n Node)
	dfs = func(n Node) {
		id := n.ID()
		state[id] = stateVisiting
		stackPos[id] = len(stack)
		stack = append(stack, id)

		entry := DependencyEntry{Node: n, refs: make(map[NodeID]struct{})}
		for _, d := range dependencies(n, incoming[id]) {
			dep := d.id
			target, ok := byID[dep]
			if !ok || dep == id {
				continue
			}
			if _, dup := entry.refs[dep]; dup {
				continue
			}
			if state[dep] == stateVisiting {
				pos := stackPos[dep]
				cycle := append([]NodeID(nil), stack[pos:]...)
				cycle = append(cycle, dep)
				g.cycles = append(g.cycles, CycleDetectedError{Path: cycle})
				continue
			}
			if state[dep] == stateNew {
				dfs(target)
			}
			entry.refs[dep] = struct{}{}
			entry.References = append(entry.References, dep)
			entry.kinds = append(entry.kinds, d.kind)
		}

		stack = stack[:len(stack)-1]
		delete(stackPos, id)
		state[id] = stateDone
		g.index[id] = len(g.entries)
		g.entries = append(g.entries, entry)
	}

	for _, n := range nodes {
		if state[n.ID()] == stateNew {
			dfs(n)
		}
	}
	return g
}

type dependency struct {
	id   NodeID
	kind EdgeKind
}

// dependencies lists the nodes n reads, in property order, then children,
// then link sources.
func dependencies(n Node, linkSources []NodeID) []dependency {
	var out []dependency
	for _, p := range n.Properties() {
		out = appendRefs(out, p.Value)
	}
	for _, c := range n.Children() {
		out = append(out, dependency{id: c.ID(), kind: EdgeChild})
	}
	for _, src := range linkSources {
		out = append(out, dependency{id: src, kind: EdgeLink})
	}
	return out
}

func appendRefs(out []dependency, v any) []dependency {
	switch v := v.(type) {
	case Ref:
		if v != "" {
			out = append(out, dependency{id: NodeID(v), kind: EdgeRef})
		}
	case []Ref:
		for _, r := range v {
			if r != "" {
				out = append(out, dependency{id: NodeID(r), kind: EdgeRef})
			}
		}
	case Table:
		for _, p := range v {
			out = appendRefs(out, p.Value)
		}
	}
	return out
}
