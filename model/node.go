package model

import (
	"fmt"

	"cogentcore.org/core/base/ordmap"
	"cogentcore.org/core/math32"

	"github.com/chenyanchen/scenesync"
)

// NameProperty is reported through PropertyChanged when a node is renamed.
const NameProperty = "objectName"

// ParentProperty is reported through PropertyChanged on the moved node.
const ParentProperty = "parent"

// Node is one entity of a Project. All methods are safe to call from
// listeners.
type Node struct {
	project  *Project
	id       scenesync.NodeID
	name     string
	typ      string
	props    *ordmap.Map[string, any]
	parent   *Node
	children []*Node
}

var _ scenesync.Node = (*Node)(nil)

func (n *Node) ID() scenesync.NodeID { return n.id }

func (n *Node) Name() string {
	n.project.mu.RLock()
	defer n.project.mu.RUnlock()
	return n.name
}

func (n *Node) Type() string { return n.typ }

func (n *Node) Property(name string) (any, bool) {
	n.project.mu.RLock()
	defer n.project.mu.RUnlock()
	return n.props.ValueByKeyTry(name)
}

func (n *Node) Properties() []scenesync.Property {
	n.project.mu.RLock()
	defer n.project.mu.RUnlock()
	out := make([]scenesync.Property, 0, n.props.Len())
	for _, kv := range n.props.Order {
		out = append(out, scenesync.Property{Name: kv.Key, Value: kv.Value})
	}
	return out
}

func (n *Node) Children() []scenesync.Node {
	n.project.mu.RLock()
	defer n.project.mu.RUnlock()
	out := make([]scenesync.Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

func (n *Node) Parent() scenesync.Node {
	n.project.mu.RLock()
	defer n.project.mu.RUnlock()
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *Node) String() string {
	return fmt.Sprintf("%s(%s)", n.typ, n.id)
}

func (n *Node) subtree(out []*Node) []*Node {
	for _, c := range n.children {
		out = c.subtree(out)
	}
	return append(out, n)
}

func (n *Node) isAncestorOf(other *Node) bool {
	for p := other; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

func checkValue(v any) error {
	switch v := v.(type) {
	case bool, int, float64, string, math32.Vector3, []math32.Vector3, []int,
		scenesync.Ref, []scenesync.Ref, scenesync.ExclusiveOrder:
		return nil
	case scenesync.Table:
		for _, p := range v {
			if err := checkValue(p.Value); err != nil {
				return fmt.Errorf("%s: %w", p.Name, err)
			}
		}
		return nil
	}
	return fmt.Errorf("unsupported property value type %T", v)
}

// dropRefs removes references to gone nodes from v and reports whether any
// was removed.
func dropRefs(v any, gone map[scenesync.NodeID]struct{}) (any, bool) {
	switch v := v.(type) {
	case scenesync.Ref:
		if _, ok := gone[scenesync.NodeID(v)]; ok {
			return scenesync.Ref(""), true
		}
	case []scenesync.Ref:
		kept := make([]scenesync.Ref, 0, len(v))
		for _, r := range v {
			if _, ok := gone[scenesync.NodeID(r)]; !ok {
				kept = append(kept, r)
			}
		}
		if len(kept) != len(v) {
			return kept, true
		}
	case scenesync.Table:
		var changed bool
		out := make(scenesync.Table, len(v))
		for i, p := range v {
			nv, c := dropRefs(p.Value, gone)
			out[i] = scenesync.Property{Name: p.Name, Value: nv}
			changed = changed || c
		}
		if changed {
			return out, true
		}
	}
	return v, false
}
