package scenesync

import "strings"

// NodeID is the identity of a node in the upstream object model.
type NodeID string

// ChildrenProperty is the structural property name reported when a node's
// children change.
const ChildrenProperty = "children"

// Node is a read-only handle onto one entity of the upstream object model.
// The core never owns nodes; it observes them through Listener notifications.
type Node interface {
	ID() NodeID
	Name() string
	Type() string
	Property(name string) (any, bool)
	Properties() []Property
	Children() []Node
	// Parent returns nil for top-level nodes.
	Parent() Node
}

// Property is one named value of a node.
//
// Values are bool, int, float64, string, math32.Vector3, []math32.Vector3,
// []int, Ref, []Ref, ExclusiveOrder or Table.
type Property struct {
	Name  string `json:"name" yaml:"name"`
	Value any    `json:"value" yaml:"value"`
}

// Ref is a reference-valued property pointing at another node.
type Ref NodeID

// Table is an ordered group of nested properties.
type Table []Property

// Get returns the value stored under name.
func (t Table) Get(name string) (any, bool) {
	for _, p := range t {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// ExclusiveOrder is a property value claiming an exclusive ordering slot among
// all nodes of the same type carrying the same property.
type ExclusiveOrder int

// Model is the read side of the upstream object model.
type Model interface {
	// Nodes returns every node in creation order.
	Nodes() []Node
	Lookup(id NodeID) (Node, bool)
	// Links returns every link in creation order.
	Links() []Link
}

// Listener receives upstream change notifications.
type Listener interface {
	NodeCreated(n Node)
	NodeRemoved(n Node)
	PropertyChanged(n Node, property string)
	LinkCreated(l Link)
	LinkRemoved(l Link)
	LinkValidityChanged(l Link, valid bool)
	// BatchEnd closes one change batch with the nodes changed in it.
	BatchEnd(changed []Node)
}

// PropertyRef addresses a property of a node by dotted path.
type PropertyRef struct {
	Node NodeID `json:"node" yaml:"node"`
	Path string `json:"path" yaml:"path"`
}

func (p PropertyRef) String() string {
	return string(p.Node) + ":" + p.Path
}

// Root returns the first path segment.
func (p PropertyRef) Root() string {
	root, _, _ := strings.Cut(p.Path, ".")
	return root
}

// LinkKey identifies a link independent of its validity.
type LinkKey struct {
	Start PropertyRef
	End   PropertyRef
}

func (k LinkKey) String() string {
	return k.Start.String() + " -> " + k.End.String()
}

// Link is a directed property-level data connection. The end property has at
// most one active link bound to it.
type Link struct {
	Start PropertyRef `json:"start" yaml:"start"`
	End   PropertyRef `json:"end" yaml:"end"`
	Valid bool        `json:"valid" yaml:"valid"`
	// Weak links do not constrain update order.
	Weak bool `json:"weak,omitempty" yaml:"weak,omitempty"`
}

func (l Link) Key() LinkKey {
	return LinkKey{Start: l.Start, End: l.End}
}

func (l Link) String() string {
	s := l.Key().String()
	if l.Weak {
		s += " (weak)"
	}
	if !l.Valid {
		s += " (invalid)"
	}
	return s
}
