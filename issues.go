package scenesync

import (
	"fmt"

	"cogentcore.org/core/base/ordmap"
)

// Level is the severity of an Issue.
type Level uint8

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	}
	return fmt.Sprintf("level(%d)", uint8(l))
}

// Category classifies where an Issue comes from.
type Category uint8

const (
	// CategoryStructural issues are raised by Sync and cleared by the next
	// resync of the node.
	CategoryStructural Category = iota
	// CategoryRuntimeFault issues mirror faults reported by the engine.
	CategoryRuntimeFault
	// CategoryOrderConflict issues flag nodes claiming the same exclusive order.
	CategoryOrderConflict
)

func (c Category) String() string {
	switch c {
	case CategoryStructural:
		return "structural"
	case CategoryRuntimeFault:
		return "runtime-fault"
	case CategoryOrderConflict:
		return "order-conflict"
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// Issue is a recorded, non-fatal condition attached to a node.
type Issue struct {
	Node     NodeID
	Property string
	Category Category
	Level    Level
	Message  string
}

func (i Issue) String() string {
	target := string(i.Node)
	if i.Property != "" {
		target += "." + i.Property
	}
	return fmt.Sprintf("%s %s %s: %s", i.Level, i.Category, target, i.Message)
}

type issueKey struct {
	node     NodeID
	property string
	category Category
}

// Issues is the error collection the scene reports into. At most one issue is
// kept per node, property and category.
type Issues struct {
	items *ordmap.Map[issueKey, Issue]
}

func NewIssues() *Issues {
	return &Issues{items: ordmap.New[issueKey, Issue]()}
}

// Add records it, replacing an issue with the same node, property and category.
func (s *Issues) Add(it Issue) {
	s.items.Add(issueKey{node: it.Node, property: it.Property, category: it.Category}, it)
}

// Get returns the first issue of the category recorded for node.
func (s *Issues) Get(node NodeID, category Category) (Issue, bool) {
	for _, kv := range s.items.Order {
		if kv.Key.node == node && kv.Key.category == category {
			return kv.Value, true
		}
	}
	return Issue{}, false
}

// Has reports whether any issue is recorded for node.
func (s *Issues) Has(node NodeID) bool {
	for _, kv := range s.items.Order {
		if kv.Key.node == node {
			return true
		}
	}
	return false
}

// ForNode returns the issues of node in insertion order.
func (s *Issues) ForNode(node NodeID) []Issue {
	var out []Issue
	for _, kv := range s.items.Order {
		if kv.Key.node == node {
			out = append(out, kv.Value)
		}
	}
	return out
}

// All returns every issue in insertion order.
func (s *Issues) All() []Issue {
	return s.items.Values()
}

func (s *Issues) Len() int {
	return s.items.Len()
}

// RemoveIf deletes the issues matching fn and returns how many were removed.
func (s *Issues) RemoveIf(fn func(Issue) bool) int {
	var keys []issueKey
	for _, kv := range s.items.Order {
		if fn(kv.Value) {
			keys = append(keys, kv.Key)
		}
	}
	for _, k := range keys {
		s.items.DeleteKey(k)
	}
	return len(keys)
}

// RemoveNode deletes every issue of node.
func (s *Issues) RemoveNode(node NodeID) int {
	return s.RemoveIf(func(it Issue) bool { return it.Node == node })
}
