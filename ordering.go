package scenesync

import (
	"fmt"
	"strings"

	"cogentcore.org/core/base/ordmap"
)

type orderSlot struct {
	typ      string
	property string
	value    ExclusiveOrder
}

// orderConflicts returns a warning for every node sharing an exclusive order
// value with another node of the same type on the same property.
func orderConflicts(nodes []Node) []Issue {
	slots := ordmap.New[orderSlot, []Node]()
	for _, n := range nodes {
		for _, p := range n.Properties() {
			v, ok := p.Value.(ExclusiveOrder)
			if !ok {
				continue
			}
			slot := orderSlot{typ: n.Type(), property: p.Name, value: v}
			slots.Add(slot, append(slots.ValueByKey(slot), n))
		}
	}

	var issues []Issue
	for _, kv := range slots.Order {
		if len(kv.Value) < 2 {
			continue
		}
		for _, n := range kv.Value {
			issues = append(issues, Issue{
				Node:     n.ID(),
				Property: kv.Key.property,
				Category: CategoryOrderConflict,
				Level:    LevelWarning,
				Message: fmt.Sprintf("%s %d is shared with %s; rendering order between them is undefined",
					kv.Key.property, int(kv.Key.value), others(kv.Value, n)),
			})
		}
	}
	return issues
}

func others(nodes []Node, self Node) string {
	names := make([]string, 0, len(nodes)-1)
	for _, n := range nodes {
		if n.ID() != self.ID() {
			names = append(names, "'"+n.Name()+"'")
		}
	}
	return strings.Join(names, ", ")
}
