package adaptors

import (
	"cogentcore.org/core/math32"

	"github.com/chenyanchen/scenesync"
)

func boolProp(n scenesync.Node, name string, def bool) bool {
	if v, ok := n.Property(name); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func stringProp(n scenesync.Node, name string) string {
	if v, ok := n.Property(name); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func intProp(n scenesync.Node, name string, def int) int {
	v, ok := n.Property(name)
	if !ok {
		return def
	}
	switch v := v.(type) {
	case int:
		return v
	case scenesync.ExclusiveOrder:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// floatValue converts numeric property values to float32.
func floatValue(v any) (float32, bool) {
	switch v := v.(type) {
	case float64:
		return float32(v), true
	case int:
		return float32(v), true
	}
	return 0, false
}

func vec3sProp(n scenesync.Node, name string) []math32.Vector3 {
	if v, ok := n.Property(name); ok {
		if vecs, ok := v.([]math32.Vector3); ok {
			return vecs
		}
	}
	return nil
}

func intsProp(n scenesync.Node, name string) []int {
	if v, ok := n.Property(name); ok {
		if ints, ok := v.([]int); ok {
			return ints
		}
	}
	return nil
}

func refProp(n scenesync.Node, name string) scenesync.NodeID {
	if v, ok := n.Property(name); ok {
		if r, ok := v.(scenesync.Ref); ok {
			return scenesync.NodeID(r)
		}
	}
	return ""
}

func tableProp(n scenesync.Node, name string) scenesync.Table {
	if v, ok := n.Property(name); ok {
		if t, ok := v.(scenesync.Table); ok {
			return t
		}
	}
	return nil
}

// engineValue converts a property value to the type pushed into the engine.
func engineValue(v any) any {
	if f, ok := v.(float64); ok {
		return float32(f)
	}
	return v
}

// namedObject is an owned engine object named after its node plus suffix.
type namedObject struct {
	id     scenesync.ObjectID
	suffix string
}

// rename follows a node rename: when name differs from *current every
// present object is renamed and *current is updated. It reports whether
// anything was renamed.
func rename(e scenesync.Engine, current *string, name string, objs ...namedObject) bool {
	if *current == name {
		return false
	}
	for _, o := range objs {
		if o.id != 0 {
			e.Rename(o.id, name+o.suffix)
		}
	}
	*current = name
	return true
}
