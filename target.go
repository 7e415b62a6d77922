package scenesync

import "fmt"

// ObjectID is a handle to an object owned by the target engine. Zero is never
// a valid handle.
type ObjectID uint64

// ObjectKind is the kind of target engine object requested on creation.
type ObjectKind uint8

const (
	KindNode ObjectKind = iota + 1
	KindMeshNode
	KindCamera
	KindRenderPass
	KindBinding
	KindScript
	KindAppearance
	KindEffect
	KindArray
)

var objectKindNames = map[ObjectKind]string{
	KindNode:       "node",
	KindMeshNode:   "meshnode",
	KindCamera:     "camera",
	KindRenderPass: "renderpass",
	KindBinding:    "binding",
	KindScript:     "script",
	KindAppearance: "appearance",
	KindEffect:     "effect",
	KindArray:      "array",
}

func (k ObjectKind) String() string {
	if name, ok := objectKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Endpoint addresses one input or output property of an engine object.
type Endpoint struct {
	Object   ObjectID
	Property string
}

func (e Endpoint) String() string {
	return fmt.Sprintf("#%d.%s", e.Object, e.Property)
}

// Fault is a runtime fault reported by the target engine against one of its
// objects.
type Fault struct {
	Object  ObjectID
	Message string
}

// Engine is the set of target engine capabilities the core invokes.
type Engine interface {
	Create(kind ObjectKind, name string) ObjectID
	// Destroy releases an object. Resources are reference counted by the
	// engine and only go away with their last holder.
	Destroy(id ObjectID)
	Rename(id ObjectID, name string)
	// SetParent places child under parent; a zero parent detaches to the root.
	SetParent(child, parent ObjectID) error
	Set(ep Endpoint, value any) error
	Link(from, to Endpoint) error
	Unlink(from, to Endpoint) error
	// CreateResource returns a deduplicated resource holding data.
	CreateResource(kind ObjectKind, name string, data any) (ObjectID, error)
	Faults() []Fault
}
