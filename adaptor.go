package scenesync

import (
	"fmt"
	"reflect"
)

// Adaptor mirrors one eligible node into engine objects it owns.
type Adaptor interface {
	Node() Node
	Dirty() bool
	MarkDirty(dirty bool)
	// Sync pushes the node's current state into the engine and reports
	// whether any externally observable output changed. Data problems are
	// recorded in issues; Sync never fails. The scene clears the dirty flag
	// once Sync returns.
	Sync(issues *Issues) bool
	// Close destroys owned engine objects and releases cached resources.
	Close()
}

// PropertyProvider is implemented by adaptors exposing logic-bindable
// properties that links can attach to.
type PropertyProvider interface {
	Adaptor
	Endpoint(path string) (Endpoint, bool)
	// LogicObjects lists the engine objects runtime faults can be reported on.
	LogicObjects() []ObjectID
}

// SceneObjectProvider is implemented by adaptors owning a scene-placeable
// object. SceneObject returns zero while the adaptor is absent.
type SceneObjectProvider interface {
	Adaptor
	SceneObject() ObjectID
}

// Base carries the state shared by all adaptor kinds and is meant to be
// embedded.
type Base struct {
	host   Host
	node   Node
	dirty  bool
	pushed map[Endpoint]any
}

func NewBase(h Host, n Node) Base {
	return Base{
		host:   h,
		node:   n,
		dirty:  true,
		pushed: make(map[Endpoint]any),
	}
}

func (b *Base) Node() Node { return b.node }

func (b *Base) Host() Host { return b.host }

func (b *Base) Dirty() bool { return b.dirty }

func (b *Base) MarkDirty(dirty bool) { b.dirty = dirty }

// Push writes value to ep unless it equals the value last pushed there, and
// reports whether the engine was written.
func (b *Base) Push(ep Endpoint, value any) bool {
	if prev, ok := b.pushed[ep]; ok && reflect.DeepEqual(prev, value) {
		return false
	}
	if err := b.host.Engine().Set(ep, value); err != nil {
		b.host.Logger().Warn("push property",
			"node", string(b.node.ID()), "endpoint", ep.String(), "err", err)
		return false
	}
	b.pushed[ep] = value
	return true
}

// Forget drops the remembered values of a destroyed or recreated object.
func (b *Base) Forget(obj ObjectID) {
	for ep := range b.pushed {
		if ep.Object == obj {
			delete(b.pushed, ep)
		}
	}
}

// ForgetEndpoint drops the value remembered for ep so the next Push writes
// it again.
func (b *Base) ForgetEndpoint(ep Endpoint) {
	delete(b.pushed, ep)
}

// Fail records a structural error for the adaptor's node.
func (b *Base) Fail(issues *Issues, property string, format string, args ...any) {
	issues.Add(Issue{
		Node:     b.node.ID(),
		Property: property,
		Category: CategoryStructural,
		Level:    LevelError,
		Message:  fmt.Sprintf(format, args...),
	})
}

// LookupAs is a typed wrapper around Host.Lookup.
func LookupAs[T Adaptor](h Host, id NodeID) (T, error) {
	var zero T
	a, ok := h.Lookup(id)
	if !ok {
		return zero, NodeNotFoundError{ID: id}
	}
	typed, ok := a.(T)
	if !ok {
		return zero, TypeMismatchError{
			ID:       id,
			Expected: reflect.TypeOf((*T)(nil)).Elem().String(),
			Actual:   fmt.Sprintf("%T", a),
		}
	}
	return typed, nil
}
