package adaptors

import (
	"errors"

	"github.com/chenyanchen/scenesync"
)

// MeshNode mirrors a renderable node. Geometry and appearance come from the
// referenced Mesh and Material when they are valid and from shared default
// resources otherwise.
type MeshNode struct {
	spatial

	appearance *scenesync.ResourceHandle
	vertices   *scenesync.ResourceHandle
	indices    *scenesync.ResourceHandle
}

var (
	_ scenesync.SceneObjectProvider = (*MeshNode)(nil)
	_ scenesync.PropertyProvider    = (*MeshNode)(nil)
)

func NewMeshNode(h scenesync.Host, n scenesync.Node) *MeshNode {
	return &MeshNode{spatial: newSpatial(h, n, scenesync.KindMeshNode)}
}

// UsesDefaultAppearance reports whether the fallback appearance is bound.
func (a *MeshNode) UsesDefaultAppearance() bool { return a.appearance != nil }

// UsesDefaultGeometry reports whether the fallback cube is bound.
func (a *MeshNode) UsesDefaultGeometry() bool { return a.vertices != nil }

func (a *MeshNode) Sync(issues *scenesync.Issues) bool {
	changed := a.syncSpatial()
	n := a.Node()

	mesh := resolveRef[*Mesh](a.Host(), issues, &a.Base, "mesh", TypeMesh)
	material := resolveRef[*Material](a.Host(), issues, &a.Base, "material", TypeMaterial)

	var vertices, indices scenesync.ObjectID
	if mesh != nil && mesh.Valid() {
		a.vertices = a.release(a.vertices)
		a.indices = a.release(a.indices)
		vertices, indices = mesh.Vertices(), mesh.Indices()
	} else {
		a.vertices = a.acquire(issues, a.vertices, scenesync.ResourceKey{Kind: scenesync.ResourceVertices})
		a.indices = a.acquire(issues, a.indices, scenesync.ResourceKey{Kind: scenesync.ResourceIndices})
		vertices, indices = handleObject(a.vertices), handleObject(a.indices)
	}

	var appearance scenesync.ObjectID
	if material != nil && material.Valid() {
		a.appearance = a.release(a.appearance)
		appearance = material.Appearance()
	} else {
		key := scenesync.ResourceKey{
			Kind:        scenesync.ResourceAppearance,
			Normals:     mesh != nil && mesh.Valid() && mesh.HasNormals(),
			Highlighted: boolProp(n, "highlighted", false),
			Transparent: boolProp(n, "transparent", false),
		}
		a.appearance = a.acquire(issues, a.appearance, key)
		appearance = handleObject(a.appearance)
	}

	values := []struct {
		property string
		value    any
	}{
		{"appearance", appearance},
		{"vertices", vertices},
		{"indices", indices},
		{"instanceCount", intProp(n, "instanceCount", 1)},
	}
	for _, v := range values {
		if a.Push(scenesync.Endpoint{Object: a.object, Property: v.property}, v.value) {
			changed = true
		}
	}
	return changed
}

// acquire returns a handle for key, reusing cur when it already matches. The
// new handle is taken before the old one is released.
func (a *MeshNode) acquire(issues *scenesync.Issues, cur *scenesync.ResourceHandle, key scenesync.ResourceKey) *scenesync.ResourceHandle {
	if cur != nil && cur.Key() == key {
		return cur
	}
	h, err := a.Host().Resources().Acquire(key)
	if err != nil {
		a.Fail(issues, "", "default %s unavailable: %s", key.Kind, err)
		return a.release(cur)
	}
	a.release(cur)
	return h
}

func (a *MeshNode) release(h *scenesync.ResourceHandle) *scenesync.ResourceHandle {
	h.Release()
	return nil
}

func (a *MeshNode) Close() {
	a.closeSpatial()
	a.appearance = a.release(a.appearance)
	a.vertices = a.release(a.vertices)
	a.indices = a.release(a.indices)
}

func handleObject(h *scenesync.ResourceHandle) scenesync.ObjectID {
	if h == nil {
		return 0
	}
	return h.Object()
}

// resolveRef looks up the adaptor referenced by property. An unset reference
// yields nil silently; a dangling or wrong-typed one also records an issue.
func resolveRef[T scenesync.Adaptor](h scenesync.Host, issues *scenesync.Issues, b *scenesync.Base, property, want string) T {
	var zero T
	id := refProp(b.Node(), property)
	if id == "" {
		return zero
	}
	a, err := scenesync.LookupAs[T](h, id)
	if err == nil {
		return a
	}
	var mismatch scenesync.TypeMismatchError
	if errors.As(err, &mismatch) {
		b.Fail(issues, property, "%s reference %q is not a %s", property, string(id), want)
		return zero
	}
	b.Fail(issues, property, "%s reference %q is not mirrored", property, string(id))
	return zero
}
