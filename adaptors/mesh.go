package adaptors

import (
	"fmt"
	"reflect"

	"cogentcore.org/core/math32"

	"github.com/chenyanchen/scenesync"
)

// Mesh mirrors geometry as deduplicated array resources. A mesh with invalid
// data owns nothing and mesh nodes fall back to the default geometry.
type Mesh struct {
	scenesync.Base
	vertices scenesync.ObjectID
	indices  scenesync.ObjectID
	normals  scenesync.ObjectID
	data     meshData
	name     string
}

type meshData struct {
	vertices []math32.Vector3
	indices  []int
	normals  []math32.Vector3
}

func NewMesh(h scenesync.Host, n scenesync.Node) *Mesh {
	return &Mesh{Base: scenesync.NewBase(h, n)}
}

// Valid reports whether the mesh currently owns geometry.
func (a *Mesh) Valid() bool { return a.vertices != 0 }

func (a *Mesh) HasNormals() bool { return a.normals != 0 }

func (a *Mesh) Vertices() scenesync.ObjectID { return a.vertices }

func (a *Mesh) Indices() scenesync.ObjectID { return a.indices }

func (a *Mesh) Normals() scenesync.ObjectID { return a.normals }

func (a *Mesh) Sync(issues *scenesync.Issues) bool {
	n := a.Node()
	data := meshData{
		vertices: vec3sProp(n, "vertices"),
		indices:  intsProp(n, "indices"),
		normals:  vec3sProp(n, "normals"),
	}
	if prop, err := validateMesh(data); err != nil {
		a.Fail(issues, prop, "%s", err)
		wasValid := a.Valid()
		a.release()
		return wasValid
	}
	e := a.Host().Engine()
	name := n.Name()
	if a.Valid() && reflect.DeepEqual(a.data, data) {
		return rename(e, &a.name, name,
			namedObject{id: a.vertices, suffix: "_vertices"},
			namedObject{id: a.indices, suffix: "_indices"},
			namedObject{id: a.normals, suffix: "_normals"},
		)
	}
	vertices, err := e.CreateResource(scenesync.KindArray, name+"_vertices", data.vertices)
	if err != nil {
		a.Fail(issues, "vertices", "create vertex buffer: %s", err)
		return a.releaseAndReport()
	}
	indices, err := e.CreateResource(scenesync.KindArray, name+"_indices", data.indices)
	if err != nil {
		e.Destroy(vertices)
		a.Fail(issues, "indices", "create index buffer: %s", err)
		return a.releaseAndReport()
	}
	var normals scenesync.ObjectID
	if len(data.normals) > 0 {
		if normals, err = e.CreateResource(scenesync.KindArray, name+"_normals", data.normals); err != nil {
			e.Destroy(vertices)
			e.Destroy(indices)
			a.Fail(issues, "normals", "create normal buffer: %s", err)
			return a.releaseAndReport()
		}
	}

	a.release()
	a.vertices, a.indices, a.normals = vertices, indices, normals
	a.data, a.name = data, name
	return true
}

func (a *Mesh) releaseAndReport() bool {
	wasValid := a.Valid()
	a.release()
	return wasValid
}

func (a *Mesh) release() {
	e := a.Host().Engine()
	for _, id := range []scenesync.ObjectID{a.normals, a.indices, a.vertices} {
		if id != 0 {
			e.Destroy(id)
		}
	}
	a.vertices, a.indices, a.normals = 0, 0, 0
	a.data = meshData{}
	a.name = ""
}

func (a *Mesh) Close() {
	a.release()
}

func validateMesh(d meshData) (string, error) {
	if len(d.vertices) == 0 {
		return "vertices", fmt.Errorf("mesh has no vertices")
	}
	if len(d.indices) == 0 || len(d.indices)%3 != 0 {
		return "indices", fmt.Errorf("index count %d is not a positive multiple of 3", len(d.indices))
	}
	for i, idx := range d.indices {
		if idx < 0 || idx >= len(d.vertices) {
			return "indices", fmt.Errorf("index %d at position %d is out of range [0, %d)", idx, i, len(d.vertices))
		}
	}
	if len(d.normals) > 0 && len(d.normals) != len(d.vertices) {
		return "normals", fmt.Errorf("%d normals for %d vertices", len(d.normals), len(d.vertices))
	}
	return "", nil
}
