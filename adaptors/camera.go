package adaptors

import "github.com/chenyanchen/scenesync"

// Camera mirrors perspective and orthographic cameras. Projection parameters
// are pushed into the camera binding next to the transform.
type Camera struct {
	spatial
}

var (
	_ scenesync.SceneObjectProvider = (*Camera)(nil)
	_ scenesync.PropertyProvider    = (*Camera)(nil)
)

func NewPerspectiveCamera(h scenesync.Host, n scenesync.Node) *Camera {
	return &Camera{spatial: newSpatial(h, n, scenesync.KindCamera,
		param{name: "fov", def: float32(35)},
		param{name: "aspect", def: float32(1)},
		param{name: "near", def: float32(0.1)},
		param{name: "far", def: float32(1000)},
	)}
}

func NewOrthographicCamera(h scenesync.Host, n scenesync.Node) *Camera {
	return &Camera{spatial: newSpatial(h, n, scenesync.KindCamera,
		param{name: "left", def: float32(-10)},
		param{name: "right", def: float32(10)},
		param{name: "bottom", def: float32(-10)},
		param{name: "top", def: float32(10)},
		param{name: "near", def: float32(0.1)},
		param{name: "far", def: float32(1000)},
	)}
}

// Camera returns the camera object, zero before the first sync.
func (a *Camera) Camera() scenesync.ObjectID { return a.object }

func (a *Camera) Sync(_ *scenesync.Issues) bool {
	return a.syncSpatial()
}

func (a *Camera) Close() {
	a.closeSpatial()
}
