package adaptors

import (
	"github.com/chenyanchen/scenesync"
)

// RenderPass mirrors a render pass drawing through a camera. The order
// property claims an exclusive slot among render passes.
type RenderPass struct {
	scenesync.Base
	object scenesync.ObjectID
	name   string
}

var _ scenesync.PropertyProvider = (*RenderPass)(nil)

func NewRenderPass(h scenesync.Host, n scenesync.Node) *RenderPass {
	return &RenderPass{Base: scenesync.NewBase(h, n)}
}

// Object returns the render pass object, zero while it is absent.
func (a *RenderPass) Object() scenesync.ObjectID { return a.object }

func (a *RenderPass) Endpoint(path string) (scenesync.Endpoint, bool) {
	if a.object == 0 || (path != "enabled" && path != "order") {
		return scenesync.Endpoint{}, false
	}
	return scenesync.Endpoint{Object: a.object, Property: path}, true
}

func (a *RenderPass) LogicObjects() []scenesync.ObjectID { return nil }

func (a *RenderPass) Sync(issues *scenesync.Issues) bool {
	n := a.Node()
	if refProp(n, "camera") == "" {
		a.Fail(issues, "camera", "render pass has no camera")
		return a.release()
	}
	camera := resolveRef[*Camera](a.Host(), issues, &a.Base, "camera", "camera")
	if camera == nil || camera.Camera() == 0 {
		return a.release()
	}

	changed := false
	if a.object == 0 {
		a.object = a.Host().Engine().Create(scenesync.KindRenderPass, n.Name())
		a.name = n.Name()
		changed = true
	}
	if rename(a.Host().Engine(), &a.name, n.Name(), namedObject{id: a.object}) {
		changed = true
	}
	values := []struct {
		property string
		value    any
	}{
		{"camera", camera.Camera()},
		{"order", intProp(n, "order", 0)},
		{"enabled", boolProp(n, "enabled", true)},
	}
	for _, v := range values {
		if a.Push(scenesync.Endpoint{Object: a.object, Property: v.property}, v.value) {
			changed = true
		}
	}
	return changed
}

// release destroys the pass and reports whether it existed.
func (a *RenderPass) release() bool {
	if a.object == 0 {
		return false
	}
	a.Host().Engine().Destroy(a.object)
	a.Forget(a.object)
	a.object, a.name = 0, ""
	return true
}

func (a *RenderPass) Close() {
	a.release()
}
