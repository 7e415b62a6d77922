package adaptors

import (
	"cogentcore.org/core/math32"

	"github.com/chenyanchen/scenesync"
)

// param is a property pushed into the binding, with the value used while the
// node does not set it.
type param struct {
	name string
	def  any
}

// value returns the node's value for p, converted to the type of the default
// when the default is a float32.
func (p param) value(n scenesync.Node) any {
	v, ok := n.Property(p.name)
	if !ok {
		return p.def
	}
	if _, isFloat := p.def.(float32); isFloat {
		if f, ok := floatValue(v); ok {
			return f
		}
	}
	return engineValue(v)
}

var transformParams = []param{
	{name: "translation", def: math32.Vec3(0, 0, 0)},
	{name: "rotation", def: math32.Vec3(0, 0, 0)},
	{name: "scale", def: math32.Vec3(1, 1, 1)},
	{name: "visible", def: true},
}

// spatial owns a scene-placeable object plus the binding exposing its
// parameters. Both are created on first sync.
type spatial struct {
	scenesync.Base
	kind    scenesync.ObjectKind
	params  []param
	object  scenesync.ObjectID
	binding scenesync.ObjectID
	name    string
}

func newSpatial(h scenesync.Host, n scenesync.Node, kind scenesync.ObjectKind, extra ...param) spatial {
	params := make([]param, 0, len(transformParams)+len(extra))
	params = append(params, transformParams...)
	return spatial{
		Base:   scenesync.NewBase(h, n),
		kind:   kind,
		params: append(params, extra...),
	}
}

func (s *spatial) SceneObject() scenesync.ObjectID { return s.object }

// Binding returns the binding object, zero before the first sync.
func (s *spatial) Binding() scenesync.ObjectID { return s.binding }

func (s *spatial) Endpoint(path string) (scenesync.Endpoint, bool) {
	if s.binding == 0 {
		return scenesync.Endpoint{}, false
	}
	for _, p := range s.params {
		if p.name == path {
			return scenesync.Endpoint{Object: s.binding, Property: path}, true
		}
	}
	return scenesync.Endpoint{}, false
}

func (s *spatial) LogicObjects() []scenesync.ObjectID { return nil }

func (s *spatial) ensure() bool {
	if s.object != 0 {
		return false
	}
	e := s.Host().Engine()
	s.name = s.Node().Name()
	s.object = e.Create(s.kind, s.name)
	s.binding = e.Create(scenesync.KindBinding, s.name+"_Binding")
	s.Push(scenesync.Endpoint{Object: s.binding, Property: "target"}, s.object)
	return true
}

func (s *spatial) syncSpatial() bool {
	changed := s.ensure()
	e := s.Host().Engine()

	if name := s.Node().Name(); name != s.name {
		e.Rename(s.object, name)
		e.Rename(s.binding, name+"_Binding")
		s.name = name
		changed = true
	}
	for _, p := range s.params {
		v := p.value(s.Node())
		if s.Push(scenesync.Endpoint{Object: s.binding, Property: p.name}, v) {
			changed = true
		}
	}
	s.attach()
	return changed
}

// attach places the object under its parent's object and this node's
// children under it.
func (s *spatial) attach() {
	h := s.Host()
	var parent scenesync.ObjectID
	if p := s.Node().Parent(); p != nil {
		parent = sceneObject(h, p.ID())
	}
	s.setParent(s.object, parent)
	for _, c := range s.Node().Children() {
		if obj := sceneObject(h, c.ID()); obj != 0 {
			s.setParent(obj, s.object)
		}
	}
}

func (s *spatial) setParent(child, parent scenesync.ObjectID) {
	if err := s.Host().Engine().SetParent(child, parent); err != nil {
		s.Host().Logger().Warn("attach scene object", "node", string(s.Node().ID()), "err", err)
	}
}

func (s *spatial) closeSpatial() {
	if s.object == 0 {
		return
	}
	e := s.Host().Engine()
	e.Destroy(s.binding)
	e.Destroy(s.object)
	s.Forget(s.binding)
	s.Forget(s.object)
	s.object, s.binding, s.name = 0, 0, ""
}

func sceneObject(h scenesync.Host, id scenesync.NodeID) scenesync.ObjectID {
	a, ok := h.Lookup(id)
	if !ok {
		return 0
	}
	sp, ok := a.(scenesync.SceneObjectProvider)
	if !ok {
		return 0
	}
	return sp.SceneObject()
}
