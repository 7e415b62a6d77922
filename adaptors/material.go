package adaptors

import (
	"strings"

	"github.com/chenyanchen/scenesync"
)

const uniformsPrefix = "uniforms."

// Material mirrors a shader pair as an effect resource plus an appearance
// carrying the uniform values. Uniforms are link destinations.
type Material struct {
	scenesync.Base
	effect     scenesync.ObjectID
	appearance scenesync.ObjectID
	source     scenesync.EffectSource
	name       string
}

var _ scenesync.PropertyProvider = (*Material)(nil)

func NewMaterial(h scenesync.Host, n scenesync.Node) *Material {
	return &Material{Base: scenesync.NewBase(h, n)}
}

// Valid reports whether the material currently owns an appearance.
func (a *Material) Valid() bool { return a.appearance != 0 }

func (a *Material) Appearance() scenesync.ObjectID { return a.appearance }

func (a *Material) Endpoint(path string) (scenesync.Endpoint, bool) {
	name, ok := strings.CutPrefix(path, uniformsPrefix)
	if !ok || a.appearance == 0 {
		return scenesync.Endpoint{}, false
	}
	if _, declared := tableProp(a.Node(), "uniforms").Get(name); !declared {
		return scenesync.Endpoint{}, false
	}
	return scenesync.Endpoint{Object: a.appearance, Property: path}, true
}

func (a *Material) LogicObjects() []scenesync.ObjectID { return nil }

func (a *Material) Sync(issues *scenesync.Issues) bool {
	n := a.Node()
	src := scenesync.EffectSource{
		Vertex:   stringProp(n, "vertexShader"),
		Fragment: stringProp(n, "fragmentShader"),
	}
	if src.Vertex == "" || src.Fragment == "" {
		prop := "vertexShader"
		if src.Vertex != "" {
			prop = "fragmentShader"
		}
		a.Fail(issues, prop, "shader source is empty")
		wasValid := a.Valid()
		a.release()
		return wasValid
	}

	e := a.Host().Engine()
	changed := false
	if a.effect == 0 || src != a.source {
		effect, err := e.CreateResource(scenesync.KindEffect, n.Name()+"_effect", src)
		if err != nil {
			a.Fail(issues, "vertexShader", "create effect: %s", err)
			wasValid := a.Valid()
			a.release()
			return wasValid
		}
		if a.effect != 0 {
			e.Destroy(a.effect)
		}
		a.effect, a.source = effect, src
		changed = true
	}
	if a.appearance == 0 {
		a.appearance = e.Create(scenesync.KindAppearance, n.Name())
		a.name = n.Name()
		changed = true
	}
	if rename(e, &a.name, n.Name(),
		namedObject{id: a.appearance},
		namedObject{id: a.effect, suffix: "_effect"},
	) {
		changed = true
	}
	if a.Push(scenesync.Endpoint{Object: a.appearance, Property: "effect"}, a.effect) {
		changed = true
	}
	for _, u := range tableProp(n, "uniforms") {
		ep := scenesync.Endpoint{Object: a.appearance, Property: uniformsPrefix + u.Name}
		if a.Push(ep, engineValue(u.Value)) {
			changed = true
		}
	}
	return changed
}

func (a *Material) release() {
	e := a.Host().Engine()
	if a.appearance != 0 {
		e.Destroy(a.appearance)
		a.Forget(a.appearance)
	}
	if a.effect != 0 {
		e.Destroy(a.effect)
	}
	a.appearance, a.effect = 0, 0
	a.source = scenesync.EffectSource{}
	a.name = ""
}

func (a *Material) Close() {
	a.release()
}
