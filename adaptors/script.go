package adaptors

import (
	"strings"

	"github.com/chenyanchen/scenesync"
)

// LuaScript mirrors a logic script. Its inputs and outputs tables become
// script properties addressable as "inputs.<name>" and "outputs.<name>".
type LuaScript struct {
	scenesync.Base
	object scenesync.ObjectID
	source string
	name   string
}

var _ scenesync.PropertyProvider = (*LuaScript)(nil)

func NewLuaScript(h scenesync.Host, n scenesync.Node) *LuaScript {
	return &LuaScript{Base: scenesync.NewBase(h, n)}
}

// Object returns the script object, zero while the script is absent.
func (a *LuaScript) Object() scenesync.ObjectID { return a.object }

func (a *LuaScript) Endpoint(path string) (scenesync.Endpoint, bool) {
	if a.object == 0 {
		return scenesync.Endpoint{}, false
	}
	section, rest, ok := strings.Cut(path, ".")
	if !ok || (section != "inputs" && section != "outputs") {
		return scenesync.Endpoint{}, false
	}
	name, _, _ := strings.Cut(rest, ".")
	if _, declared := tableProp(a.Node(), section).Get(name); !declared {
		return scenesync.Endpoint{}, false
	}
	return scenesync.Endpoint{Object: a.object, Property: path}, true
}

func (a *LuaScript) LogicObjects() []scenesync.ObjectID {
	if a.object == 0 {
		return nil
	}
	return []scenesync.ObjectID{a.object}
}

func (a *LuaScript) Sync(issues *scenesync.Issues) bool {
	n := a.Node()
	source := stringProp(n, "script")
	if strings.TrimSpace(source) == "" {
		a.Fail(issues, "script", "script source is empty")
		wasPresent := a.object != 0
		a.release()
		return wasPresent
	}

	changed := false
	if source != a.source {
		a.release()
		a.object = a.Host().Engine().Create(scenesync.KindScript, n.Name())
		a.source, a.name = source, n.Name()
		a.Push(scenesync.Endpoint{Object: a.object, Property: "source"}, source)
		changed = true
	}
	if rename(a.Host().Engine(), &a.name, n.Name(), namedObject{id: a.object}) {
		changed = true
	}
	for _, section := range []string{"inputs", "outputs"} {
		for _, p := range tableProp(n, section) {
			ep := scenesync.Endpoint{Object: a.object, Property: section + "." + p.Name}
			if a.Push(ep, engineValue(p.Value)) {
				changed = true
			}
		}
	}
	return changed
}

func (a *LuaScript) release() {
	if a.object == 0 {
		return
	}
	a.Host().Engine().Destroy(a.object)
	a.Forget(a.object)
	a.object = 0
	a.source, a.name = "", ""
}

func (a *LuaScript) Close() {
	a.release()
}
