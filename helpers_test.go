package scenesync

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	id       NodeID
	typ      string
	props    []Property
	parent   *fakeNode
	children []*fakeNode
}

func (n *fakeNode) ID() NodeID   { return n.id }
func (n *fakeNode) Name() string { return string(n.id) }
func (n *fakeNode) Type() string { return n.typ }

func (n *fakeNode) Property(name string) (any, bool) {
	for _, p := range n.props {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

func (n *fakeNode) Properties() []Property { return append([]Property(nil), n.props...) }

func (n *fakeNode) Children() []Node {
	out := make([]Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

func (n *fakeNode) Parent() Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *fakeNode) set(name string, value any) {
	for i, p := range n.props {
		if p.Name == name {
			n.props[i].Value = value
			return
		}
	}
	n.props = append(n.props, Property{Name: name, Value: value})
}

type fakeModel struct {
	nodes []*fakeNode
	links []Link
}

func (m *fakeModel) Nodes() []Node {
	out := make([]Node, len(m.nodes))
	for i, n := range m.nodes {
		out[i] = n
	}
	return out
}

func (m *fakeModel) Lookup(id NodeID) (Node, bool) {
	for _, n := range m.nodes {
		if n.id == id {
			return n, true
		}
	}
	return nil, false
}

func (m *fakeModel) Links() []Link { return append([]Link(nil), m.links...) }

func (m *fakeModel) add(typ string, id NodeID, parent *fakeNode, props ...Property) *fakeNode {
	n := &fakeNode{id: id, typ: typ, props: props, parent: parent}
	if parent != nil {
		parent.children = append(parent.children, n)
	}
	m.nodes = append(m.nodes, n)
	return n
}

func (m *fakeModel) remove(n *fakeNode) {
	for i, x := range m.nodes {
		if x == n {
			m.nodes = append(m.nodes[:i], m.nodes[i+1:]...)
			break
		}
	}
	if p := n.parent; p != nil {
		for i, c := range p.children {
			if c == n {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
	}
}

// fakeEngine records mutations. Setting a linked destination fails, as it
// does in real engines.
type fakeEngine struct {
	mu      sync.Mutex
	next    ObjectID
	objects map[ObjectID]string
	parents map[ObjectID]ObjectID
	values  map[Endpoint]any
	links   map[Endpoint]Endpoint
	faults  []Fault
	ops     []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		objects: make(map[ObjectID]string),
		parents: make(map[ObjectID]ObjectID),
		values:  make(map[Endpoint]any),
		links:   make(map[Endpoint]Endpoint),
	}
}

func (e *fakeEngine) log(format string, args ...any) {
	e.ops = append(e.ops, fmt.Sprintf(format, args...))
}

func (e *fakeEngine) Create(kind ObjectKind, name string) ObjectID {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	e.objects[e.next] = name
	e.log("create %s %s", kind, name)
	return e.next
}

func (e *fakeEngine) Destroy(id ObjectID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log("destroy %s", e.objects[id])
	delete(e.objects, id)
}

func (e *fakeEngine) Rename(id ObjectID, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.objects[id] = name
	e.log("rename %s", name)
}

func (e *fakeEngine) SetParent(child, parent ObjectID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.parents[child] == parent {
		return nil
	}
	e.parents[child] = parent
	e.log("parent %s under %s", e.objects[child], e.objects[parent])
	return nil
}

func (e *fakeEngine) Set(ep Endpoint, value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.objects[ep.Object]; !ok {
		return fmt.Errorf("unknown object %d", ep.Object)
	}
	if _, linked := e.links[ep]; linked {
		return fmt.Errorf("%s is linked", ep)
	}
	e.values[ep] = value
	e.log("set %s.%s=%v", e.objects[ep.Object], ep.Property, value)
	return nil
}

func (e *fakeEngine) Link(from, to Endpoint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.links[to]; ok {
		return fmt.Errorf("%s already linked", to)
	}
	e.links[to] = from
	e.log("link %s.%s->%s.%s", e.objects[from.Object], from.Property, e.objects[to.Object], to.Property)
	return nil
}

func (e *fakeEngine) Unlink(from, to Endpoint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.links[to] != from {
		return fmt.Errorf("no link %s->%s", from, to)
	}
	delete(e.links, to)
	e.log("unlink %s.%s->%s.%s", e.objects[from.Object], from.Property, e.objects[to.Object], to.Property)
	return nil
}

func (e *fakeEngine) CreateResource(kind ObjectKind, name string, _ any) (ObjectID, error) {
	id := e.Create(kind, name)
	return id, nil
}

func (e *fakeEngine) Faults() []Fault {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Fault(nil), e.faults...)
}

func (e *fakeEngine) opCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.ops)
}

func (e *fakeEngine) liveObjects() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.objects)
}

// tracer mirrors a node into one object and pushes its "value" property.
type tracer struct {
	Base
	obj    ObjectID
	trace  *[]string
	closed bool
	hook   func()
}

func (p *tracer) Sync(issues *Issues) bool {
	if p.hook != nil {
		hook := p.hook
		p.hook = nil
		hook()
	}
	if bad, _ := p.Node().Property("bad"); bad == true {
		p.Fail(issues, "bad", "bad is set")
	}
	created := false
	if p.obj == 0 {
		p.obj = p.Host().Engine().Create(KindNode, p.Node().Name())
		created = true
	}
	*p.trace = append(*p.trace, "sync "+p.Node().Name())
	v, _ := p.Node().Property("value")
	pushed := p.Push(Endpoint{Object: p.obj, Property: "value"}, v)
	return created || pushed
}

func (p *tracer) Close() {
	*p.trace = append(*p.trace, "close "+p.Node().Name())
	if p.obj != 0 {
		p.Host().Engine().Destroy(p.obj)
		p.obj = 0
	}
	p.closed = true
}

func (p *tracer) SceneObject() ObjectID { return p.obj }

func (p *tracer) Endpoint(path string) (Endpoint, bool) {
	if p.obj == 0 {
		return Endpoint{}, false
	}
	return Endpoint{Object: p.obj, Property: path}, true
}

func (p *tracer) LogicObjects() []ObjectID {
	if p.obj == 0 {
		return nil
	}
	return []ObjectID{p.obj}
}

// fallbackUser holds a default appearance keyed by its "highlighted" flag.
type fallbackUser struct {
	Base
	handle *ResourceHandle
}

func (f *fallbackUser) Sync(issues *Issues) bool {
	hl, _ := f.Node().Property("highlighted")
	highlighted, _ := hl.(bool)
	key := ResourceKey{Kind: ResourceAppearance, Highlighted: highlighted}
	if f.handle != nil && f.handle.Key() == key {
		return false
	}
	h, err := f.Host().Resources().Acquire(key)
	if err != nil {
		f.Fail(issues, "", "%s", err)
		return false
	}
	f.handle.Release()
	f.handle = h
	return true
}

func (f *fallbackUser) Close() {
	f.handle.Release()
	f.handle = nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	model  *fakeModel
	engine *fakeEngine
	trace  []string
	reg    *Registry
	cfg    Config
}

func newTestEnv() *testEnv {
	env := &testEnv{
		model:  &fakeModel{},
		engine: newFakeEngine(),
		reg:    NewRegistry(),
		cfg:    DefaultConfig(),
	}
	env.cfg.Logger = discardLogger()
	MustRegister(env.reg, "tracer", Definition[*tracer]{New: func(h Host, n Node) *tracer {
		return &tracer{Base: NewBase(h, n), trace: &env.trace}
	}})
	MustRegister(env.reg, "fallback", Definition[*fallbackUser]{New: func(h Host, n Node) *fallbackUser {
		return &fallbackUser{Base: NewBase(h, n)}
	}})
	return env
}

func (env *testEnv) scene(t *testing.T) *Scene {
	t.Helper()
	s, err := NewScene(env.reg, env.model, env.engine, env.cfg)
	require.NoError(t, err)
	return s
}

func (env *testEnv) syncs() []string {
	var out []string
	for _, s := range env.trace {
		if len(s) > 5 && s[:5] == "sync " {
			out = append(out, s[5:])
		}
	}
	return out
}

func link(start NodeID, startPath string, end NodeID, endPath string) Link {
	return Link{
		Start: PropertyRef{Node: start, Path: startPath},
		End:   PropertyRef{Node: end, Path: endPath},
		Valid: true,
	}
}
