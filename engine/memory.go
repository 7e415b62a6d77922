package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"cogentcore.org/core/base/ordmap"

	"github.com/chenyanchen/scenesync"
)

// Journal actions.
const (
	ActionCreate   = "create"
	ActionDestroy  = "destroy"
	ActionRename   = "rename"
	ActionParent   = "parent"
	ActionSet      = "set"
	ActionLink     = "link"
	ActionUnlink   = "unlink"
	ActionResource = "resource"
	ActionRetain   = "retain"
	ActionRelease  = "release"
)

// Op is one journaled mutation.
type Op struct {
	Seq    int
	Action string
	Object scenesync.ObjectID
	Detail string
}

func (o Op) String() string {
	return fmt.Sprintf("%d %s #%d %s", o.Seq, o.Action, o.Object, o.Detail)
}

// Object is a snapshot of one engine object.
type Object struct {
	ID     scenesync.ObjectID
	Kind   scenesync.ObjectKind
	Name   string
	Parent scenesync.ObjectID
	Values map[string]any
	// Resource objects are shared by content; Refs counts their holders.
	Resource bool
	Refs     int
	Data     any
}

// Link is a snapshot of one property link.
type Link struct {
	From scenesync.Endpoint
	To   scenesync.Endpoint
}

type object struct {
	id       scenesync.ObjectID
	kind     scenesync.ObjectKind
	name     string
	parent   scenesync.ObjectID
	values   *ordmap.Map[string, any]
	resource bool
	hash     string
	refs     int
	data     any
}

// Memory is an in-memory scenesync.Engine. It is safe for concurrent use.
type Memory struct {
	mu         sync.Mutex
	logger     *slog.Logger
	next       scenesync.ObjectID
	objects    *ordmap.Map[scenesync.ObjectID, *object]
	resources  map[string]scenesync.ObjectID
	links      *ordmap.Map[scenesync.Endpoint, scenesync.Endpoint]
	faults     []scenesync.Fault
	journal    []Op
	seq        int
	violations []string
}

var _ scenesync.Engine = (*Memory)(nil)

// New returns an empty engine. A nil logger uses slog.Default.
func New(logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		logger:    logger,
		objects:   ordmap.New[scenesync.ObjectID, *object](),
		resources: make(map[string]scenesync.ObjectID),
		links:     ordmap.New[scenesync.Endpoint, scenesync.Endpoint](),
	}
}

func (m *Memory) record(action string, id scenesync.ObjectID, format string, args ...any) {
	m.seq++
	m.journal = append(m.journal, Op{Seq: m.seq, Action: action, Object: id, Detail: fmt.Sprintf(format, args...)})
}

func (m *Memory) violate(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	m.logger.Warn("engine violation", "msg", msg)
	m.violations = append(m.violations, msg)
}

func (m *Memory) newObject(kind scenesync.ObjectKind, name string) *object {
	m.next++
	o := &object{
		id:     m.next,
		kind:   kind,
		name:   name,
		values: ordmap.New[string, any](),
	}
	m.objects.Add(o.id, o)
	return o
}

func (m *Memory) Create(kind scenesync.ObjectKind, name string) scenesync.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.newObject(kind, name)
	m.record(ActionCreate, o.id, "%s %q", kind, name)
	return o.id
}

func (m *Memory) Destroy(id scenesync.ObjectID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects.ValueByKeyTry(id)
	if !ok {
		m.violate("destroy of unknown object #%d", id)
		return
	}
	if o.resource {
		o.refs--
		if o.refs > 0 {
			m.record(ActionRelease, id, "refs=%d", o.refs)
			return
		}
		delete(m.resources, o.hash)
	}

	for _, kv := range m.links.Order {
		if kv.Key.Object == id || kv.Value.Object == id {
			m.violate("object #%d %q destroyed while linked (%s -> %s)", id, o.name, kv.Value, kv.Key)
		}
	}
	for _, dst := range m.links.Keys() {
		src := m.links.ValueByKey(dst)
		if dst.Object == id || src.Object == id {
			m.links.DeleteKey(dst)
		}
	}
	for _, kv := range m.objects.Order {
		if kv.Value.parent == id {
			kv.Value.parent = 0
		}
	}
	faults := m.faults[:0]
	for _, f := range m.faults {
		if f.Object != id {
			faults = append(faults, f)
		}
	}
	m.faults = faults

	m.objects.DeleteKey(id)
	m.record(ActionDestroy, id, "%s %q", o.kind, o.name)
}

func (m *Memory) Rename(id scenesync.ObjectID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects.ValueByKeyTry(id)
	if !ok {
		m.violate("rename of unknown object #%d", id)
		return
	}
	o.name = name
	m.record(ActionRename, id, "%q", name)
}

func (m *Memory) SetParent(child, parent scenesync.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.objects.ValueByKeyTry(child)
	if !ok {
		return fmt.Errorf("set parent: unknown object #%d", child)
	}
	if parent != 0 {
		if _, ok := m.objects.ValueByKeyTry(parent); !ok {
			return fmt.Errorf("set parent: unknown parent #%d", parent)
		}
		for p := parent; p != 0; p = m.objects.ValueByKey(p).parent {
			if p == child {
				return fmt.Errorf("set parent: #%d would become its own ancestor", child)
			}
		}
	}
	if c.parent == parent {
		return nil
	}
	c.parent = parent
	m.record(ActionParent, child, "#%d", parent)
	return nil
}

func (m *Memory) Set(ep scenesync.Endpoint, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects.ValueByKeyTry(ep.Object)
	if !ok {
		return fmt.Errorf("set %s: unknown object", ep)
	}
	if src, linked := m.links.ValueByKeyTry(ep); linked {
		return fmt.Errorf("set %s: property is linked from %s", ep, src)
	}
	o.values.Add(ep.Property, value)
	m.record(ActionSet, ep.Object, "%s=%v", ep.Property, value)
	return nil
}

func (m *Memory) Link(from, to scenesync.Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects.ValueByKeyTry(from.Object); !ok {
		return fmt.Errorf("link %s -> %s: unknown source object", from, to)
	}
	if _, ok := m.objects.ValueByKeyTry(to.Object); !ok {
		return fmt.Errorf("link %s -> %s: unknown destination object", from, to)
	}
	if from.Object == to.Object {
		return fmt.Errorf("link %s -> %s: source and destination are the same object", from, to)
	}
	if src, ok := m.links.ValueByKeyTry(to); ok {
		return fmt.Errorf("link %s -> %s: destination already linked from %s", from, to, src)
	}
	m.links.Add(to, from)
	m.record(ActionLink, to.Object, "%s <- %s", to.Property, from)
	return nil
}

func (m *Memory) Unlink(from, to scenesync.Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.links.ValueByKeyTry(to)
	if !ok || src != from {
		return fmt.Errorf("unlink %s -> %s: no such link", from, to)
	}
	m.links.DeleteKey(to)
	m.record(ActionUnlink, to.Object, "%s <- %s", to.Property, from)
	return nil
}

func (m *Memory) CreateResource(kind scenesync.ObjectKind, name string, data any) (scenesync.ObjectID, error) {
	if data == nil {
		return 0, fmt.Errorf("create resource %q: no data", name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	hash := contentHash(kind, data)
	if id, ok := m.resources[hash]; ok {
		o := m.objects.ValueByKey(id)
		o.refs++
		m.record(ActionRetain, id, "refs=%d", o.refs)
		return id, nil
	}
	o := m.newObject(kind, name)
	o.resource = true
	o.hash = hash
	o.refs = 1
	o.data = data
	m.resources[hash] = o.id
	m.record(ActionResource, o.id, "%s %q", kind, name)
	return o.id, nil
}

func contentHash(kind scenesync.ObjectKind, data any) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%T|%v", kind, data, data)))
	return hex.EncodeToString(sum[:])
}

func (m *Memory) Faults() []scenesync.Fault {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]scenesync.Fault(nil), m.faults...)
}

// ReportFault records a runtime fault against obj.
func (m *Memory) ReportFault(obj scenesync.ObjectID, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects.ValueByKeyTry(obj); !ok {
		return fmt.Errorf("report fault: unknown object #%d", obj)
	}
	m.faults = append(m.faults, scenesync.Fault{Object: obj, Message: msg})
	return nil
}

func (m *Memory) ClearFaults() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = nil
}

// Update copies linked source values into their destinations, in link
// creation order, and returns how many values were propagated.
func (m *Memory) Update() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, kv := range m.links.Order {
		src := m.objects.ValueByKey(kv.Value.Object)
		dst := m.objects.ValueByKey(kv.Key.Object)
		if src == nil || dst == nil {
			continue
		}
		v, ok := src.values.ValueByKeyTry(kv.Value.Property)
		if !ok {
			continue
		}
		dst.values.Add(kv.Key.Property, v)
		n++
	}
	return n
}

// Journal returns the mutations recorded since the last ResetJournal.
func (m *Memory) Journal() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Op(nil), m.journal...)
}

func (m *Memory) ResetJournal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journal = nil
}

// Violations lists misuse the engine tolerated, such as destroying a linked
// object.
func (m *Memory) Violations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.violations...)
}

func (m *Memory) Object(id scenesync.ObjectID) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects.ValueByKeyTry(id)
	if !ok {
		return Object{}, false
	}
	return o.snapshot(), true
}

// Objects returns all objects in creation order.
func (m *Memory) Objects() []Object {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Object, 0, m.objects.Len())
	for _, kv := range m.objects.Order {
		out = append(out, kv.Value.snapshot())
	}
	return out
}

// FindByName returns the objects called name in creation order.
func (m *Memory) FindByName(name string) []Object {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Object
	for _, kv := range m.objects.Order {
		if kv.Value.name == name {
			out = append(out, kv.Value.snapshot())
		}
	}
	return out
}

// Value returns the current value of ep.
func (m *Memory) Value(ep scenesync.Endpoint) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects.ValueByKeyTry(ep.Object)
	if !ok {
		return nil, false
	}
	return o.values.ValueByKeyTry(ep.Property)
}

// Links returns all links in creation order.
func (m *Memory) Links() []Link {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Link, 0, m.links.Len())
	for _, kv := range m.links.Order {
		out = append(out, Link{From: kv.Value, To: kv.Key})
	}
	return out
}

func (o *object) snapshot() Object {
	values := make(map[string]any, o.values.Len())
	for _, kv := range o.values.Order {
		values[kv.Key] = kv.Value
	}
	return Object{
		ID:       o.id,
		Kind:     o.kind,
		Name:     o.name,
		Parent:   o.parent,
		Values:   values,
		Resource: o.resource,
		Refs:     o.refs,
		Data:     o.data,
	}
}
