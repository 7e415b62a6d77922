package model

import (
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"sync"

	"cogentcore.org/core/base/ordmap"

	"github.com/chenyanchen/scenesync"
)

type event func(l scenesync.Listener)

// Project is an in-memory object model. Mutations notify subscribed listeners
// after the project lock is released; Commit closes a change batch.
type Project struct {
	mu        sync.RWMutex
	logger    *slog.Logger
	nodes     *ordmap.Map[scenesync.NodeID, *Node]
	links     *ordmap.Map[scenesync.LinkKey, scenesync.Link]
	changed   *ordmap.Map[scenesync.NodeID, *Node]
	listeners []scenesync.Listener
}

var _ scenesync.Model = (*Project)(nil)

// NewProject returns an empty project. A nil logger uses slog.Default.
func NewProject(logger *slog.Logger) *Project {
	if logger == nil {
		logger = slog.Default()
	}
	return &Project{
		logger:  logger,
		nodes:   ordmap.New[scenesync.NodeID, *Node](),
		links:   ordmap.New[scenesync.LinkKey, scenesync.Link](),
		changed: ordmap.New[scenesync.NodeID, *Node](),
	}
}

// Subscribe adds l to the listeners notified of every later mutation.
func (p *Project) Subscribe(l scenesync.Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

func (p *Project) dispatch(events []event) {
	p.mu.RLock()
	listeners := append([]scenesync.Listener(nil), p.listeners...)
	p.mu.RUnlock()
	for _, ev := range events {
		for _, l := range listeners {
			ev(l)
		}
	}
}

func (p *Project) node(id scenesync.NodeID) (*Node, error) {
	n, ok := p.nodes.ValueByKeyTry(id)
	if !ok {
		return nil, fmt.Errorf("node %q not found", string(id))
	}
	return n, nil
}

func (p *Project) touch(n *Node) {
	if n != nil {
		p.changed.Add(n.id, n)
	}
}

// Create adds a node of type typ under parent, or at the top level when
// parent is empty. The id is the name, suffixed when already taken.
func (p *Project) Create(typ, name string, parent scenesync.NodeID) (*Node, error) {
	if typ == "" {
		return nil, fmt.Errorf("create node: type is empty")
	}
	if name == "" {
		return nil, fmt.Errorf("create node: name is empty")
	}

	p.mu.Lock()
	var parentNode *Node
	if parent != "" {
		var err error
		if parentNode, err = p.node(parent); err != nil {
			p.mu.Unlock()
			return nil, fmt.Errorf("create node %q: parent: %w", name, err)
		}
	}
	n := &Node{
		project: p,
		id:      p.freeID(name),
		name:    name,
		typ:     typ,
		props:   ordmap.New[string, any](),
		parent:  parentNode,
	}
	p.nodes.Add(n.id, n)
	p.touch(n)
	events := []event{func(l scenesync.Listener) { l.NodeCreated(n) }}
	if parentNode != nil {
		parentNode.children = append(parentNode.children, n)
		p.touch(parentNode)
		events = append(events, func(l scenesync.Listener) { l.PropertyChanged(parentNode, scenesync.ChildrenProperty) })
	}
	p.mu.Unlock()

	p.logger.Debug("node created", "id", string(n.id), "type", typ)
	p.dispatch(events)
	return n, nil
}

func (p *Project) freeID(name string) scenesync.NodeID {
	id := scenesync.NodeID(name)
	for i := 2; ; i++ {
		if _, taken := p.nodes.ValueByKeyTry(id); !taken {
			return id
		}
		id = scenesync.NodeID(name + "#" + strconv.Itoa(i))
	}
}

// Remove deletes the node and its subtree. Links touching the subtree are
// removed first and references to removed nodes are cleared.
func (p *Project) Remove(id scenesync.NodeID) error {
	p.mu.Lock()
	n, err := p.node(id)
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("remove: %w", err)
	}

	doomed := n.subtree(nil)
	gone := make(map[scenesync.NodeID]struct{}, len(doomed))
	for _, d := range doomed {
		gone[d.id] = struct{}{}
	}

	var events []event
	for _, key := range p.links.Keys() {
		_, startGone := gone[key.Start.Node]
		_, endGone := gone[key.End.Node]
		if !startGone && !endGone {
			continue
		}
		l := p.links.ValueByKey(key)
		p.links.DeleteKey(key)
		if !endGone {
			p.touch(p.nodes.ValueByKey(key.End.Node))
		}
		events = append(events, func(ls scenesync.Listener) { ls.LinkRemoved(l) })
	}

	for _, d := range doomed {
		p.nodes.DeleteKey(d.id)
		p.changed.DeleteKey(d.id)
		events = append(events, func(ls scenesync.Listener) { ls.NodeRemoved(d) })
	}

	if parent := n.parent; parent != nil {
		for i, c := range parent.children {
			if c == n {
				parent.children = append(parent.children[:i:i], parent.children[i+1:]...)
				break
			}
		}
		n.parent = nil
		p.touch(parent)
		events = append(events, func(ls scenesync.Listener) { ls.PropertyChanged(parent, scenesync.ChildrenProperty) })
	}

	for _, kv := range p.nodes.Order {
		holder := kv.Value
		for _, prop := range holder.props.Keys() {
			nv, changed := dropRefs(holder.props.ValueByKey(prop), gone)
			if !changed {
				continue
			}
			holder.props.Add(prop, nv)
			p.touch(holder)
			events = append(events, func(ls scenesync.Listener) { ls.PropertyChanged(holder, prop) })
		}
	}
	p.mu.Unlock()

	p.logger.Debug("node removed", "id", string(id), "subtree", len(doomed))
	p.dispatch(events)
	return nil
}

// Set stores value under property. A nil value deletes the property.
func (p *Project) Set(id scenesync.NodeID, property string, value any) error {
	if property == "" || property == scenesync.ChildrenProperty {
		return fmt.Errorf("set %s: invalid property name %q", string(id), property)
	}
	if value != nil {
		if err := checkValue(value); err != nil {
			return fmt.Errorf("set %s.%s: %w", string(id), property, err)
		}
	}

	p.mu.Lock()
	n, err := p.node(id)
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("set: %w", err)
	}
	old, had := n.props.ValueByKeyTry(property)
	switch {
	case value == nil && !had:
		p.mu.Unlock()
		return nil
	case value == nil:
		n.props.DeleteKey(property)
	case had && reflect.DeepEqual(old, value):
		p.mu.Unlock()
		return nil
	default:
		n.props.Add(property, value)
	}
	p.touch(n)
	p.mu.Unlock()

	p.dispatch([]event{func(l scenesync.Listener) { l.PropertyChanged(n, property) }})
	return nil
}

func (p *Project) Rename(id scenesync.NodeID, name string) error {
	if name == "" {
		return fmt.Errorf("rename %s: name is empty", string(id))
	}
	p.mu.Lock()
	n, err := p.node(id)
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("rename: %w", err)
	}
	if n.name == name {
		p.mu.Unlock()
		return nil
	}
	n.name = name
	p.touch(n)
	p.mu.Unlock()

	p.dispatch([]event{func(l scenesync.Listener) { l.PropertyChanged(n, NameProperty) }})
	return nil
}

// Move reparents the node; an empty parent moves it to the top level.
func (p *Project) Move(id, parent scenesync.NodeID) error {
	p.mu.Lock()
	n, err := p.node(id)
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("move: %w", err)
	}
	var to *Node
	if parent != "" {
		if to, err = p.node(parent); err != nil {
			p.mu.Unlock()
			return fmt.Errorf("move %s: parent: %w", string(id), err)
		}
		if n.isAncestorOf(to) {
			p.mu.Unlock()
			return fmt.Errorf("move %s under %s: would create a containment cycle", string(id), string(parent))
		}
	}
	from := n.parent
	if from == to {
		p.mu.Unlock()
		return nil
	}

	var events []event
	if from != nil {
		for i, c := range from.children {
			if c == n {
				from.children = append(from.children[:i:i], from.children[i+1:]...)
				break
			}
		}
		p.touch(from)
		events = append(events, func(l scenesync.Listener) { l.PropertyChanged(from, scenesync.ChildrenProperty) })
	}
	if to != nil {
		to.children = append(to.children, n)
		p.touch(to)
		events = append(events, func(l scenesync.Listener) { l.PropertyChanged(to, scenesync.ChildrenProperty) })
	}
	n.parent = to
	p.touch(n)
	events = append(events, func(l scenesync.Listener) { l.PropertyChanged(n, ParentProperty) })
	p.mu.Unlock()

	p.dispatch(events)
	return nil
}

// AddLink adds l. A link already bound to the same end property is removed
// first.
func (p *Project) AddLink(l scenesync.Link) error {
	if l.Start.Path == "" || l.End.Path == "" {
		return fmt.Errorf("add link %s: empty property path", l.Key())
	}
	if l.Start.Node == l.End.Node {
		return fmt.Errorf("add link %s: start and end on the same node", l.Key())
	}

	p.mu.Lock()
	if _, err := p.node(l.Start.Node); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("add link %s: start: %w", l.Key(), err)
	}
	end, err := p.node(l.End.Node)
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("add link %s: end: %w", l.Key(), err)
	}
	if _, exists := p.links.ValueByKeyTry(l.Key()); exists {
		p.mu.Unlock()
		return fmt.Errorf("add link %s: already exists", l.Key())
	}

	var events []event
	for _, kv := range p.links.Order {
		if kv.Key.End == l.End {
			old := kv.Value
			p.links.DeleteKey(kv.Key)
			events = append(events, func(ls scenesync.Listener) { ls.LinkRemoved(old) })
			break
		}
	}
	p.links.Add(l.Key(), l)
	p.touch(end)
	events = append(events, func(ls scenesync.Listener) { ls.LinkCreated(l) })
	p.mu.Unlock()

	p.dispatch(events)
	return nil
}

func (p *Project) RemoveLink(key scenesync.LinkKey) error {
	p.mu.Lock()
	l, ok := p.links.ValueByKeyTry(key)
	if !ok {
		p.mu.Unlock()
		return scenesync.LinkNotFoundError{Key: key}
	}
	p.links.DeleteKey(key)
	p.touch(p.nodes.ValueByKey(key.End.Node))
	p.mu.Unlock()

	p.dispatch([]event{func(ls scenesync.Listener) { ls.LinkRemoved(l) }})
	return nil
}

func (p *Project) SetLinkValid(key scenesync.LinkKey, valid bool) error {
	p.mu.Lock()
	l, ok := p.links.ValueByKeyTry(key)
	if !ok {
		p.mu.Unlock()
		return scenesync.LinkNotFoundError{Key: key}
	}
	if l.Valid == valid {
		p.mu.Unlock()
		return nil
	}
	l.Valid = valid
	p.links.Add(key, l)
	p.touch(p.nodes.ValueByKey(key.End.Node))
	p.mu.Unlock()

	p.dispatch([]event{func(ls scenesync.Listener) { ls.LinkValidityChanged(l, valid) }})
	return nil
}

// Commit ends the current change batch and returns the nodes changed in it.
func (p *Project) Commit() []scenesync.Node {
	p.mu.Lock()
	changed := make([]scenesync.Node, 0, p.changed.Len())
	for _, kv := range p.changed.Order {
		changed = append(changed, kv.Value)
	}
	p.changed.Reset()
	p.changed.Init()
	p.mu.Unlock()

	p.dispatch([]event{func(l scenesync.Listener) { l.BatchEnd(changed) }})
	return changed
}

// Nodes returns every node in creation order.
func (p *Project) Nodes() []scenesync.Node {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]scenesync.Node, 0, p.nodes.Len())
	for _, kv := range p.nodes.Order {
		out = append(out, kv.Value)
	}
	return out
}

func (p *Project) Lookup(id scenesync.NodeID) (scenesync.Node, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n, ok := p.nodes.ValueByKeyTry(id)
	if !ok {
		return nil, false
	}
	return n, true
}

// Node returns the concrete node for id.
func (p *Project) Node(id scenesync.NodeID) (*Node, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.nodes.ValueByKeyTry(id)
}

// FindByName returns the first node called name.
func (p *Project) FindByName(name string) (*Node, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, kv := range p.nodes.Order {
		if kv.Value.name == name {
			return kv.Value, true
		}
	}
	return nil, false
}

// Links returns every link in creation order.
func (p *Project) Links() []scenesync.Link {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.links.Values()
}
