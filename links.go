package scenesync

import (
	"cogentcore.org/core/base/ordmap"
)

// LinkAdaptor binds one upstream link to an engine link between two adaptor
// endpoints.
type LinkAdaptor struct {
	link  Link
	host  Host
	from  Endpoint
	to    Endpoint
	bound bool
}

func newLinkAdaptor(h Host, l Link) *LinkAdaptor {
	return &LinkAdaptor{link: l, host: h}
}

// Link returns the upstream link mirrored by la.
func (la *LinkAdaptor) Link() Link { return la.link }

// Connected reports whether an engine link currently exists.
func (la *LinkAdaptor) Connected() bool { return la.bound }

// Lift removes the engine link, if any.
func (la *LinkAdaptor) Lift() {
	if !la.bound {
		return
	}
	if err := la.host.Engine().Unlink(la.from, la.to); err != nil {
		la.host.Logger().Warn("unlink", "link", la.link.String(), "err", err)
	}
	la.bound = false
}

// Connect creates the engine link when the link is valid and both endpoints
// resolve, and reports whether it is connected afterwards.
func (la *LinkAdaptor) Connect() bool {
	if la.bound {
		return true
	}
	if !la.link.Valid {
		return false
	}
	from, ok := la.resolve(la.link.Start)
	if !ok {
		return false
	}
	to, ok := la.resolve(la.link.End)
	if !ok {
		return false
	}
	if err := la.host.Engine().Link(from, to); err != nil {
		la.host.Logger().Warn("link", "link", la.link.String(), "err", err)
		return false
	}
	la.from, la.to, la.bound = from, to, true
	return true
}

// endpointForgetter is implemented by adaptors embedding Base.
type endpointForgetter interface {
	ForgetEndpoint(ep Endpoint)
}

// release makes the end adaptor write its own value into the destination on
// its next sync. The engine keeps the last propagated value after Unlink.
func (la *LinkAdaptor) release() {
	if la.to.Object == 0 {
		return
	}
	a, ok := la.host.Lookup(la.link.End.Node)
	if !ok {
		return
	}
	if f, ok := a.(endpointForgetter); ok {
		f.ForgetEndpoint(la.to)
	}
}

func (la *LinkAdaptor) resolve(ref PropertyRef) (Endpoint, bool) {
	a, ok := la.host.Lookup(ref.Node)
	if !ok {
		return Endpoint{}, false
	}
	pp, ok := a.(PropertyProvider)
	if !ok {
		la.host.Logger().Debug("link endpoint has no properties", "ref", ref.String())
		return Endpoint{}, false
	}
	return pp.Endpoint(ref.Path)
}

type linkBucket = *ordmap.Map[LinkKey, *LinkAdaptor]

// linkRegistry indexes link adaptors by start node and end node. Links created
// upstream wait in pending until the end of the next pass.
type linkRegistry struct {
	host    Host
	byStart map[NodeID]linkBucket
	byEnd   map[NodeID]linkBucket
	all     *ordmap.Map[LinkKey, *LinkAdaptor]
	pending *ordmap.Map[LinkKey, Link]
}

func newLinkRegistry(h Host) *linkRegistry {
	return &linkRegistry{
		host:    h,
		byStart: make(map[NodeID]linkBucket),
		byEnd:   make(map[NodeID]linkBucket),
		all:     ordmap.New[LinkKey, *LinkAdaptor](),
		pending: ordmap.New[LinkKey, Link](),
	}
}

// create queues l for instantiation.
func (r *linkRegistry) create(l Link) {
	r.pending.Add(l.Key(), l)
}

func (r *linkRegistry) get(key LinkKey) (*LinkAdaptor, bool) {
	return r.all.ValueByKeyTry(key)
}

// remove lifts and forgets the link. It returns LinkNotFoundError when the
// link is neither active nor pending.
func (r *linkRegistry) remove(key LinkKey) error {
	if r.pending.DeleteKey(key) {
		return nil
	}
	la, ok := r.all.ValueByKeyTry(key)
	if !ok {
		return LinkNotFoundError{Key: key}
	}
	la.Lift()
	la.release()
	r.all.DeleteKey(key)
	r.unindex(r.byStart, key.Start.Node, key)
	r.unindex(r.byEnd, key.End.Node, key)
	return nil
}

// setValid updates the validity flag of an active or pending link.
func (r *linkRegistry) setValid(key LinkKey, valid bool) error {
	if l, ok := r.pending.ValueByKeyTry(key); ok {
		l.Valid = valid
		r.pending.Add(key, l)
		return nil
	}
	la, ok := r.all.ValueByKeyTry(key)
	if !ok {
		return LinkNotFoundError{Key: key}
	}
	la.link.Valid = valid
	if !valid {
		la.Lift()
		la.release()
	}
	return nil
}

// touching returns the active links starting or ending at id.
func (r *linkRegistry) touching(id NodeID) []*LinkAdaptor {
	var out []*LinkAdaptor
	seen := make(map[LinkKey]struct{})
	for _, bucket := range []linkBucket{r.byStart[id], r.byEnd[id]} {
		if bucket == nil {
			continue
		}
		for _, kv := range bucket.Order {
			if _, dup := seen[kv.Key]; dup {
				continue
			}
			seen[kv.Key] = struct{}{}
			out = append(out, kv.Value)
		}
	}
	return out
}

// instantiate creates adaptors for the pending links and connects them. A
// pending link replaces any active link bound to the same end property.
func (r *linkRegistry) instantiate() []*LinkAdaptor {
	if r.pending.Len() == 0 {
		return nil
	}
	pending := r.pending.Values()
	r.pending.Reset()
	r.pending.Init()

	created := make([]*LinkAdaptor, 0, len(pending))
	for _, l := range pending {
		key := l.Key()
		if bucket := r.byEnd[key.End.Node]; bucket != nil {
			for _, old := range bucket.Keys() {
				if old.End == key.End && old != key {
					r.host.Logger().Debug("link replaced", "old", old.String(), "new", key.String())
					_ = r.remove(old)
				}
			}
		}
		if existing, ok := r.all.ValueByKeyTry(key); ok {
			existing.link = l
			existing.Connect()
			continue
		}
		la := newLinkAdaptor(r.host, l)
		r.all.Add(key, la)
		r.index(r.byStart, key.Start.Node, key, la)
		r.index(r.byEnd, key.End.Node, key, la)
		la.Connect()
		created = append(created, la)
	}
	return created
}

// links returns the active links followed by the pending ones.
func (r *linkRegistry) links() []Link {
	out := make([]Link, 0, r.all.Len()+r.pending.Len())
	for _, kv := range r.all.Order {
		out = append(out, kv.Value.link)
	}
	out = append(out, r.pending.Values()...)
	return out
}

func (r *linkRegistry) adaptors() []*LinkAdaptor {
	return r.all.Values()
}

func (r *linkRegistry) liftAll() {
	for _, kv := range r.all.Order {
		kv.Value.Lift()
	}
}

func (r *linkRegistry) index(m map[NodeID]linkBucket, id NodeID, key LinkKey, la *LinkAdaptor) {
	bucket := m[id]
	if bucket == nil {
		bucket = ordmap.New[LinkKey, *LinkAdaptor]()
		m[id] = bucket
	}
	bucket.Add(key, la)
}

func (r *linkRegistry) unindex(m map[NodeID]linkBucket, id NodeID, key LinkKey) {
	bucket := m[id]
	if bucket == nil {
		return
	}
	bucket.DeleteKey(key)
	if bucket.Len() == 0 {
		delete(m, id)
	}
}

// checkIndexes verifies that every active link sits in exactly the buckets of
// its start and end nodes and that no bucket is empty.
func (r *linkRegistry) checkIndexes() error {
	for _, kv := range r.all.Order {
		for _, side := range []struct {
			m  map[NodeID]linkBucket
			id NodeID
		}{{r.byStart, kv.Key.Start.Node}, {r.byEnd, kv.Key.End.Node}} {
			bucket := side.m[side.id]
			if bucket == nil {
				return InvariantError{Msg: "link " + kv.Key.String() + " missing from index"}
			}
			if _, ok := bucket.ValueByKeyTry(kv.Key); !ok {
				return InvariantError{Msg: "link " + kv.Key.String() + " missing from index"}
			}
		}
	}
	for _, m := range []map[NodeID]linkBucket{r.byStart, r.byEnd} {
		for id, bucket := range m {
			if bucket.Len() == 0 {
				return InvariantError{Msg: "empty link bucket for " + string(id)}
			}
			for _, k := range bucket.Keys() {
				if _, ok := r.all.ValueByKeyTry(k); !ok {
					return InvariantError{Msg: "stale link " + k.String() + " in index"}
				}
			}
		}
	}
	return nil
}
