package scenesync

import (
	"fmt"
	"log/slog"

	"cogentcore.org/core/base/ordmap"
)

const (
	linkCycleProperty = "links"
	noFaultMessage    = "no runtime fault in this node while another node reports one"
)

// PassReport summarizes one bulk update pass.
type PassReport struct {
	Pass int
	// Deferred counts notifications received during the previous pass and
	// replayed at the start of this one.
	Deferred     int
	Created      []NodeID
	Removed      []NodeID
	GraphRebuilt bool
	// Synced lists resynced nodes in visiting order; Changed is the subset
	// whose output changed.
	Synced       []NodeID
	Changed      []NodeID
	Lifted       int
	Reconnected  int
	LinksCreated int
	Reclaimed    []ResourceKey
}

func (r PassReport) String() string {
	return fmt.Sprintf("pass %d: created=%d removed=%d rebuilt=%t synced=%d changed=%d lifted=%d reconnected=%d links=%d reclaimed=%d",
		r.Pass, len(r.Created), len(r.Removed), r.GraphRebuilt, len(r.Synced), len(r.Changed),
		r.Lifted, r.Reconnected, r.LinksCreated, len(r.Reclaimed))
}

// Scene mirrors a Model into an Engine. It owns one adaptor per eligible node
// and one link adaptor per link, and reconciles them in bulk passes.
//
// Scene implements Listener; subscribe it to the model so that every batch
// boundary triggers exactly one pass. A Scene is not safe for concurrent use.
type Scene struct {
	registry  *Registry
	model     Model
	engine    Engine
	cfg       Config
	logger    *slog.Logger
	resources *ResourceCache
	issues    *Issues

	adaptors *ordmap.Map[NodeID, Adaptor]
	links    *linkRegistry
	graph    *dependencyGraph

	graphStale       bool
	eligibilityDirty bool
	released         bool
	relink           []*LinkAdaptor
	created          []NodeID
	removed          []NodeID

	inPass   bool
	deferred []func()
	queued   []Node
	pass     int
	last     PassReport
}

// NewScene creates adaptors and links for the current model content and runs
// the initial pass.
func NewScene(registry *Registry, model Model, engine Engine, cfg Config) (*Scene, error) {
	if registry == nil {
		return nil, fmt.Errorf("new scene: registry is nil")
	}
	if model == nil {
		return nil, fmt.Errorf("new scene: model is nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("new scene: engine is nil")
	}
	if _, err := cfg.Level(); err != nil {
		return nil, fmt.Errorf("new scene: %w", err)
	}

	logger := cfg.logger()
	s := &Scene{
		registry:  registry,
		model:     model,
		engine:    engine,
		cfg:       cfg,
		logger:    logger,
		resources: NewResourceCache(engine, nil, logger),
		issues:    NewIssues(),
		adaptors:  ordmap.New[NodeID, Adaptor](),
	}
	s.links = newLinkRegistry(s)

	for _, n := range model.Nodes() {
		if s.needAdaptor(n) {
			s.createAdaptor(n)
		}
	}
	for _, l := range model.Links() {
		s.links.create(l)
	}
	s.Update(nil)
	return s, nil
}

func (s *Scene) Engine() Engine { return s.engine }

func (s *Scene) Resources() *ResourceCache { return s.resources }

func (s *Scene) Model() Model { return s.model }

func (s *Scene) Logger() *slog.Logger { return s.logger }

func (s *Scene) Issues() *Issues { return s.issues }

// LastReport returns the report of the most recent pass.
func (s *Scene) LastReport() PassReport { return s.last }

// Lookup returns the adaptor of node id.
func (s *Scene) Lookup(id NodeID) (Adaptor, bool) {
	return s.adaptors.ValueByKeyTry(id)
}

// Adaptors returns all adaptors in creation order.
func (s *Scene) Adaptors() []Adaptor {
	return s.adaptors.Values()
}

// LinkAdaptors returns the instantiated link adaptors in creation order.
func (s *Scene) LinkAdaptors() []*LinkAdaptor {
	return s.links.adaptors()
}

// Graph returns a snapshot of the dependency graph of the last pass.
func (s *Scene) Graph() Graph {
	return s.graph.snapshot()
}

func (s *Scene) NodeCreated(n Node) {
	if s.deferWhileInPass(func() { s.NodeCreated(n) }) {
		return
	}
	if s.needAdaptor(n) {
		s.createAdaptor(n)
	}
}

func (s *Scene) NodeRemoved(n Node) {
	if s.deferWhileInPass(func() { s.NodeRemoved(n) }) {
		return
	}
	id := n.ID()
	for _, la := range s.links.touching(id) {
		key := la.Link().Key()
		_ = s.links.remove(key)
		if key.End.Node != id {
			s.markDirty(key.End.Node)
		}
	}
	for _, l := range s.links.pending.Values() {
		if l.Start.Node == id || l.End.Node == id {
			s.links.pending.DeleteKey(l.Key())
		}
	}
	if _, ok := s.adaptors.ValueByKeyTry(id); ok {
		s.removeAdaptor(id)
	}
	s.issues.RemoveNode(id)
	s.graphStale = true
}

func (s *Scene) PropertyChanged(n Node, property string) {
	if s.deferWhileInPass(func() { s.PropertyChanged(n, property) }) {
		return
	}
	if property == ChildrenProperty {
		s.eligibilityDirty = true
		s.graphStale = true
	}
	s.markDirty(n.ID())
}

func (s *Scene) LinkCreated(l Link) {
	if s.deferWhileInPass(func() { s.LinkCreated(l) }) {
		return
	}
	s.links.create(l)
	s.markDirty(l.End.Node)
	s.graphStale = true
}

func (s *Scene) LinkRemoved(l Link) {
	if s.deferWhileInPass(func() { s.LinkRemoved(l) }) {
		return
	}
	if err := s.links.remove(l.Key()); err != nil {
		s.logger.Debug("remove link", "err", err)
		return
	}
	s.markDirty(l.End.Node)
	s.graphStale = true
}

func (s *Scene) LinkValidityChanged(l Link, valid bool) {
	if s.deferWhileInPass(func() { s.LinkValidityChanged(l, valid) }) {
		return
	}
	key := l.Key()
	if err := s.links.setValid(key, valid); err != nil {
		s.logger.Debug("change link validity", "err", err)
		return
	}
	if la, ok := s.links.get(key); ok && valid {
		s.relink = append(s.relink, la)
	}
	s.markDirty(l.End.Node)
	s.graphStale = true
}

func (s *Scene) BatchEnd(changed []Node) {
	if s.deferWhileInPass(func() { s.queued = append(s.queued, changed...) }) {
		return
	}
	s.Update(changed)
}

func (s *Scene) deferWhileInPass(fn func()) bool {
	if !s.inPass {
		return false
	}
	s.logger.Debug("notification deferred to next pass")
	s.deferred = append(s.deferred, fn)
	return true
}

func (s *Scene) markDirty(id NodeID) {
	if a, ok := s.adaptors.ValueByKeyTry(id); ok {
		a.MarkDirty(true)
	}
}

// needAdaptor reports whether n is mirrored: it is neither a settings
// singleton nor inside a template.
func (s *Scene) needAdaptor(n Node) bool {
	if s.cfg.isSettings(n.Type()) {
		return false
	}
	for p := n.Parent(); p != nil; p = p.Parent() {
		if s.cfg.isTemplate(p.Type()) {
			return false
		}
	}
	return true
}

func (s *Scene) createAdaptor(n Node) bool {
	id := n.ID()
	if _, ok := s.adaptors.ValueByKeyTry(id); ok {
		return false
	}
	a, ok := s.registry.create(s, n)
	if !ok {
		s.logger.Debug("no adaptor kind", "node", string(id), "type", n.Type())
		return false
	}
	a.MarkDirty(true)
	s.adaptors.Add(id, a)
	s.graphStale = true
	s.created = append(s.created, id)
	s.logger.Debug("adaptor created", "node", string(id), "type", n.Type())
	return true
}

func (s *Scene) removeAdaptor(id NodeID) {
	a, ok := s.adaptors.ValueByKeyTry(id)
	if !ok {
		return
	}
	for _, la := range s.links.touching(id) {
		la.Lift()
		s.relink = append(s.relink, la)
	}
	if s.graph != nil {
		for _, e := range s.graph.entries {
			if e.DependsOn(id) {
				s.markDirty(e.Node.ID())
			}
		}
	}

	pp, logic := a.(PropertyProvider)
	logic = logic && len(pp.LogicObjects()) > 0

	a.Close()
	s.adaptors.DeleteKey(id)
	s.issues.RemoveNode(id)
	s.graphStale = true
	s.released = true
	s.removed = append(s.removed, id)
	s.logger.Debug("adaptor removed", "node", string(id))

	if logic {
		s.UpdateRuntimeFaults()
	}
}

// reconcileEligibility creates and removes adaptors so that exactly the
// eligible nodes have one.
func (s *Scene) reconcileEligibility() {
	live := make(map[NodeID]struct{})
	for _, n := range s.model.Nodes() {
		live[n.ID()] = struct{}{}
		_, has := s.adaptors.ValueByKeyTry(n.ID())
		need := s.needAdaptor(n)
		switch {
		case need && !has:
			s.createAdaptor(n)
		case !need && has:
			s.removeAdaptor(n.ID())
		}
	}
	for _, id := range s.adaptors.Keys() {
		if _, ok := live[id]; !ok {
			s.removeAdaptor(id)
		}
	}
	s.eligibilityDirty = false
}

func (s *Scene) rebuildGraph() {
	var nodes []Node
	for _, n := range s.model.Nodes() {
		if _, ok := s.adaptors.ValueByKeyTry(n.ID()); ok {
			nodes = append(nodes, n)
		}
	}
	s.graph = buildDependencyGraph(nodes, s.links.links())
	s.graphStale = false

	s.issues.RemoveIf(func(it Issue) bool {
		return it.Category == CategoryOrderConflict ||
			(it.Category == CategoryStructural && it.Property == linkCycleProperty)
	})
	for _, it := range orderConflicts(nodes) {
		s.logger.Warn("order conflict", "node", string(it.Node), "msg", it.Message)
		s.issues.Add(it)
	}
	for _, c := range s.graph.cycles {
		s.logger.Warn("reference cycle", "err", c)
	}
}

// Update runs one bulk update pass for the nodes changed since the last one.
func (s *Scene) Update(changed []Node) PassReport {
	if s.inPass {
		s.deferWhileInPass(func() { s.queued = append(s.queued, changed...) })
		return s.last
	}

	deferred := s.deferred
	s.deferred = nil
	for _, fn := range deferred {
		fn()
	}
	changed = append(s.queued, changed...)
	s.queued = nil

	s.inPass = true
	defer func() { s.inPass = false }()

	s.pass++
	report := PassReport{Pass: s.pass, Deferred: len(deferred)}

	for _, n := range changed {
		s.markDirty(n.ID())
	}

	if s.eligibilityDirty {
		s.reconcileEligibility()
	}
	report.Created, s.created = s.created, nil
	report.Removed, s.removed = s.removed, nil

	if s.graph.empty() || s.graphStale || len(changed) > 0 {
		s.rebuildGraph()
		report.GraphRebuilt = true
	}
	if len(s.graph.entries) != s.adaptors.Len() {
		s.fail("graph holds %d nodes but %d adaptors exist", len(s.graph.entries), s.adaptors.Len())
	}

	updated := make(map[NodeID]struct{})
	lifted := ordmap.New[LinkKey, *LinkAdaptor]()
	for _, e := range s.graph.entries {
		id := e.Node.ID()
		a, ok := s.adaptors.ValueByKeyTry(id)
		if !ok {
			s.fail("no adaptor for graph node %q", string(id))
		}
		if !a.Dirty() && !readsAny(e, updated) {
			continue
		}
		for _, la := range s.links.touching(id) {
			la.Lift()
			lifted.Add(la.Link().Key(), la)
		}
		s.issues.RemoveIf(func(it Issue) bool {
			return it.Node == id && it.Category == CategoryStructural
		})
		changedOutput := a.Sync(s.issues)
		a.MarkDirty(false)
		report.Synced = append(report.Synced, id)
		if changedOutput {
			updated[id] = struct{}{}
			report.Changed = append(report.Changed, id)
		}
	}
	for _, c := range s.graph.cycles {
		from := c.Path[len(c.Path)-2]
		s.issues.Add(Issue{
			Node:     from,
			Property: linkCycleProperty,
			Category: CategoryStructural,
			Level:    LevelError,
			Message:  c.Error(),
		})
	}

	report.Lifted = lifted.Len()
	for _, la := range s.relink {
		lifted.Add(la.Link().Key(), la)
	}
	s.relink = nil
	for _, kv := range lifted.Order {
		if cur, ok := s.links.get(kv.Key); !ok || cur != kv.Value {
			continue
		}
		if kv.Value.Connect() {
			report.Reconnected++
		}
	}

	report.LinksCreated = len(s.links.instantiate())

	if len(report.Changed) > 0 || (s.released && !s.cfg.SweepOnlyOnChange) {
		report.Reclaimed = s.resources.Sweep()
		s.released = false
	}

	s.UpdateRuntimeFaults()
	s.checkInvariants()

	s.last = report
	s.logger.Debug("pass complete", "pass", report.Pass, "synced", len(report.Synced),
		"changed", len(report.Changed), "reclaimed", len(report.Reclaimed))
	return report
}

func readsAny(e DependencyEntry, updated map[NodeID]struct{}) bool {
	for _, ref := range e.References {
		if _, ok := updated[ref]; ok {
			return true
		}
	}
	return false
}

// UpdateRuntimeFaults attaches engine faults to the nodes owning the faulted
// objects. An unchanged fault message is left in place. While any fault
// exists, fault-free logic nodes carry an informational item.
func (s *Scene) UpdateRuntimeFaults() {
	owners := make(map[ObjectID]NodeID)
	var logic []NodeID
	for _, kv := range s.adaptors.Order {
		pp, ok := kv.Value.(PropertyProvider)
		if !ok {
			continue
		}
		objs := pp.LogicObjects()
		if len(objs) == 0 {
			continue
		}
		logic = append(logic, kv.Key)
		for _, obj := range objs {
			owners[obj] = kv.Key
		}
	}

	faulted := ordmap.New[NodeID, string]()
	for _, f := range s.engine.Faults() {
		id, ok := owners[f.Object]
		if !ok {
			continue
		}
		if _, seen := faulted.ValueByKeyTry(id); !seen {
			faulted.Add(id, f.Message)
		}
	}

	for _, id := range logic {
		prev, hadPrev := s.issues.Get(id, CategoryRuntimeFault)
		msg, hasFault := faulted.ValueByKeyTry(id)
		switch {
		case hasFault:
			if hadPrev && prev.Level == LevelError && prev.Message == msg {
				continue
			}
			s.issues.Add(Issue{Node: id, Category: CategoryRuntimeFault, Level: LevelError, Message: msg})
		case faulted.Len() > 0:
			if hadPrev && prev.Level == LevelInfo {
				continue
			}
			s.issues.Add(Issue{Node: id, Category: CategoryRuntimeFault, Level: LevelInfo, Message: noFaultMessage})
		case hadPrev:
			s.issues.RemoveIf(func(it Issue) bool {
				return it.Node == id && it.Category == CategoryRuntimeFault
			})
		}
	}
}

func (s *Scene) checkInvariants() {
	if err := s.links.checkIndexes(); err != nil {
		s.fail("%s", err.(InvariantError).Msg)
	}
	if len(s.deferred) > 0 {
		return
	}
	for _, n := range s.model.Nodes() {
		_, has := s.adaptors.ValueByKeyTry(n.ID())
		if has && !s.needAdaptor(n) {
			s.fail("adaptor exists for ineligible node %q", string(n.ID()))
		}
		if !has && s.needAdaptor(n) && s.registry.Has(n.Type()) {
			s.fail("eligible node %q has no adaptor", string(n.ID()))
		}
	}
}

func (s *Scene) fail(format string, args ...any) {
	err := InvariantError{Msg: fmt.Sprintf(format, args...)}
	s.logger.Error("invariant violated", "err", err)
	panic(err)
}

// Close lifts every link and closes adaptors in reverse visiting order, then
// releases the resource cache.
func (s *Scene) Close() {
	s.links.liftAll()
	closed := make(map[NodeID]struct{}, s.adaptors.Len())
	if s.graph != nil {
		for i := len(s.graph.entries) - 1; i >= 0; i-- {
			id := s.graph.entries[i].Node.ID()
			if a, ok := s.adaptors.ValueByKeyTry(id); ok {
				a.Close()
				closed[id] = struct{}{}
			}
		}
	}
	for _, kv := range s.adaptors.Order {
		if _, ok := closed[kv.Key]; !ok {
			kv.Value.Close()
		}
	}
	s.adaptors.Reset()
	s.adaptors.Init()
	s.graph = nil
	s.resources.Close()
}
