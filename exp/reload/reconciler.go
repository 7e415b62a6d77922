package reload

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/chenyanchen/scenesync"
	"github.com/chenyanchen/scenesync/model"
)

type snapshotNode struct {
	name   string
	typ    string
	parent string
	hash   string
}

// Result describes the changes of one reconciliation. Nodes are listed by
// name; links as "from -> to".
type Result struct {
	Added        []string // Node exists only in the new description.
	Removed      []string // Node exists only in the old one, or changed type.
	Updated      []string // Node description changed.
	Unchanged    []string
	LinksAdded   []string
	LinksRemoved []string
	LinksUpdated []string
}

// Empty reports whether nothing changed.
func (r Result) Empty() bool {
	return len(r.Added)+len(r.Removed)+len(r.Updated)+
		len(r.LinksAdded)+len(r.LinksRemoved)+len(r.LinksUpdated) == 0
}

// Reconciler owns a model.Project built from a scene description and applies
// later descriptions to it as minimal edits.
type Reconciler struct {
	mu       sync.Mutex
	project  *model.Project
	ids      map[string]scenesync.NodeID
	snapshot []snapshotNode
	links    map[string]model.LinkSpec
}

// New builds a project from initial and commits it before any listener can
// subscribe; a scene created on the project reads the content directly.
func New(initial model.SceneSpec, logger *slog.Logger) (*Reconciler, error) {
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("new reconciler: %w", err)
	}
	p := model.NewProject(logger)
	if err := model.Build(p, initial); err != nil {
		return nil, fmt.Errorf("new reconciler: %w", err)
	}
	p.Commit()
	r := &Reconciler{
		project:  p,
		ids:      make(map[string]scenesync.NodeID, len(initial.Nodes)),
		snapshot: buildSnapshot(initial),
		links:    linkSet(initial),
	}
	for _, ns := range initial.Nodes {
		n, _ := p.FindByName(ns.Name)
		r.ids[ns.Name] = n.ID()
	}
	return r, nil
}

// Project returns the reconciled project.
func (r *Reconciler) Project() *model.Project {
	return r.project
}

// Apply edits the project to match spec and commits the edits as one batch.
func (r *Reconciler) Apply(spec model.SceneSpec) (Result, error) {
	if err := spec.Validate(); err != nil {
		return Result{}, fmt.Errorf("apply: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	next := buildSnapshot(spec)
	diff := diffSnapshots(r.snapshot, next)
	p := r.project
	var errs []error

	gone := make(map[string]struct{}, len(diff.Removed))
	for _, name := range diff.Removed {
		gone[name] = struct{}{}
	}
	detached := make(map[string]struct{})
	for _, old := range r.snapshot {
		if _, removed := gone[old.name]; removed {
			continue
		}
		if _, parentGone := gone[old.parent]; parentGone {
			errs = append(errs, p.Move(r.ids[old.name], ""))
			detached[old.name] = struct{}{}
		}
	}
	for i := len(r.snapshot) - 1; i >= 0; i-- {
		name := r.snapshot[i].name
		if _, removed := gone[name]; !removed {
			continue
		}
		if _, exists := p.Node(r.ids[name]); exists {
			errs = append(errs, p.Remove(r.ids[name]))
		}
		delete(r.ids, name)
	}

	added := make(map[string]struct{}, len(diff.Added))
	for _, name := range diff.Added {
		added[name] = struct{}{}
	}
	for _, ns := range spec.Nodes {
		if _, ok := added[ns.Name]; !ok {
			continue
		}
		n, err := p.Create(ns.Type, ns.Name, r.ids[ns.Parent])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.ids[ns.Name] = n.ID()
	}

	updated := make(map[string]struct{}, len(diff.Updated))
	for _, name := range diff.Updated {
		updated[name] = struct{}{}
	}
	for _, ns := range spec.Nodes {
		_, isNew := added[ns.Name]
		_, isUpdated := updated[ns.Name]
		_, isDetached := detached[ns.Name]
		if !isNew && !isUpdated && !isDetached {
			continue
		}
		errs = append(errs, r.applyNode(ns))
	}

	linkDiff := r.applyLinks(spec, &errs)
	diff.LinksAdded, diff.LinksRemoved, diff.LinksUpdated = linkDiff.LinksAdded, linkDiff.LinksRemoved, linkDiff.LinksUpdated

	r.snapshot = next
	r.links = linkSet(spec)
	if !diff.Empty() {
		p.Commit()
	}
	if err := errors.Join(errs...); err != nil {
		return diff, fmt.Errorf("apply: %w", err)
	}
	return diff, nil
}

func (r *Reconciler) applyNode(ns model.NodeSpec) error {
	p := r.project
	id := r.ids[ns.Name]
	n, ok := p.Node(id)
	if !ok {
		return fmt.Errorf("node %q vanished during apply", ns.Name)
	}

	var errs []error
	wantParent := r.ids[ns.Parent]
	var curParent scenesync.NodeID
	if parent := n.Parent(); parent != nil {
		curParent = parent.ID()
	}
	if curParent != wantParent {
		errs = append(errs, p.Move(id, wantParent))
	}

	keep := make(map[string]struct{}, len(ns.Properties))
	for _, prop := range ns.Properties {
		keep[prop.Name] = struct{}{}
		errs = append(errs, p.Set(id, prop.Name, model.ResolveRefs(prop.Value, r.ids)))
	}
	for _, prop := range n.Properties() {
		if _, ok := keep[prop.Name]; !ok {
			errs = append(errs, p.Set(id, prop.Name, nil))
		}
	}
	return errors.Join(errs...)
}

func (r *Reconciler) applyLinks(spec model.SceneSpec, errs *[]error) Result {
	var res Result
	next := linkSet(spec)
	for key, old := range r.links {
		if cur, ok := next[key]; ok && cur.Weak == old.Weak {
			continue
		}
		res.LinksRemoved = append(res.LinksRemoved, key)
	}
	for _, ls := range spec.Links {
		key := linkKey(ls)
		old, existed := r.links[key]
		switch {
		case !existed || old.Weak != ls.Weak:
			res.LinksAdded = append(res.LinksAdded, key)
		case old.IsValid() != ls.IsValid():
			res.LinksUpdated = append(res.LinksUpdated, key)
		}
	}

	p := r.project
	slices.Sort(res.LinksRemoved)
	for _, key := range res.LinksRemoved {
		l := r.resolvedLink(r.links[key])
		err := p.RemoveLink(l.Key())
		var notFound scenesync.LinkNotFoundError
		if err != nil && !errors.As(err, &notFound) {
			*errs = append(*errs, err)
		}
	}
	for _, key := range res.LinksAdded {
		*errs = append(*errs, p.AddLink(r.resolvedLink(next[key])))
	}
	for _, key := range res.LinksUpdated {
		l := r.resolvedLink(next[key])
		*errs = append(*errs, p.SetLinkValid(l.Key(), l.Valid))
	}
	return res
}

func (r *Reconciler) resolvedLink(ls model.LinkSpec) scenesync.Link {
	return model.ResolveLink(ls, r.ids)
}

func buildSnapshot(spec model.SceneSpec) []snapshotNode {
	out := make([]snapshotNode, 0, len(spec.Nodes))
	for _, ns := range spec.Nodes {
		out = append(out, snapshotNode{
			name:   ns.Name,
			typ:    ns.Type,
			parent: ns.Parent,
			hash:   hashNode(ns),
		})
	}
	return out
}

func hashNode(ns model.NodeSpec) string {
	var b strings.Builder
	b.WriteString(ns.Type)
	b.WriteByte('\n')
	b.WriteString(ns.Parent)
	b.WriteByte('\n')
	for _, p := range ns.Properties {
		fmt.Fprintf(&b, "%s=%T:%v\n", p.Name, p.Value, p.Value)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func diffSnapshots(oldSnap, newSnap []snapshotNode) Result {
	oldByName := make(map[string]snapshotNode, len(oldSnap))
	for _, n := range oldSnap {
		oldByName[n.name] = n
	}
	newByName := make(map[string]snapshotNode, len(newSnap))
	for _, n := range newSnap {
		newByName[n.name] = n
	}

	var res Result
	for _, n := range oldSnap {
		cur, ok := newByName[n.name]
		if !ok || cur.typ != n.typ {
			res.Removed = append(res.Removed, n.name)
		}
	}
	for _, n := range newSnap {
		old, ok := oldByName[n.name]
		switch {
		case !ok || old.typ != n.typ:
			res.Added = append(res.Added, n.name)
		case old.hash != n.hash:
			res.Updated = append(res.Updated, n.name)
		default:
			res.Unchanged = append(res.Unchanged, n.name)
		}
	}
	return res
}

func linkKey(ls model.LinkSpec) string {
	return ls.From + " -> " + ls.To
}

func linkSet(spec model.SceneSpec) map[string]model.LinkSpec {
	out := make(map[string]model.LinkSpec, len(spec.Links))
	for _, ls := range spec.Links {
		out[linkKey(ls)] = ls
	}
	return out
}
