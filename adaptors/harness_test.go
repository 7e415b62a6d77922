package adaptors

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chenyanchen/scenesync"
	"github.com/chenyanchen/scenesync/engine"
	"github.com/chenyanchen/scenesync/model"
)

type harness struct {
	t       *testing.T
	project *model.Project
	engine  *engine.Memory
	scene   *scenesync.Scene
}

// newHarness builds the initial content with build, commits it and mirrors
// it into a fresh engine.
func newHarness(t *testing.T, build func(p *model.Project)) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		t:       t,
		project: model.NewProject(logger),
		engine:  engine.New(logger),
	}
	if build != nil {
		build(h.project)
	}
	h.project.Commit()

	cfg := scenesync.DefaultConfig()
	cfg.Logger = logger
	s, err := scenesync.NewScene(NewRegistry(), h.project, h.engine, cfg)
	require.NoError(t, err)
	h.project.Subscribe(s)
	h.scene = s
	t.Cleanup(s.Close)
	return h
}

func (h *harness) commit() scenesync.PassReport {
	h.project.Commit()
	return h.scene.LastReport()
}

func (h *harness) value(obj scenesync.ObjectID, property string) any {
	h.t.Helper()
	v, ok := h.engine.Value(scenesync.Endpoint{Object: obj, Property: property})
	require.True(h.t, ok, "no value for #%d.%s", obj, property)
	return v
}

func (h *harness) issue(id scenesync.NodeID, cat scenesync.Category) scenesync.Issue {
	h.t.Helper()
	it, ok := h.scene.Issues().Get(id, cat)
	require.True(h.t, ok, "no %s issue on %s", cat, id)
	return it
}

func adaptorOf[T scenesync.Adaptor](h *harness, id scenesync.NodeID) T {
	h.t.Helper()
	a, err := scenesync.LookupAs[T](h.scene, id)
	require.NoError(h.t, err)
	return a
}

func create(p *model.Project, typ, name, parent string) {
	if _, err := p.Create(typ, name, scenesync.NodeID(parent)); err != nil {
		panic(err)
	}
}

func set(p *model.Project, id, property string, value any) {
	if err := p.Set(scenesync.NodeID(id), property, value); err != nil {
		panic(err)
	}
}

func addLink(p *model.Project, from, to string) scenesync.Link {
	fromName, fromPath := model.Endpoint(from)
	toName, toPath := model.Endpoint(to)
	l := scenesync.Link{
		Start: scenesync.PropertyRef{Node: scenesync.NodeID(fromName), Path: fromPath},
		End:   scenesync.PropertyRef{Node: scenesync.NodeID(toName), Path: toPath},
		Valid: true,
	}
	if err := p.AddLink(l); err != nil {
		panic(err)
	}
	return l
}
