package model

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenyanchen/scenesync"
)

// recorder logs every notification as a short line.
type recorder struct {
	events []string
}

func (r *recorder) NodeCreated(n scenesync.Node) { r.add("created %s", n.ID()) }
func (r *recorder) NodeRemoved(n scenesync.Node) { r.add("removed %s", n.ID()) }
func (r *recorder) PropertyChanged(n scenesync.Node, p string) {
	r.add("changed %s.%s", n.ID(), p)
}
func (r *recorder) LinkCreated(l scenesync.Link) { r.add("link+ %s", l.Key()) }
func (r *recorder) LinkRemoved(l scenesync.Link) { r.add("link- %s", l.Key()) }
func (r *recorder) LinkValidityChanged(l scenesync.Link, valid bool) {
	r.add("link valid=%t %s", valid, l.Key())
}

func (r *recorder) BatchEnd(changed []scenesync.Node) {
	ids := make([]scenesync.NodeID, len(changed))
	for i, n := range changed {
		ids[i] = n.ID()
	}
	r.add("batch %v", ids)
}

func (r *recorder) add(format string, args ...any) {
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) take() []string {
	out := r.events
	r.events = nil
	return out
}

func newTestProject() (*Project, *recorder) {
	p := NewProject(slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := &recorder{}
	p.Subscribe(r)
	return p, r
}

func mustCreate(t *testing.T, p *Project, typ, name string, parent scenesync.NodeID) *Node {
	t.Helper()
	n, err := p.Create(typ, name, parent)
	require.NoError(t, err)
	return n
}

func plink(start, startPath, end, endPath string) scenesync.Link {
	return scenesync.Link{
		Start: scenesync.PropertyRef{Node: scenesync.NodeID(start), Path: startPath},
		End:   scenesync.PropertyRef{Node: scenesync.NodeID(end), Path: endPath},
		Valid: true,
	}
}

func TestProject_Create(t *testing.T) {
	p, r := newTestProject()
	root := mustCreate(t, p, "Node", "root", "")
	child := mustCreate(t, p, "MeshNode", "cube", "root")
	dup := mustCreate(t, p, "MeshNode", "cube", "root")

	assert.Equal(t, scenesync.NodeID("cube#2"), dup.ID())
	assert.Equal(t, "cube", dup.Name())
	assert.Equal(t, []scenesync.Node{child, dup}, root.Children())
	assert.Equal(t, root, child.Parent())
	assert.Nil(t, root.Parent())
	assert.Equal(t, "MeshNode(cube)", child.String())

	assert.Equal(t, []string{
		"created root",
		"created cube", "changed root.children",
		"created cube#2", "changed root.children",
	}, r.take())

	_, err := p.Create("", "x", "")
	assert.Error(t, err)
	_, err = p.Create("Node", "", "")
	assert.Error(t, err)
	_, err = p.Create("Node", "x", "missing")
	assert.Error(t, err)
	assert.Empty(t, r.take())
}

func TestProject_SetAndCommit(t *testing.T) {
	p, r := newTestProject()
	mustCreate(t, p, "Node", "a", "")
	mustCreate(t, p, "Node", "b", "")
	p.Commit()
	r.take()

	require.NoError(t, p.Set("a", "translation", math32.Vec3(1, 2, 3)))
	require.NoError(t, p.Set("a", "translation", math32.Vec3(1, 2, 3)))
	require.NoError(t, p.Set("b", "visible", false))
	require.NoError(t, p.Set("a", "missing", nil))
	require.NoError(t, p.Set("b", "visible", nil))

	assert.Error(t, p.Set("a", scenesync.ChildrenProperty, 1))
	assert.Error(t, p.Set("a", "bad", struct{}{}))
	assert.Error(t, p.Set("a", "table", scenesync.Table{{Name: "x", Value: int64(1)}}))
	assert.Error(t, p.Set("ghost", "x", 1))

	changed := p.Commit()
	require.Len(t, changed, 2)
	assert.Equal(t, []string{
		"changed a.translation",
		"changed b.visible",
		"changed b.visible",
		"batch [a b]",
	}, r.take())

	a, _ := p.Node("a")
	v, ok := a.Property("translation")
	require.True(t, ok)
	assert.Equal(t, math32.Vec3(1, 2, 3), v)
	_, ok = a.Property("visible")
	assert.False(t, ok)

	assert.Empty(t, p.Commit())
}

func TestProject_RenameAndMove(t *testing.T) {
	p, r := newTestProject()
	mustCreate(t, p, "Node", "a", "")
	mustCreate(t, p, "Node", "b", "")
	c := mustCreate(t, p, "Node", "c", "a")
	r.take()

	require.NoError(t, p.Rename("c", "leaf"))
	require.NoError(t, p.Rename("c", "leaf"))
	assert.Equal(t, "leaf", c.Name())
	assert.Error(t, p.Rename("c", ""))

	require.NoError(t, p.Move("c", "b"))
	require.NoError(t, p.Move("c", "b"))
	assert.Error(t, p.Move("a", "a"))
	assert.Error(t, p.Move("c", "ghost"))
	require.NoError(t, p.Move("b", "a"))
	assert.ErrorContains(t, p.Move("a", "c"), "containment cycle")

	assert.Equal(t, []string{
		"changed c.objectName",
		"changed a.children", "changed b.children", "changed c.parent",
		"changed a.children", "changed b.parent",
	}, r.take())

	n, ok := p.FindByName("leaf")
	require.True(t, ok)
	assert.Equal(t, c, n)
}

func TestProject_Links(t *testing.T) {
	p, r := newTestProject()
	mustCreate(t, p, "LuaScript", "s", "")
	mustCreate(t, p, "LuaScript", "t", "")
	mustCreate(t, p, "Node", "n", "")
	r.take()

	first := plink("s", "outputs.x", "n", "translation")
	require.NoError(t, p.AddLink(first))
	assert.Error(t, p.AddLink(first))
	assert.Error(t, p.AddLink(plink("s", "a", "s", "b")))
	assert.Error(t, p.AddLink(plink("s", "", "n", "x")))
	assert.Error(t, p.AddLink(plink("ghost", "a", "n", "x")))
	assert.Error(t, p.AddLink(plink("s", "a", "ghost", "x")))

	second := plink("t", "outputs.y", "n", "translation")
	require.NoError(t, p.AddLink(second))
	assert.Equal(t, []scenesync.Link{second}, p.Links())

	require.NoError(t, p.SetLinkValid(second.Key(), false))
	require.NoError(t, p.SetLinkValid(second.Key(), false))
	assert.False(t, p.Links()[0].Valid)

	require.NoError(t, p.RemoveLink(second.Key()))
	var notFound scenesync.LinkNotFoundError
	assert.ErrorAs(t, p.RemoveLink(second.Key()), &notFound)
	assert.ErrorAs(t, p.SetLinkValid(second.Key(), true), &notFound)

	assert.Equal(t, []string{
		"link+ " + first.Key().String(),
		"link- " + first.Key().String(),
		"link+ " + second.Key().String(),
		"link valid=false " + second.Key().String(),
		"link- " + second.Key().String(),
	}, r.take())
}

func TestProject_RemoveSubtree(t *testing.T) {
	p, r := newTestProject()
	mustCreate(t, p, "Node", "root", "")
	mustCreate(t, p, "Node", "group", "root")
	mustCreate(t, p, "Mesh", "mesh", "group")
	mustCreate(t, p, "MeshNode", "user", "root")
	require.NoError(t, p.Set("user", "mesh", scenesync.Ref("mesh")))
	require.NoError(t, p.Set("user", "extra", scenesync.Table{{Name: "refs", Value: []scenesync.Ref{"mesh", "root"}}}))
	l := plink("mesh", "x", "user", "y")
	require.NoError(t, p.AddLink(l))
	p.Commit()
	r.take()

	require.NoError(t, p.Remove("group"))
	assert.Equal(t, []string{
		"link- " + l.Key().String(),
		"removed mesh",
		"removed group",
		"changed root.children",
		"changed user.mesh",
		"changed user.extra",
	}, r.take())

	_, ok := p.Lookup("mesh")
	assert.False(t, ok)
	user, _ := p.Node("user")
	v, _ := user.Property("mesh")
	assert.Equal(t, scenesync.Ref(""), v)
	v, _ = user.Property("extra")
	assert.Equal(t, scenesync.Table{{Name: "refs", Value: []scenesync.Ref{"root"}}}, v)
	assert.Empty(t, p.Links())
	assert.Len(t, p.Nodes(), 2)

	assert.Error(t, p.Remove("group"))
}
