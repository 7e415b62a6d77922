package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenyanchen/scenesync"
)

func newTestMemory() *Memory {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func ep(obj scenesync.ObjectID, prop string) scenesync.Endpoint {
	return scenesync.Endpoint{Object: obj, Property: prop}
}

func actions(ops []Op) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.Action
	}
	return out
}

func TestMemory_ObjectsAndParents(t *testing.T) {
	m := newTestMemory()
	root := m.Create(scenesync.KindNode, "root")
	child := m.Create(scenesync.KindMeshNode, "child")

	require.NoError(t, m.SetParent(child, root))
	require.NoError(t, m.SetParent(child, root))
	assert.Error(t, m.SetParent(root, child))
	assert.Error(t, m.SetParent(99, root))
	assert.Error(t, m.SetParent(child, 99))

	m.Rename(child, "renamed")
	obj, ok := m.Object(child)
	require.True(t, ok)
	assert.Equal(t, "renamed", obj.Name)
	assert.Equal(t, root, obj.Parent)
	assert.Len(t, m.FindByName("renamed"), 1)

	m.Destroy(root)
	obj, _ = m.Object(child)
	assert.Zero(t, obj.Parent)

	assert.Equal(t, []string{ActionCreate, ActionCreate, ActionParent, ActionRename, ActionDestroy}, actions(m.Journal()))
	m.ResetJournal()
	assert.Empty(t, m.Journal())
}

func TestMemory_SetRejectsLinkedDestination(t *testing.T) {
	m := newTestMemory()
	a := m.Create(scenesync.KindScript, "a")
	b := m.Create(scenesync.KindScript, "b")

	require.NoError(t, m.Set(ep(a, "out"), 3))
	require.NoError(t, m.Link(ep(a, "out"), ep(b, "in")))
	assert.ErrorContains(t, m.Set(ep(b, "in"), 1), "linked")
	assert.Error(t, m.Set(ep(42, "x"), 1))

	assert.Equal(t, 1, m.Update())
	v, ok := m.Value(ep(b, "in"))
	require.True(t, ok)
	assert.Equal(t, 3, v)

	require.NoError(t, m.Unlink(ep(a, "out"), ep(b, "in")))
	assert.Error(t, m.Unlink(ep(a, "out"), ep(b, "in")))
	require.NoError(t, m.Set(ep(b, "in"), 1))
}

func TestMemory_LinkValidation(t *testing.T) {
	m := newTestMemory()
	a := m.Create(scenesync.KindScript, "a")
	b := m.Create(scenesync.KindScript, "b")

	assert.Error(t, m.Link(ep(a, "x"), ep(a, "y")))
	assert.Error(t, m.Link(ep(99, "x"), ep(b, "y")))
	assert.Error(t, m.Link(ep(a, "x"), ep(99, "y")))
	require.NoError(t, m.Link(ep(a, "x"), ep(b, "y")))
	assert.ErrorContains(t, m.Link(ep(a, "z"), ep(b, "y")), "already linked")
	assert.Equal(t, []Link{{From: ep(a, "x"), To: ep(b, "y")}}, m.Links())
}

func TestMemory_DestroyLinkedObjectIsViolation(t *testing.T) {
	m := newTestMemory()
	a := m.Create(scenesync.KindScript, "a")
	b := m.Create(scenesync.KindScript, "b")
	require.NoError(t, m.Link(ep(a, "x"), ep(b, "y")))

	m.Destroy(a)
	require.Len(t, m.Violations(), 1)
	assert.Contains(t, m.Violations()[0], "destroyed while linked")
	assert.Empty(t, m.Links())

	m.Destroy(a)
	assert.Len(t, m.Violations(), 2)
}

func TestMemory_ResourcesAreSharedByContent(t *testing.T) {
	m := newTestMemory()
	first, err := m.CreateResource(scenesync.KindArray, "indices", []int{0, 1, 2})
	require.NoError(t, err)
	second, err := m.CreateResource(scenesync.KindArray, "indices", []int{0, 1, 2})
	require.NoError(t, err)
	other, err := m.CreateResource(scenesync.KindArray, "indices", []int{2, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)

	_, err = m.CreateResource(scenesync.KindArray, "empty", nil)
	assert.Error(t, err)

	obj, _ := m.Object(first)
	assert.True(t, obj.Resource)
	assert.Equal(t, 2, obj.Refs)

	m.Destroy(first)
	_, ok := m.Object(first)
	assert.True(t, ok)
	m.Destroy(first)
	_, ok = m.Object(first)
	assert.False(t, ok)

	again, err := m.CreateResource(scenesync.KindArray, "indices", []int{0, 1, 2})
	require.NoError(t, err)
	assert.NotEqual(t, first, again)

	assert.Equal(t, []string{
		ActionResource, ActionRetain, ActionResource, ActionRelease, ActionDestroy, ActionResource,
	}, actions(m.Journal()))
}

func TestMemory_Faults(t *testing.T) {
	m := newTestMemory()
	a := m.Create(scenesync.KindScript, "a")
	b := m.Create(scenesync.KindScript, "b")

	require.NoError(t, m.ReportFault(a, "nil index"))
	require.NoError(t, m.ReportFault(b, "bad call"))
	assert.Error(t, m.ReportFault(99, "x"))
	assert.Len(t, m.Faults(), 2)

	m.Destroy(a)
	assert.Equal(t, []scenesync.Fault{{Object: b, Message: "bad call"}}, m.Faults())

	m.ClearFaults()
	assert.Empty(t, m.Faults())
}

func TestOp_String(t *testing.T) {
	op := Op{Seq: 3, Action: ActionSet, Object: 7, Detail: "x=1"}
	assert.Equal(t, "3 set #7 x=1", op.String())
}
