package adaptors

import (
	"testing"

	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenyanchen/scenesync"
	"github.com/chenyanchen/scenesync/model"
)

func TestNode_TransformAndHierarchy(t *testing.T) {
	h := newHarness(t, func(p *model.Project) {
		create(p, TypeNode, "root", "")
		create(p, TypeNode, "child", "root")
		set(p, "child", "translation", math32.Vec3(1, 2, 3))
		set(p, "child", "visible", false)
	})
	root := adaptorOf[*Node](h, "root")
	child := adaptorOf[*Node](h, "child")

	assert.Equal(t, math32.Vec3(1, 2, 3), h.value(child.Binding(), "translation"))
	assert.Equal(t, math32.Vec3(1, 1, 1), h.value(child.Binding(), "scale"))
	assert.Equal(t, false, h.value(child.Binding(), "visible"))
	assert.Equal(t, child.SceneObject(), h.value(child.Binding(), "target"))

	obj, ok := h.engine.Object(child.SceneObject())
	require.True(t, ok)
	assert.Equal(t, root.SceneObject(), obj.Parent)
	assert.Equal(t, "child", obj.Name)
	assert.Len(t, h.engine.FindByName("child_Binding"), 1)

	ep, ok := child.Endpoint("translation")
	assert.True(t, ok)
	assert.Equal(t, scenesync.Endpoint{Object: child.Binding(), Property: "translation"}, ep)
	_, ok = child.Endpoint("fov")
	assert.False(t, ok)
	assert.Nil(t, child.LogicObjects())
}

func TestNode_RenameAndRemove(t *testing.T) {
	h := newHarness(t, func(p *model.Project) {
		create(p, TypeNode, "root", "")
		create(p, TypeNode, "child", "root")
	})
	child := adaptorOf[*Node](h, "child")

	require.NoError(t, h.project.Rename("child", "leaf"))
	report := h.commit()
	assert.Contains(t, report.Synced, scenesync.NodeID("child"))
	obj, _ := h.engine.Object(child.SceneObject())
	assert.Equal(t, "leaf", obj.Name)
	assert.Len(t, h.engine.FindByName("leaf_Binding"), 1)

	require.NoError(t, h.project.Remove("child"))
	report = h.commit()
	assert.Equal(t, []scenesync.NodeID{"child"}, report.Removed)
	assert.Len(t, h.engine.Objects(), 2)
	assert.Empty(t, h.engine.Violations())
}

func TestNode_MoveReparentsObject(t *testing.T) {
	h := newHarness(t, func(p *model.Project) {
		create(p, TypeNode, "a", "")
		create(p, TypeNode, "b", "")
		create(p, TypeNode, "child", "a")
	})
	b := adaptorOf[*Node](h, "b")
	child := adaptorOf[*Node](h, "child")

	require.NoError(t, h.project.Move("child", "b"))
	h.commit()
	obj, _ := h.engine.Object(child.SceneObject())
	assert.Equal(t, b.SceneObject(), obj.Parent)
}

func TestNode_PrefabContentIsNotMirrored(t *testing.T) {
	h := newHarness(t, func(p *model.Project) {
		create(p, "Prefab", "template", "")
		create(p, TypeNode, "inner", "template")
		create(p, TypePrefabInstance, "instance", "")
	})
	_, ok := h.scene.Lookup("inner")
	assert.False(t, ok)
	_, ok = h.scene.Lookup("instance")
	assert.True(t, ok)

	require.NoError(t, h.project.Move("inner", ""))
	report := h.commit()
	assert.Equal(t, []scenesync.NodeID{"inner"}, report.Created)
	_, ok = h.scene.Lookup("inner")
	assert.True(t, ok)
}

func TestCamera_Parameters(t *testing.T) {
	h := newHarness(t, func(p *model.Project) {
		create(p, TypePerspectiveCamera, "persp", "")
		set(p, "persp", "fov", 45)
		set(p, "persp", "far", 50.5)
		create(p, TypeOrthographicCamera, "ortho", "")
	})
	persp := adaptorOf[*Camera](h, "persp")
	ortho := adaptorOf[*Camera](h, "ortho")

	assert.NotZero(t, persp.Camera())
	assert.Equal(t, float32(45), h.value(persp.Binding(), "fov"))
	assert.Equal(t, float32(50.5), h.value(persp.Binding(), "far"))
	assert.Equal(t, float32(1), h.value(persp.Binding(), "aspect"))
	assert.Equal(t, float32(-10), h.value(ortho.Binding(), "left"))

	obj, _ := h.engine.Object(persp.Camera())
	assert.Equal(t, scenesync.KindCamera, obj.Kind)
	_, ok := ortho.Endpoint("fov")
	assert.False(t, ok)
	_, ok = ortho.Endpoint("top")
	assert.True(t, ok)
}
