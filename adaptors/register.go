package adaptors

import (
	"errors"

	"github.com/chenyanchen/scenesync"
)

// Node type tags.
const (
	TypeNode               = "Node"
	TypePrefabInstance     = "PrefabInstance"
	TypeMeshNode           = "MeshNode"
	TypeMesh               = "Mesh"
	TypeMaterial           = "Material"
	TypePerspectiveCamera  = "PerspectiveCamera"
	TypeOrthographicCamera = "OrthographicCamera"
	TypeLuaScript          = "LuaScript"
	TypeRenderPass         = "RenderPass"
)

// Register installs every adaptor kind into reg.
func Register(reg *scenesync.Registry) error {
	return errors.Join(
		scenesync.Register(reg, TypeNode, scenesync.Definition[*Node]{New: NewNode}),
		scenesync.Register(reg, TypePrefabInstance, scenesync.Definition[*Node]{New: NewNode}),
		scenesync.Register(reg, TypeMeshNode, scenesync.Definition[*MeshNode]{New: NewMeshNode}),
		scenesync.Register(reg, TypeMesh, scenesync.Definition[*Mesh]{New: NewMesh}),
		scenesync.Register(reg, TypeMaterial, scenesync.Definition[*Material]{New: NewMaterial}),
		scenesync.Register(reg, TypePerspectiveCamera, scenesync.Definition[*Camera]{New: NewPerspectiveCamera}),
		scenesync.Register(reg, TypeOrthographicCamera, scenesync.Definition[*Camera]{New: NewOrthographicCamera}),
		scenesync.Register(reg, TypeLuaScript, scenesync.Definition[*LuaScript]{New: NewLuaScript}),
		scenesync.Register(reg, TypeRenderPass, scenesync.Definition[*RenderPass]{New: NewRenderPass}),
	)
}

// NewRegistry returns a registry holding every adaptor kind.
func NewRegistry() *scenesync.Registry {
	reg := scenesync.NewRegistry()
	if err := Register(reg); err != nil {
		panic(err)
	}
	return reg
}
