package adaptors

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chenyanchen/scenesync"
)

func TestRegister(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, []string{
		TypeNode, TypePrefabInstance, TypeMeshNode, TypeMesh, TypeMaterial,
		TypePerspectiveCamera, TypeOrthographicCamera, TypeLuaScript, TypeRenderPass,
	}, reg.Kinds())

	err := Register(reg)
	var dup scenesync.DuplicateKindError
	assert.ErrorAs(t, err, &dup)
}
