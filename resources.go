package scenesync

import (
	"fmt"

	"cogentcore.org/core/math32"
)

// Default geometry is a unit cube.
var (
	DefaultVertices = []math32.Vector3{
		math32.Vec3(1, 1, 1), math32.Vec3(-1, 1, 1), math32.Vec3(1, -1, 1), math32.Vec3(-1, -1, 1),
		math32.Vec3(1, 1, -1), math32.Vec3(-1, 1, -1), math32.Vec3(1, -1, -1), math32.Vec3(-1, -1, -1),
	}
	DefaultIndices = []int{
		0, 1, 2, 2, 1, 3, // front
		4, 6, 5, 5, 6, 7, // back
		0, 4, 1, 1, 4, 5, // top
		2, 3, 6, 6, 3, 7, // bottom
		0, 2, 4, 4, 2, 6, // right
		1, 5, 3, 3, 5, 7, // left
	}
)

// Default shading colors.
var (
	DefaultColor     = math32.Vec3(1, 0, 0.2)
	HighlightedColor = math32.Vec3(1, 1, 0)
)

const (
	defaultVertexShader = `#version 300 es
precision mediump float;
in vec3 a_Position;
uniform highp mat4 mvpMatrix;
void main() {
    gl_Position = mvpMatrix * vec4(a_Position, 1.0);
}
`
	defaultNormalsVertexShader = `#version 300 es
precision mediump float;
in vec3 a_Position;
in vec3 a_Normal;
out float lambertian;
uniform highp mat4 mvpMatrix;
void main() {
    lambertian = clamp(dot(normalize(a_Normal), vec3(0.5, 0.5, 0.7)), 0.2, 1.0);
    gl_Position = mvpMatrix * vec4(a_Position, 1.0);
}
`
	defaultFragmentShader = `#version 300 es
precision mediump float;
out vec4 FragColor;
uniform vec3 u_color;
uniform float u_alpha;
void main() {
    FragColor = vec4(u_color, u_alpha);
}
`
	defaultNormalsFragmentShader = `#version 300 es
precision mediump float;
in float lambertian;
out vec4 FragColor;
uniform vec3 u_color;
uniform float u_alpha;
void main() {
    FragColor = vec4(u_color * lambertian, u_alpha);
}
`
)

// EffectSource is the shader source pair of an effect resource.
type EffectSource struct {
	Vertex   string
	Fragment string
}

// DefaultResources builds the fallback resources used when a mesh node lacks
// valid geometry or material.
func DefaultResources(e Engine, key ResourceKey) (Resource, error) {
	switch key.Kind {
	case ResourceVertices:
		id, err := e.CreateResource(KindArray, "default vertices", DefaultVertices)
		if err != nil {
			return Resource{}, err
		}
		return Resource{Primary: id, Owned: []ObjectID{id}}, nil
	case ResourceIndices:
		id, err := e.CreateResource(KindArray, "default indices", DefaultIndices)
		if err != nil {
			return Resource{}, err
		}
		return Resource{Primary: id, Owned: []ObjectID{id}}, nil
	case ResourceAppearance:
		return defaultAppearance(e, key)
	}
	return Resource{}, fmt.Errorf("unknown resource kind %s", key.Kind)
}

func defaultAppearance(e Engine, key ResourceKey) (Resource, error) {
	src := EffectSource{Vertex: defaultVertexShader, Fragment: defaultFragmentShader}
	if key.Normals {
		src = EffectSource{Vertex: defaultNormalsVertexShader, Fragment: defaultNormalsFragmentShader}
	}
	effect, err := e.CreateResource(KindEffect, "default effect", src)
	if err != nil {
		return Resource{}, err
	}

	app := e.Create(KindAppearance, "default appearance "+key.String())
	color := DefaultColor
	if key.Highlighted {
		color = HighlightedColor
	}
	alpha := float32(1)
	if key.Transparent {
		alpha = 0.4
	}
	values := []struct {
		property string
		value    any
	}{
		{"effect", effect},
		{"uniforms.u_color", color},
		{"uniforms.u_alpha", alpha},
		{"blending", key.Transparent},
		{"depthWrite", !key.Transparent},
	}
	for _, v := range values {
		if err := e.Set(Endpoint{Object: app, Property: v.property}, v.value); err != nil {
			e.Destroy(app)
			e.Destroy(effect)
			return Resource{}, fmt.Errorf("configure default appearance: %w", err)
		}
	}
	return Resource{Primary: app, Owned: []ObjectID{effect, app}}, nil
}
