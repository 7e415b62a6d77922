package model

import (
	"fmt"
	"os"
	"strings"

	"cogentcore.org/core/math32"
	"gopkg.in/yaml.v3"

	"github.com/chenyanchen/scenesync"
)

// SceneSpec is a declarative scene description.
//
//	nodes:
//	  - name: camera
//	    type: PerspectiveCamera
//	    properties:
//	      translation: {vec3: [0, 0, 10]}
//	  - name: pass
//	    type: RenderPass
//	    properties:
//	      camera: {ref: camera}
//	      order: {order: 1}
//	links:
//	  - from: script.outputs.rotation
//	    to: cube.rotation
type SceneSpec struct {
	Nodes []NodeSpec `yaml:"nodes"`
	Links []LinkSpec `yaml:"links"`
}

// NodeSpec describes one node. References in Properties use node names.
type NodeSpec struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Parent     string `yaml:"parent,omitempty"`
	Properties Values `yaml:"properties,omitempty"`
}

// LinkSpec describes one link as "node.property.path" endpoints.
type LinkSpec struct {
	From  string `yaml:"from"`
	To    string `yaml:"to"`
	Weak  bool   `yaml:"weak,omitempty"`
	Valid *bool  `yaml:"valid,omitempty"`
}

// IsValid reports the link validity; links are valid unless stated otherwise.
func (l LinkSpec) IsValid() bool {
	return l.Valid == nil || *l.Valid
}

// Values is an ordered property mapping.
type Values []scenesync.Property

func (v *Values) UnmarshalYAML(node *yaml.Node) error {
	table, err := decodeTable(node)
	if err != nil {
		return err
	}
	*v = Values(table)
	return nil
}

func decodeTable(node *yaml.Node) (scenesync.Table, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: properties must be a mapping", node.Line)
	}
	out := make(scenesync.Table, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		value, err := decodeValue(node.Content[i+1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, scenesync.Property{Name: name, Value: value})
	}
	return out, nil
}

func decodeValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		switch v.(type) {
		case bool, int, float64, string:
			return v, nil
		}
		return nil, fmt.Errorf("line %d: unsupported scalar %q", node.Line, node.Value)
	case yaml.SequenceNode:
		return decodeInts(node)
	case yaml.MappingNode:
		if len(node.Content) == 2 {
			if v, ok, err := decodeTagged(node.Content[0].Value, node.Content[1]); ok || err != nil {
				return v, err
			}
		}
		return decodeTable(node)
	}
	return nil, fmt.Errorf("line %d: unsupported value", node.Line)
}

// decodeInts decodes a plain sequence. yaml.v3 truncates floats decoded into
// ints, so every element must carry the int tag.
func decodeInts(node *yaml.Node) ([]int, error) {
	ints := make([]int, 0, len(node.Content))
	for _, el := range node.Content {
		if el.Kind != yaml.ScalarNode || el.ShortTag() != "!!int" {
			return nil, fmt.Errorf("line %d: sequences hold integers; use vec3s or refs for other lists", el.Line)
		}
		var i int
		if err := el.Decode(&i); err != nil {
			return nil, fmt.Errorf("line %d: %w", el.Line, err)
		}
		ints = append(ints, i)
	}
	return ints, nil
}

func decodeTagged(tag string, node *yaml.Node) (any, bool, error) {
	switch tag {
	case "ref":
		var name string
		if err := node.Decode(&name); err != nil {
			return nil, true, err
		}
		return scenesync.Ref(name), true, nil
	case "refs":
		var names []string
		if err := node.Decode(&names); err != nil {
			return nil, true, err
		}
		refs := make([]scenesync.Ref, len(names))
		for i, name := range names {
			refs[i] = scenesync.Ref(name)
		}
		return refs, true, nil
	case "vec3":
		var xyz [3]float32
		if err := node.Decode(&xyz); err != nil {
			return nil, true, err
		}
		return math32.Vec3(xyz[0], xyz[1], xyz[2]), true, nil
	case "vec3s":
		var list [][3]float32
		if err := node.Decode(&list); err != nil {
			return nil, true, err
		}
		out := make([]math32.Vector3, len(list))
		for i, xyz := range list {
			out[i] = math32.Vec3(xyz[0], xyz[1], xyz[2])
		}
		return out, true, nil
	case "order":
		var order int
		if err := node.Decode(&order); err != nil {
			return nil, true, err
		}
		return scenesync.ExclusiveOrder(order), true, nil
	}
	return nil, false, nil
}

// Load reads a scene description file.
func Load(path string) (SceneSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SceneSpec{}, fmt.Errorf("read scene: %w", err)
	}
	spec, err := Parse(raw)
	if err != nil {
		return SceneSpec{}, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// Parse decodes and validates a scene description.
func Parse(raw []byte) (SceneSpec, error) {
	var spec SceneSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return SceneSpec{}, fmt.Errorf("parse scene: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return SceneSpec{}, err
	}
	return spec, nil
}

// Validate checks that names are unique and every parent, reference and link
// endpoint names a declared node.
func (s SceneSpec) Validate() error {
	declared := make(map[string]int, len(s.Nodes))
	for i, n := range s.Nodes {
		if n.Name == "" {
			return fmt.Errorf("nodes[%d]: name is empty", i)
		}
		if n.Type == "" {
			return fmt.Errorf("node %q: type is empty", n.Name)
		}
		if _, dup := declared[n.Name]; dup {
			return fmt.Errorf("node %q: declared twice", n.Name)
		}
		declared[n.Name] = i
	}
	for i, n := range s.Nodes {
		if n.Parent != "" {
			pos, ok := declared[n.Parent]
			if !ok {
				return fmt.Errorf("node %q: unknown parent %q", n.Name, n.Parent)
			}
			if pos >= i {
				return fmt.Errorf("node %q: parent %q must be declared first", n.Name, n.Parent)
			}
		}
		for _, p := range n.Properties {
			if err := checkRefs(p.Value, declared); err != nil {
				return fmt.Errorf("node %q property %s: %w", n.Name, p.Name, err)
			}
		}
	}
	for i, l := range s.Links {
		for _, end := range []string{l.From, l.To} {
			node, path, ok := strings.Cut(end, ".")
			if !ok || path == "" {
				return fmt.Errorf("links[%d]: endpoint %q is not node.property", i, end)
			}
			if _, ok := declared[node]; !ok {
				return fmt.Errorf("links[%d]: unknown node %q", i, node)
			}
		}
	}
	return nil
}

func checkRefs(v any, declared map[string]int) error {
	switch v := v.(type) {
	case scenesync.Ref:
		if _, ok := declared[string(v)]; !ok && v != "" {
			return fmt.Errorf("unknown node %q", string(v))
		}
	case []scenesync.Ref:
		for _, r := range v {
			if err := checkRefs(r, declared); err != nil {
				return err
			}
		}
	case scenesync.Table:
		for _, p := range v {
			if err := checkRefs(p.Value, declared); err != nil {
				return err
			}
		}
	}
	return nil
}

// Endpoint parses a "node.property.path" link endpoint.
func Endpoint(s string) (name, path string) {
	name, path, _ = strings.Cut(s, ".")
	return name, path
}

// Build creates the described nodes, properties and links in p. It does not
// commit the batch.
func Build(p *Project, spec SceneSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	ids := make(map[string]scenesync.NodeID, len(spec.Nodes))
	for _, ns := range spec.Nodes {
		n, err := p.Create(ns.Type, ns.Name, ids[ns.Parent])
		if err != nil {
			return fmt.Errorf("build scene: %w", err)
		}
		ids[ns.Name] = n.ID()
	}
	for _, ns := range spec.Nodes {
		for _, prop := range ns.Properties {
			if err := p.Set(ids[ns.Name], prop.Name, ResolveRefs(prop.Value, ids)); err != nil {
				return fmt.Errorf("build scene: %w", err)
			}
		}
	}
	for _, ls := range spec.Links {
		if err := p.AddLink(ResolveLink(ls, ids)); err != nil {
			return fmt.Errorf("build scene: %w", err)
		}
	}
	return nil
}

// ResolveLink converts ls to a link between the nodes named in ids.
func ResolveLink(ls LinkSpec, ids map[string]scenesync.NodeID) scenesync.Link {
	fromName, fromPath := Endpoint(ls.From)
	toName, toPath := Endpoint(ls.To)
	return scenesync.Link{
		Start: scenesync.PropertyRef{Node: ids[fromName], Path: fromPath},
		End:   scenesync.PropertyRef{Node: ids[toName], Path: toPath},
		Valid: ls.IsValid(),
		Weak:  ls.Weak,
	}
}

// ResolveRefs rewrites node names in references to the ids in ids.
func ResolveRefs(v any, ids map[string]scenesync.NodeID) any {
	switch v := v.(type) {
	case scenesync.Ref:
		if v == "" {
			return v
		}
		return scenesync.Ref(ids[string(v)])
	case []scenesync.Ref:
		out := make([]scenesync.Ref, len(v))
		for i, r := range v {
			out[i] = ResolveRefs(r, ids).(scenesync.Ref)
		}
		return out
	case scenesync.Table:
		out := make(scenesync.Table, len(v))
		for i, p := range v {
			out[i] = scenesync.Property{Name: p.Name, Value: ResolveRefs(p.Value, ids)}
		}
		return out
	}
	return v
}
