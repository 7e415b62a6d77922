package scenesync

import (
	"fmt"
	"log/slog"
	"sync"
)

// Host is the view of the scene handed to adaptors.
type Host interface {
	Engine() Engine
	Resources() *ResourceCache
	Model() Model
	Lookup(id NodeID) (Adaptor, bool)
	Logger() *slog.Logger
}

// Definition describes how one node type tag becomes an adaptor.
//
// New constructs the adaptor for a node and must not return nil. The adaptor
// starts dirty; engine objects are created by its first Sync.
type Definition[A Adaptor] struct {
	New func(h Host, n Node) A
}

type compiledDefinition struct {
	newFn func(h Host, n Node) Adaptor
}

// Registry maps node type tags to adaptor kinds. It is the single factory
// selecting an adaptor for a node.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]compiledDefinition
	order []string
}

func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[string]compiledDefinition),
	}
}

// Register registers the adaptor kind for one node type tag.
func Register[A Adaptor](r *Registry, typeName string, def Definition[A]) error {
	if r == nil {
		return fmt.Errorf("register adaptor kind: registry is nil")
	}
	if typeName == "" {
		return fmt.Errorf("register adaptor kind: type is empty")
	}
	if def.New == nil {
		return fmt.Errorf("register adaptor kind: new func is nil for %s", typeName)
	}

	compiled := compiledDefinition{
		newFn: func(h Host, n Node) Adaptor {
			return def.New(h, n)
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[typeName]; exists {
		return DuplicateKindError{Type: typeName}
	}
	r.defs[typeName] = compiled
	r.order = append(r.order, typeName)
	return nil
}

// MustRegister panics on registration error; intended for bootstrap code paths.
func MustRegister[A Adaptor](r *Registry, typeName string, def Definition[A]) {
	if err := Register(r, typeName, def); err != nil {
		panic(err)
	}
}

// Kinds returns the registered type tags in registration order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Has reports whether typeName has an adaptor kind.
func (r *Registry) Has(typeName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defs[typeName]
	return ok
}

func (r *Registry) create(h Host, n Node) (Adaptor, bool) {
	r.mu.RLock()
	def, ok := r.defs[n.Type()]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return def.newFn(h, n), true
}
