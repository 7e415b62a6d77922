package scenesync

import (
	"fmt"
	"strings"
)

// DuplicateKindError means an adaptor kind is registered twice for one type tag.
type DuplicateKindError struct {
	Type string
}

func (e DuplicateKindError) Error() string {
	return fmt.Sprintf("adaptor kind already registered for type %q", e.Type)
}

// NodeNotFoundError means no adaptor exists for the node.
type NodeNotFoundError struct {
	ID NodeID
}

func (e NodeNotFoundError) Error() string {
	return fmt.Sprintf("no adaptor for node %q", string(e.ID))
}

// TypeMismatchError means LookupAs[T] found an adaptor of another kind.
type TypeMismatchError struct {
	ID       NodeID
	Expected string
	Actual   string
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("adaptor type mismatch for %q: expected=%s actual=%s",
		string(e.ID), e.Expected, e.Actual)
}

// CycleDetectedError describes a reference cycle found while ordering nodes.
// The edge closing the cycle is left out of the dependency graph.
type CycleDetectedError struct {
	Path []NodeID
}

func (e CycleDetectedError) Error() string {
	if len(e.Path) == 0 {
		return "reference cycle detected"
	}
	parts := make([]string, len(e.Path))
	for i := range e.Path {
		parts[i] = string(e.Path[i])
	}
	return "reference cycle detected: " + strings.Join(parts, " -> ")
}

// LinkNotFoundError means a link is neither active nor pending.
type LinkNotFoundError struct {
	Key LinkKey
}

func (e LinkNotFoundError) Error() string {
	return fmt.Sprintf("link not found: %s", e.Key.String())
}

// InvariantError is raised, by panic, when the scene's internal bookkeeping
// contradicts itself. It is a programming error, not a data error.
type InvariantError struct {
	Msg string
}

func (e InvariantError) Error() string {
	return "scenesync invariant violated: " + e.Msg
}
