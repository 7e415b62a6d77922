// Package scenesync keeps an editor's object graph mirrored into a target
// rendering engine's scene representation.
//
// It offers:
// - adaptor kinds registered per node type tag, with capability interfaces
// - dependency graph building with deterministic order and cycle reporting
// - a link registry that lifts and reconnects engine links around resyncs
// - a reference-counted cache of shared fallback resources
// - one bulk update pass per upstream change batch
package scenesync
