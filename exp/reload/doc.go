// Package reload provides experimental hot reload of scene descriptions.
//
// Reconciler is the core type and performs, for each new description:
// 1. hash every node description and diff against the applied snapshot
// 2. remove vanished nodes, keeping surviving children
// 3. create new nodes in declaration order
// 4. reparent moved nodes and rewrite changed properties
// 5. diff links and commit everything as one change batch
//
// This package is EXPERIMENTAL and its API may change before v1.
package reload
