package adaptors

import "github.com/chenyanchen/scenesync"

// Node mirrors a plain scene graph node.
type Node struct {
	spatial
}

var (
	_ scenesync.SceneObjectProvider = (*Node)(nil)
	_ scenesync.PropertyProvider    = (*Node)(nil)
)

func NewNode(h scenesync.Host, n scenesync.Node) *Node {
	return &Node{spatial: newSpatial(h, n, scenesync.KindNode)}
}

func (a *Node) Sync(_ *scenesync.Issues) bool {
	return a.syncSpatial()
}

func (a *Node) Close() {
	a.closeSpatial()
}
