package walk

import "github.com/talnish/iiswc21-rwalk/pkg/graph"

// Walks is the flat walk buffer produced by one sampling pass.
//
// Layout is [walkIndex][node][step]: all first walks of every node, then all
// second walks, and so on. This is also the order in which the corpus writer
// emits lines.
type Walks struct {
	NumNodes     int
	WalksPerNode int
	// Stride is MaxLength+1, the capacity of a single walk.
	Stride int
	Data   []graph.NodeID
}

// NewWalks allocates a buffer for walksPerNode walks of up to maxLength hops
// from each of numNodes nodes.
func NewWalks(numNodes, walksPerNode, maxLength int) *Walks {
	stride := maxLength + 1
	return &Walks{
		NumNodes:     numNodes,
		WalksPerNode: walksPerNode,
		Stride:       stride,
		Data:         make([]graph.NodeID, numNodes*walksPerNode*stride),
	}
}

// Slot returns the full Stride-long slot of walk walkIndex started at node,
// sentinel padding included.
func (w *Walks) Slot(walkIndex int, node graph.NodeID) []graph.NodeID {
	off := (walkIndex*w.NumNodes + int(node)) * w.Stride
	return w.Data[off : off+w.Stride]
}

// Walk returns the walk without its sentinel padding.
func (w *Walks) Walk(walkIndex int, node graph.NodeID) []graph.NodeID {
	slot := w.Slot(walkIndex, node)
	return slot[:TrueLength(slot)]
}

// Len returns the total number of walks in the buffer.
func (w *Walks) Len() int { return w.NumNodes * w.WalksPerNode }

// TrueLength returns the number of ids before the first Sentinel.
func TrueLength(slot []graph.NodeID) int {
	for i, id := range slot {
		if id == Sentinel {
			return i
		}
	}
	return len(slot)
}
