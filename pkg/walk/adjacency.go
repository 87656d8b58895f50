package walk

import "github.com/talnish/iiswc21-rwalk/pkg/graph"

// Adjacency is the host-built, flattened form of a temporal graph shared by
// all sampling tasks. It is never written after BuildAdjacency returns.
//
// Scan holds prefix sums of out-degrees: the out-edges of node n occupy
// Neighbors[Scan[n]:Scan[n+1]] and Times[Scan[n]:Scan[n+1]].
type Adjacency struct {
	Scan      []int64
	Neighbors []graph.NodeID
	Times     []float64
	// Spans caches graph.Temporal.TimeBoundsDelta per node.
	Spans []float64
}

// BuildAdjacency flattens g, preserving each node's out-edge order.
func BuildAdjacency(g graph.Temporal) *Adjacency {
	n := g.NumNodes()
	adj := &Adjacency{
		Scan:      make([]int64, n+1),
		Neighbors: make([]graph.NodeID, 0, g.NumEdges()),
		Times:     make([]float64, 0, g.NumEdges()),
		Spans:     make([]float64, n),
	}
	for i := 0; i < n; i++ {
		node := graph.NodeID(i)
		adj.Scan[i+1] = adj.Scan[i] + int64(g.OutDegree(node))
		for _, nb := range g.OutNeighbors(node) {
			adj.Neighbors = append(adj.Neighbors, nb.ID)
			adj.Times = append(adj.Times, nb.Time)
		}
		adj.Spans[i] = g.TimeBoundsDelta(node)
	}
	return adj
}

// NumNodes returns the number of nodes covered by the scan array.
func (a *Adjacency) NumNodes() int { return len(a.Scan) - 1 }

// OutDegree returns the number of out-edges of n.
func (a *Adjacency) OutDegree(n graph.NodeID) int {
	return int(a.Scan[n+1] - a.Scan[n])
}
