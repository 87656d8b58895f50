// Package graph defines the temporal graph boundary consumed by the walk
// sampler, plus a compact in-memory CSR implementation of it.
//
// The sampler only needs ordered out-neighbor lists per node, the out-degree,
// global node/edge counts, and a per-node "time-bounds delta" (the span
// between the latest and earliest outgoing timestamp). Anything that can answer
// those questions can drive a walk.
package graph

import (
	"errors"
	"fmt"
	"sort"
)

// Sentinel errors for graph construction.
var (
	// ErrNegativeNode indicates an edge endpoint below zero.
	ErrNegativeNode = errors.New("graph: negative node id")

	// ErrMalformedLine indicates an edge-list line that could not be parsed.
	ErrMalformedLine = errors.New("graph: malformed edge-list line")

	// ErrNodeOutOfRange indicates an edge referencing a node >= numNodes.
	ErrNodeOutOfRange = errors.New("graph: node id out of range")
)

// NodeID identifies a node. Valid ids are contiguous in [0, NumNodes).
type NodeID int32

// Neighbor is one outgoing temporal edge as seen from its source.
type Neighbor struct {
	ID   NodeID
	Time float64
}

// Edge is a timestamped directed edge. Weight is carried but unused by the
// sampler.
type Edge struct {
	Src    NodeID
	Dst    NodeID
	Time   float64
	Weight float64
}

// Temporal is the read-only view of a temporal graph the sampler relies on.
type Temporal interface {
	NumNodes() int
	NumEdges() int
	OutDegree(n NodeID) int
	// OutNeighbors returns the out-edges of n in their stored order.
	// Callers must not modify the returned slice.
	OutNeighbors(n NodeID) []Neighbor
	// TimeBoundsDelta is max(out timestamps) - min(out timestamps), 0 for
	// nodes with fewer than two out-edges.
	TimeBoundsDelta(n NodeID) float64
}

// CSR is a compressed sparse row temporal graph.
type CSR struct {
	offsets   []int64
	neighbors []Neighbor
	deltas    []float64
}

var _ Temporal = (*CSR)(nil)

// NewCSR builds a graph over numNodes nodes. Out-neighbors keep the relative
// order in which their edges appear in edges. If symmetrize is set every edge
// is also inserted in the reverse direction with the same timestamp.
func NewCSR(numNodes int, edges []Edge, symmetrize bool) (*CSR, error) {
	if numNodes < 0 {
		return nil, fmt.Errorf("graph: invalid node count %d", numNodes)
	}
	for _, e := range edges {
		if e.Src < 0 || e.Dst < 0 {
			return nil, fmt.Errorf("%w: %d -> %d", ErrNegativeNode, e.Src, e.Dst)
		}
		if int(e.Src) >= numNodes || int(e.Dst) >= numNodes {
			return nil, fmt.Errorf("%w: %d -> %d (nodes=%d)", ErrNodeOutOfRange, e.Src, e.Dst, numNodes)
		}
	}

	all := edges
	if symmetrize {
		all = make([]Edge, 0, 2*len(edges))
		for _, e := range edges {
			all = append(all, e, Edge{Src: e.Dst, Dst: e.Src, Time: e.Time, Weight: e.Weight})
		}
	}

	order := make([]int, len(all))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return all[order[a]].Src < all[order[b]].Src })

	g := &CSR{
		offsets:   make([]int64, numNodes+1),
		neighbors: make([]Neighbor, len(all)),
		deltas:    make([]float64, numNodes),
	}
	for _, e := range all {
		g.offsets[e.Src+1]++
	}
	for i := 0; i < numNodes; i++ {
		g.offsets[i+1] += g.offsets[i]
	}
	for i, idx := range order {
		e := all[idx]
		g.neighbors[i] = Neighbor{ID: e.Dst, Time: e.Time}
	}

	for n := 0; n < numNodes; n++ {
		out := g.neighbors[g.offsets[n]:g.offsets[n+1]]
		if len(out) < 2 {
			continue
		}
		lo, hi := out[0].Time, out[0].Time
		for _, nb := range out[1:] {
			lo = min(lo, nb.Time)
			hi = max(hi, nb.Time)
		}
		g.deltas[n] = hi - lo
	}
	return g, nil
}

func (g *CSR) NumNodes() int { return len(g.deltas) }

func (g *CSR) NumEdges() int { return len(g.neighbors) }

func (g *CSR) OutDegree(n NodeID) int {
	return int(g.offsets[n+1] - g.offsets[n])
}

func (g *CSR) OutNeighbors(n NodeID) []Neighbor {
	return g.neighbors[g.offsets[n]:g.offsets[n+1]]
}

func (g *CSR) TimeBoundsDelta(n NodeID) float64 { return g.deltas[n] }
