package walk

import (
	"math"
	"math/rand"

	"github.com/talnish/iiswc21-rwalk/pkg/graph"
)

// TransitionProbabilities writes the normalized time-decay distribution over
// candidate edge timestamps into out (reusing its storage) and returns it.
// Weight of an edge is exp((t - now) / span); span must be non-zero.
func TransitionProbabilities(times []float64, now, span float64, out []float64) []float64 {
	out = out[:0]
	if len(times) == 0 {
		return out
	}
	// Exponents are taken relative to the largest one so exp() stays finite
	// for large timestamps; the shift cancels out in the normalization.
	top := math.Inf(-1)
	for _, t := range times {
		x := (t - now) / span
		out = append(out, x)
		top = max(top, x)
	}
	var sum float64
	for i, x := range out {
		out[i] = math.Exp(x - top)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// PickIndex returns the first index whose cumulative probability reaches r,
// or -1 if rounding left the total short of r.
func PickIndex(dist []float64, r float64) int {
	var cdf float64
	for i, p := range dist {
		cdf += p
		if cdf >= r {
			return i
		}
	}
	return -1
}

// walker holds per-task scratch space; one walker is never shared between
// goroutines.
type walker struct {
	adj    *Adjacency
	filter FilterPolicy
	rng    *rand.Rand

	cand  []int64
	times []float64
	dist  []float64
}

func newWalker(adj *Adjacency, filter FilterPolicy) *walker {
	return &walker{
		adj:    adj,
		filter: filter,
		rng:    rand.New(rand.NewSource(1)),
	}
}

// next chooses the edge to follow out of node at clock now.
func (w *walker) next(node graph.NodeID, now float64) (graph.NodeID, float64, bool) {
	lo, hi := w.adj.Scan[node], w.adj.Scan[node+1]
	if lo == hi {
		return 0, 0, false
	}

	w.cand, w.times = w.cand[:0], w.times[:0]
	for i := lo; i < hi; i++ {
		if w.filter.admits(w.adj.Times[i], now) {
			w.cand = append(w.cand, i)
			w.times = append(w.times, w.adj.Times[i])
		}
	}

	var k int
	switch len(w.cand) {
	case 0:
		return 0, 0, false
	case 1:
		k = 0
	default:
		span := w.adj.Spans[node]
		if span == 0 {
			// exp((t-now)/span) is undefined; every candidate is equally likely.
			k = w.rng.Intn(len(w.cand))
			break
		}
		w.dist = TransitionProbabilities(w.times, now, span, w.dist)
		if k = PickIndex(w.dist, w.rng.Float64()); k < 0 {
			k = w.rng.Intn(len(w.cand))
		}
	}

	e := w.cand[k]
	return w.adj.Neighbors[e], w.adj.Times[e], true
}

// walkFrom fills slot with a walk starting at start and returns its length.
func (w *walker) walkFrom(start graph.NodeID, slot []graph.NodeID) int {
	slot[0] = start
	cur, now := start, InitialTime
	n := 1
	for n < len(slot) {
		nb, ts, ok := w.next(cur, now)
		if !ok {
			break
		}
		slot[n] = nb
		cur, now = nb, ts
		n++
	}
	for i := n; i < len(slot); i++ {
		slot[i] = Sentinel
	}
	return n
}

// nodeSeed derives the seed of a node's random stream from the base seed.
func nodeSeed(base uint64, node graph.NodeID) int64 {
	return int64(base + uint64(node+1)*0x9E3779B97F4A7C15)
}
