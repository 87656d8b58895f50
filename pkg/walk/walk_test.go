package walk

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/talnish/iiswc21-rwalk/pkg/graph"
)

func mustCSR(t testing.TB, n int, edges []graph.Edge) *graph.CSR {
	t.Helper()
	g, err := graph.NewCSR(n, edges, false)
	require.NoError(t, err)
	return g
}

func sample(t testing.TB, g graph.Temporal, opts Options) *Walks {
	t.Helper()
	s, err := NewSampler(g, opts)
	require.NoError(t, err)
	walks, err := s.Sample(context.Background())
	require.NoError(t, err)
	return walks
}

func chainGraph(t testing.TB) *graph.CSR {
	return mustCSR(t, 4, []graph.Edge{
		{Src: 0, Dst: 1, Time: 1},
		{Src: 1, Dst: 2, Time: 2},
		{Src: 2, Dst: 3, Time: 3},
	})
}

func TestChainWalks(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxLength = 3
	opts.WalksPerNode = 1
	walks := sample(t, chainGraph(t), opts)

	assert.Equal(t, []graph.NodeID{0, 1, 2, 3}, walks.Walk(0, 0))
	assert.Equal(t, []graph.NodeID{1, 2, 3}, walks.Walk(0, 1))
	assert.Equal(t, []graph.NodeID{2, 3}, walks.Walk(0, 2))
	assert.Equal(t, []graph.NodeID{3}, walks.Walk(0, 3))
	assert.Equal(t, []graph.NodeID{3, Sentinel, Sentinel, Sentinel}, walks.Slot(0, 3))
}

func TestDeadEndNodesYieldSingletonWalks(t *testing.T) {
	g := mustCSR(t, 5, []graph.Edge{
		{Src: 0, Dst: 1, Time: 4},
		{Src: 0, Dst: 2, Time: 6},
	})
	opts := DefaultOptions()
	opts.MaxLength = 4
	opts.WalksPerNode = 3
	walks := sample(t, g, opts)

	for _, node := range []graph.NodeID{1, 2, 3, 4} {
		require.Zero(t, g.OutDegree(node))
		for wi := 0; wi < opts.WalksPerNode; wi++ {
			slot := walks.Slot(wi, node)
			assert.Equal(t, node, slot[0])
			assert.Equal(t, 1, TrueLength(slot))
			for _, id := range slot[1:] {
				assert.Equal(t, Sentinel, id)
			}
		}
	}
}

func TestWalksRespectTime(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var edges []graph.Edge
	for i := 0; i < 400; i++ {
		edges = append(edges, graph.Edge{
			Src:  graph.NodeID(rng.Intn(30)),
			Dst:  graph.NodeID(rng.Intn(30)),
			Time: float64(rng.Intn(50)),
		})
	}
	g := mustCSR(t, 30, edges)
	opts := DefaultOptions()
	opts.MaxLength = 8
	opts.WalksPerNode = 5
	walks := sample(t, g, opts)

	// earliest returns the smallest timestamp of a src->dst edge after the
	// given time. Parallel edges are not sorted by time.
	earliest := func(src, dst graph.NodeID, after float64) (float64, bool) {
		best, ok := 0.0, false
		for _, nb := range g.OutNeighbors(src) {
			if nb.ID == dst && nb.Time > after && (!ok || nb.Time < best) {
				best, ok = nb.Time, true
			}
		}
		return best, ok
	}
	for wi := 0; wi < opts.WalksPerNode; wi++ {
		for n := 0; n < 30; n++ {
			w := walks.Walk(wi, graph.NodeID(n))
			now := InitialTime
			for i := 1; i < len(w); i++ {
				next, ok := earliest(w[i-1], w[i], now)
				require.True(t, ok, "hop %d->%d has no edge after t=%v", w[i-1], w[i], now)
				// The walker may take any admissible parallel edge, so only
				// the earliest one is a safe lower bound for the next hop.
				now = next
			}
		}
	}
}

func TestTransitionProbabilitiesSumToOne(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 200; trial++ {
		n := 2 + rng.Intn(20)
		times := make([]float64, n)
		for i := range times {
			times[i] = 1 + rng.Float64()*1000
		}
		now := rng.Float64()
		span := 0.5 + rng.Float64()*999
		dist := TransitionProbabilities(times, now, span, nil)

		var sum float64
		for _, p := range dist {
			require.False(t, math.IsNaN(p))
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-6)
	}
}

func TestTransitionProbabilitiesFavorLaterEdges(t *testing.T) {
	dist := TransitionProbabilities([]float64{1, 10}, 0, 9, nil)
	require.Len(t, dist, 2)
	assert.InDelta(t, math.E/(1+math.E), dist[1], 1e-9)
	assert.Greater(t, dist[1], dist[0])
}

func TestTransitionProbabilitiesLargeTimestamps(t *testing.T) {
	dist := TransitionProbabilities([]float64{1.6e12, 1.6e12 + 5}, 0, 5, nil)
	assert.InDelta(t, 1.0, dist[0]+dist[1], 1e-9)
	assert.InDelta(t, math.E/(1+math.E), dist[1], 1e-9)
}

func TestPickIndex(t *testing.T) {
	dist := []float64{0.2, 0.3, 0.5}
	assert.Equal(t, 0, PickIndex(dist, 0))
	assert.Equal(t, 0, PickIndex(dist, 0.2))
	assert.Equal(t, 1, PickIndex(dist, 0.21))
	assert.Equal(t, 2, PickIndex(dist, 0.99))
	assert.Equal(t, -1, PickIndex([]float64{0.3, 0.3}, 0.9), "shortfall is reported")
}

func TestZeroSpanIsUniform(t *testing.T) {
	const fanout = 4
	var edges []graph.Edge
	for i := 1; i <= fanout; i++ {
		edges = append(edges, graph.Edge{Src: 0, Dst: graph.NodeID(i), Time: 5})
	}
	g := mustCSR(t, fanout+1, edges)
	require.Zero(t, g.TimeBoundsDelta(0))

	opts := DefaultOptions()
	opts.MaxLength = 1
	opts.WalksPerNode = 12000
	walks := sample(t, g, opts)

	obs := make([]float64, fanout)
	for wi := 0; wi < opts.WalksPerNode; wi++ {
		w := walks.Walk(wi, 0)
		require.Len(t, w, 2)
		obs[w[1]-1]++
	}
	exp := make([]float64, fanout)
	for i := range exp {
		exp[i] = float64(opts.WalksPerNode) / fanout
	}

	chi2 := stat.ChiSquare(obs, exp)
	critical := distuv.ChiSquared{K: fanout - 1}.Quantile(0.999)
	assert.Less(t, chi2, critical, "observed %v", obs)
}

func TestDecayBiasMatchesDistribution(t *testing.T) {
	g := mustCSR(t, 3, []graph.Edge{
		{Src: 0, Dst: 1, Time: 1},
		{Src: 0, Dst: 2, Time: 10},
	})
	opts := DefaultOptions()
	opts.MaxLength = 1
	opts.WalksPerNode = 20000
	walks := sample(t, g, opts)

	var later int
	for wi := 0; wi < opts.WalksPerNode; wi++ {
		if walks.Walk(wi, 0)[1] == 2 {
			later++
		}
	}
	frac := float64(later) / float64(opts.WalksPerNode)
	assert.InDelta(t, math.E/(1+math.E), frac, 0.02)
}

func TestInclusiveFilter(t *testing.T) {
	// 1 -> 2 shares the timestamp of the edge used to reach node 1.
	g := mustCSR(t, 3, []graph.Edge{
		{Src: 0, Dst: 1, Time: 2},
		{Src: 1, Dst: 2, Time: 2},
	})
	opts := DefaultOptions()
	opts.MaxLength = 2
	opts.WalksPerNode = 1

	strict := sample(t, g, opts)
	assert.Equal(t, []graph.NodeID{0, 1}, strict.Walk(0, 0))

	opts.Filter = FilterInclusive
	inclusive := sample(t, g, opts)
	assert.Equal(t, []graph.NodeID{0, 1, 2}, inclusive.Walk(0, 0))
}

func TestSamplingIsDeterministicPerSeed(t *testing.T) {
	g := mustCSR(t, 4, []graph.Edge{
		{Src: 0, Dst: 1, Time: 1}, {Src: 0, Dst: 2, Time: 3}, {Src: 0, Dst: 3, Time: 7},
		{Src: 1, Dst: 0, Time: 4}, {Src: 1, Dst: 3, Time: 9},
		{Src: 2, Dst: 0, Time: 5}, {Src: 3, Dst: 0, Time: 8},
	})
	opts := DefaultOptions()
	opts.WalksPerNode = 20
	opts.Seed = 42

	opts.Workers = 1
	a := sample(t, g, opts)
	opts.Workers = 8
	b := sample(t, g, opts)
	assert.Equal(t, a.Data, b.Data)
}

func TestUnknownKernel(t *testing.T) {
	opts := DefaultOptions()
	opts.Kernel = "cuda"
	s, err := NewSampler(chainGraph(t), opts)
	require.NoError(t, err)
	_, err = s.Sample(context.Background())
	assert.ErrorIs(t, err, ErrAcceleratorUnavailable)
}

func TestHostKernelOrder(t *testing.T) {
	k := NewHostKernel(BuildAdjacency(chainGraph(t)), FilterStrict, 2)
	err := k.Run(context.Background(), 3, 1, 1)
	assert.ErrorIs(t, err, ErrKernelState)

	require.NoError(t, k.Init(3, 1))
	require.NoError(t, k.Run(context.Background(), 3, 1, 1))
	walks, err := k.Results()
	require.NoError(t, err)
	assert.Equal(t, []graph.NodeID{0, 1, 2, 3}, walks.Walk(0, 0))
	assert.EqualValues(t, 6, k.Steps())
	require.NoError(t, k.Cleanup())
}

func TestSampleCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := NewSampler(chainGraph(t), DefaultOptions())
	require.NoError(t, err)
	_, err = s.Sample(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptionsValidate(t *testing.T) {
	opts := DefaultOptions()
	opts.WalksPerNode = 0
	assert.ErrorIs(t, opts.Validate(), ErrInvalidOptions)

	opts = DefaultOptions()
	opts.Filter = "sometimes"
	assert.ErrorIs(t, opts.Validate(), ErrInvalidOptions)
}

func BenchmarkSample(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	const nodes = 2000
	edges := make([]graph.Edge, 0, nodes*8)
	for i := 0; i < nodes*8; i++ {
		edges = append(edges, graph.Edge{
			Src:  graph.NodeID(rng.Intn(nodes)),
			Dst:  graph.NodeID(rng.Intn(nodes)),
			Time: float64(rng.Intn(1000)),
		})
	}
	g := mustCSR(b, nodes, edges)
	opts := DefaultOptions()
	s, err := NewSampler(g, opts)
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Sample(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}
