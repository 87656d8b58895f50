package walk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/talnish/iiswc21-rwalk/pkg/graph"
	"github.com/talnish/iiswc21-rwalk/pkg/metrics"
)

// Sampler produces WalksPerNode walks from every node of a graph.
type Sampler struct {
	g    graph.Temporal
	opts Options
}

// NewSampler validates opts and binds them to g.
func NewSampler(g graph.Temporal, opts Options) (*Sampler, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Sampler{g: g, opts: opts}, nil
}

// Options returns the validated options.
func (s *Sampler) Options() Options { return s.opts }

// Sample flattens the graph and runs the configured kernel over it.
func (s *Sampler) Sample(ctx context.Context) (*Walks, error) {
	adj := BuildAdjacency(s.g)
	k, err := NewKernel(s.opts.Kernel, adj, s.opts)
	if err != nil {
		return nil, err
	}
	return s.SampleWith(ctx, k)
}

// SampleWith drives k through Init, Run, Results and Cleanup.
func (s *Sampler) SampleWith(ctx context.Context, k Kernel) (*Walks, error) {
	slog.Info("[WALK] Computing random walks",
		"nodes", s.g.NumNodes(),
		"edges", s.g.NumEdges(),
		"max_length", s.opts.MaxLength,
		"walks_per_node", s.opts.WalksPerNode,
		"filter", s.opts.Filter,
	)
	start := time.Now()

	if err := k.Init(s.opts.MaxLength, s.opts.WalksPerNode); err != nil {
		return nil, fmt.Errorf("walk: kernel init: %w", err)
	}
	defer func() {
		if err := k.Cleanup(); err != nil {
			slog.Warn("[WALK] Kernel cleanup failed", "error", err)
		}
	}()

	if err := k.Run(ctx, s.opts.MaxLength, s.opts.WalksPerNode, uint64(s.opts.Seed)); err != nil {
		return nil, fmt.Errorf("walk: kernel run: %w", err)
	}
	walks, err := k.Results()
	if err != nil {
		return nil, fmt.Errorf("walk: kernel results: %w", err)
	}

	metrics.WalksGenerated.Add(float64(walks.Len()))
	if hk, ok := k.(*HostKernel); ok {
		metrics.WalkSteps.Add(float64(hk.Steps()))
	}
	slog.Info("[WALK] Random walks computed", "walks", walks.Len(), "elapsed", time.Since(start))
	return walks, nil
}
