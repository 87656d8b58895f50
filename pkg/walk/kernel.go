package walk

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/talnish/iiswc21-rwalk/pkg/graph"
)

// KernelHost is the name of the in-process kernel.
const KernelHost = "host"

// nodesPerTask groups consecutive start nodes into one pool task.
const nodesPerTask = 64

// Kernel runs the per-node walk loop over a prebuilt Adjacency. Calls must
// follow Init, Run, Results, Cleanup.
type Kernel interface {
	Init(maxLength, walksPerNode int) error
	Run(ctx context.Context, maxLength, walksPerNode int, seed uint64) error
	Results() (*Walks, error)
	Cleanup() error
}

// NewKernel returns the kernel registered under name. Anything other than
// KernelHost fails with ErrAcceleratorUnavailable before any work is done.
func NewKernel(name string, adj *Adjacency, opts Options) (Kernel, error) {
	switch name {
	case "", KernelHost:
		return NewHostKernel(adj, opts.Filter, opts.Workers), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrAcceleratorUnavailable, name)
	}
}

// HostKernel runs walks on a bounded pool of goroutines.
type HostKernel struct {
	adj     *Adjacency
	filter  FilterPolicy
	workers int

	walks *Walks
	steps atomic.Int64
}

// NewHostKernel creates a host kernel; workers <= 0 means one worker.
func NewHostKernel(adj *Adjacency, filter FilterPolicy, workers int) *HostKernel {
	return &HostKernel{adj: adj, filter: filter, workers: max(workers, 1)}
}

// Init allocates the walk buffer.
func (k *HostKernel) Init(maxLength, walksPerNode int) error {
	if maxLength < 0 || walksPerNode <= 0 {
		return fmt.Errorf("%w: max_length=%d walks_per_node=%d", ErrInvalidOptions, maxLength, walksPerNode)
	}
	k.walks = NewWalks(k.adj.NumNodes(), walksPerNode, maxLength)
	k.steps.Store(0)
	return nil
}

// Run computes every walk. It returns once all tasks have joined.
func (k *HostKernel) Run(ctx context.Context, maxLength, walksPerNode int, seed uint64) error {
	if k.walks == nil || k.walks.Stride != maxLength+1 || k.walks.WalksPerNode != walksPerNode {
		return fmt.Errorf("%w: Run before Init", ErrKernelState)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(k.workers)

	numNodes := k.adj.NumNodes()
	for lo := 0; lo < numNodes; lo += nodesPerTask {
		hi := min(lo+nodesPerTask, numNodes)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			w := newWalker(k.adj, k.filter)
			var steps int64
			for n := lo; n < hi; n++ {
				node := graph.NodeID(n)
				// All walks of a node share one seed stream.
				w.rng.Seed(nodeSeed(seed, node))
				for wi := 0; wi < walksPerNode; wi++ {
					steps += int64(w.walkFrom(node, k.walks.Slot(wi, node)) - 1)
				}
			}
			k.steps.Add(steps)
			return nil
		})
	}
	return g.Wait()
}

// Results hands over the walk buffer.
func (k *HostKernel) Results() (*Walks, error) {
	if k.walks == nil {
		return nil, fmt.Errorf("%w: Results before Init", ErrKernelState)
	}
	return k.walks, nil
}

// Steps returns the number of hops taken by the last Run.
func (k *HostKernel) Steps() int64 { return k.steps.Load() }

// Cleanup drops the kernel's reference to the walk buffer.
func (k *HostKernel) Cleanup() error {
	k.walks = nil
	return nil
}
