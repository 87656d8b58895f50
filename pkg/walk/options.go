// Package walk samples time-respecting random walks over a temporal graph.
//
// Each walk starts at a node with the clock at InitialTime. At every step the
// walker considers only out-edges whose timestamp lies in the future of the
// current clock, prefers later edges with an exponential time-decay weight
// exp((t - now) / span), and advances the clock to the timestamp of the edge it
// took. A walk ends after MaxLength hops or when no future edge exists; unused
// trailing slots hold Sentinel.
//
// Walks from distinct nodes are independent and are computed concurrently over
// a read-only flattened adjacency (see Adjacency). The per-node loop is driven
// through the Kernel contract so it can be offloaded.
package walk

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/talnish/iiswc21-rwalk/pkg/graph"
)

// Sentinel marks unused trailing slots of a walk.
const Sentinel graph.NodeID = -1

// InitialTime is the clock value every walk starts from.
const InitialTime = 0.0

var (
	// ErrInvalidOptions is returned for non-positive lengths or walk counts.
	ErrInvalidOptions = errors.New("walk: invalid options")

	// ErrAcceleratorUnavailable is returned when an offload kernel is
	// requested that this process cannot provide.
	ErrAcceleratorUnavailable = errors.New("walk: accelerator unavailable")

	// ErrKernelState is returned when Kernel calls arrive out of order.
	ErrKernelState = errors.New("walk: kernel used out of order")
)

// FilterPolicy decides which out-edges are reachable from the current clock.
type FilterPolicy string

const (
	// FilterStrict admits edges with timestamp > now.
	FilterStrict FilterPolicy = "strict"
	// FilterInclusive admits edges with timestamp >= now.
	FilterInclusive FilterPolicy = "inclusive"
)

func (p FilterPolicy) admits(ts, now float64) bool {
	if p == FilterInclusive {
		return ts >= now
	}
	return ts > now
}

// Options configures a sampling pass.
type Options struct {
	// MaxLength is the maximum number of hops; walks hold up to MaxLength+1 ids.
	MaxLength int `yaml:"max_length"`
	// WalksPerNode is the number of independent walks started at every node.
	WalksPerNode int `yaml:"walks_per_node"`
	// Workers bounds the number of concurrent sampling tasks.
	Workers int `yaml:"workers"`
	// Seed is the base of every node's random stream.
	Seed int64 `yaml:"seed"`
	// Filter selects the strict (>) or inclusive (>=) time filter.
	Filter FilterPolicy `yaml:"filter"`
	// Kernel names the Kernel that runs the per-node loop ("host").
	Kernel string `yaml:"kernel"`
}

// DefaultOptions mirrors the reference hyperparameters: 5 hops, 10 walks.
func DefaultOptions() Options {
	return Options{
		MaxLength:    5,
		WalksPerNode: 10,
		Workers:      runtime.GOMAXPROCS(0),
		Seed:         1,
		Filter:       FilterStrict,
		Kernel:       KernelHost,
	}
}

// Validate checks the options and fills zero-valued optional fields.
func (o *Options) Validate() error {
	if o.MaxLength < 0 {
		return fmt.Errorf("%w: max_length %d", ErrInvalidOptions, o.MaxLength)
	}
	if o.WalksPerNode <= 0 {
		return fmt.Errorf("%w: walks_per_node %d", ErrInvalidOptions, o.WalksPerNode)
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	switch o.Filter {
	case "":
		o.Filter = FilterStrict
	case FilterStrict, FilterInclusive:
	default:
		return fmt.Errorf("%w: unknown filter %q", ErrInvalidOptions, o.Filter)
	}
	if o.Kernel == "" {
		o.Kernel = KernelHost
	}
	return nil
}
