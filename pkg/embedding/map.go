// Package embedding turns the trained input layer into a node-id keyed map and
// writes it out as text, binary frames or k-means classes.
package embedding

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/btree"

	"github.com/talnish/iiswc21-rwalk/pkg/graph"
	"github.com/talnish/iiswc21-rwalk/pkg/vocab"
)

var (
	// ErrNodeNotFound is returned by Lookup for nodes without a vector.
	ErrNodeNotFound = errors.New("embedding: node not found")
	// ErrInvalidToken is returned when a vocabulary token is not a node id.
	ErrInvalidToken = errors.New("embedding: token is not a node id")
	// ErrDimension is returned when a vector has the wrong length.
	ErrDimension = errors.New("embedding: dimension mismatch")
)

// Rows gives access to a row-major matrix, one row per vocabulary entry.
type Rows interface {
	Row(i int) []float32
}

// Entry is one node and its vector.
type Entry struct {
	Node   graph.NodeID
	Vector []float32
}

func entryLess(a, b Entry) bool { return a.Node < b.Node }

// Map holds node vectors ordered by node id.
type Map struct {
	dim  int
	tree *btree.BTreeG[Entry]
}

// NewMap returns an empty map for vectors of length dim.
func NewMap(dim int) *Map {
	return &Map{dim: dim, tree: btree.NewBTreeG[Entry](entryLess)}
}

// Dim returns the vector length.
func (m *Map) Dim() int { return m.dim }

// Len returns the number of nodes.
func (m *Map) Len() int { return m.tree.Len() }

// Set stores vec for node, replacing any previous vector. vec is not copied.
func (m *Map) Set(node graph.NodeID, vec []float32) error {
	if len(vec) != m.dim {
		return fmt.Errorf("%w: node %d has %d values, want %d", ErrDimension, node, len(vec), m.dim)
	}
	m.tree.Set(Entry{Node: node, Vector: vec})
	return nil
}

// Lookup returns the vector of node.
func (m *Map) Lookup(node graph.NodeID) ([]float32, error) {
	e, ok := m.tree.Get(Entry{Node: node})
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, node)
	}
	return e.Vector, nil
}

// Ascend calls fn for every node in increasing id order until fn returns false.
func (m *Map) Ascend(fn func(node graph.NodeID, vec []float32) bool) {
	m.tree.Scan(func(e Entry) bool {
		return fn(e.Node, e.Vector)
	})
}

// Extract copies the row of every vocabulary entry except the sentence
// boundary at slot 0 into a new map. Tokens must be decimal node ids.
func Extract(words []vocab.Word, rows Rows, dim int) (*Map, error) {
	m := NewMap(dim)
	for i := 1; i < len(words); i++ {
		id, err := strconv.ParseInt(words[i].Token, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidToken, words[i].Token)
		}
		vec := make([]float32, dim)
		copy(vec, rows.Row(i))
		if err := m.Set(graph.NodeID(id), vec); err != nil {
			return nil, err
		}
	}
	return m, nil
}
