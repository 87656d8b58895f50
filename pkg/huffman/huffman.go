// Package huffman builds the binary Huffman tree used by hierarchical softmax.
//
// The tree lives in a flat arena of 2V-1 nodes: indices [0, V) are leaves in
// vocabulary order, indices [V, 2V-1) are internal nodes in creation order,
// and the last internal node is the root. Internal node i is exposed to the
// trainer as output-layer row i-V.
package huffman

import (
	"errors"
	"fmt"
)

// MaxCodeLength bounds the depth of any leaf.
const MaxCodeLength = 40

// unused is the count of internal slots that have not been merged yet.
const unused int64 = 1e15

var (
	// ErrNotSorted is returned when leaf counts after slot 0 are not in descending order.
	ErrNotSorted = errors.New("huffman: counts must be sorted in descending order")
	// ErrTooDeep is returned when a code would exceed MaxCodeLength.
	ErrTooDeep = errors.New("huffman: code exceeds maximum length")
)

// Node is one arena slot.
type Node struct {
	Count int64
	// Parent is the arena index of the parent, -1 for the root.
	Parent int32
	// Branch is the bit on the edge from Parent to this node.
	Branch uint8
}

// Tree is a Huffman tree over V leaves.
type Tree struct {
	V     int
	Nodes []Node
}

// IsLeaf reports whether arena index i is a leaf.
func (t *Tree) IsLeaf(i int) bool { return i < t.V }

// Root returns the arena index of the root.
func (t *Tree) Root() int { return len(t.Nodes) - 1 }

// Build merges the two smallest unconsumed counts V-1 times. Leaves arrive in
// descending order, so one cursor walks leaves from the low end while a
// second walks internal nodes in creation order. Leaf 0 is the sentence
// boundary and may hold any count; it is merged last among the leaves.
func Build(counts []int64) (*Tree, error) {
	v := len(counts)
	for i := 2; i < v; i++ {
		if counts[i] > counts[i-1] {
			return nil, fmt.Errorf("%w: index %d", ErrNotSorted, i)
		}
	}

	t := &Tree{V: v, Nodes: make([]Node, max(2*v-1, v))}
	if v == 0 {
		return t, nil
	}
	for i := range t.Nodes {
		t.Nodes[i].Parent = -1
		if i < v {
			t.Nodes[i].Count = counts[i]
		} else {
			t.Nodes[i].Count = unused
		}
	}

	leaf, inner := v-1, v
	pick := func() int {
		if leaf >= 0 && (inner >= len(t.Nodes) || t.Nodes[leaf].Count < t.Nodes[inner].Count) {
			leaf--
			return leaf + 1
		}
		inner++
		return inner - 1
	}

	for a := 0; a < v-1; a++ {
		min1 := pick()
		min2 := pick()
		parent := v + a
		t.Nodes[parent].Count = t.Nodes[min1].Count + t.Nodes[min2].Count
		t.Nodes[min1].Parent = int32(parent)
		t.Nodes[min2].Parent = int32(parent)
		t.Nodes[min2].Branch = 1
	}

	for i := 0; i < v; i++ {
		if d := t.Depth(i); d > MaxCodeLength {
			return nil, fmt.Errorf("%w: leaf %d depth %d", ErrTooDeep, i, d)
		}
	}
	return t, nil
}

// Depth returns the number of edges between leaf and the root.
func (t *Tree) Depth(leaf int) int {
	d := 0
	for n := leaf; t.Nodes[n].Parent >= 0; n = int(t.Nodes[n].Parent) {
		d++
	}
	return d
}

// Code returns the bits from the root down to leaf, and the output-layer row
// (internal index minus V) of every internal node on that path, root first.
func (t *Tree) Code(leaf int) ([]byte, []int32) {
	depth := t.Depth(leaf)
	code := make([]byte, depth)
	path := make([]int32, depth)

	n := leaf
	for i := depth - 1; i >= 0; i-- {
		p := int(t.Nodes[n].Parent)
		code[i] = t.Nodes[n].Branch
		path[i] = int32(p - t.V)
		n = p
	}
	return code, path
}
