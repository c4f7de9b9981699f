package oram

import (
	"io"
	"math/bits"
)

// Tree nodes are numbered 1..2^(H+1)-1 with the root at 1. Node i has
// children 2i and 2i+1, and the leaves occupy 2^H..2^(H+1)-1, so a leaf
// index is never zero and always has its top bit at position H. A leaf
// index doubles as the position identifier stored in blocks and in the
// position map.
//
// The panics below guard structural invariants, not secrets: every input
// reaching them is either public or already a uniformly random leaf.

// randomLeaf returns a uniformly random leaf of a tree of the given height.
// The leaf count is a power of two, so masking the raw draw is unbiased.
func randomLeaf(height uint64, rng io.Reader) (uint64, error) {
	r, err := randomUint64(rng)
	if err != nil {
		return 0, err
	}
	return 1<<height + (r & (1<<height - 1)), nil
}

// depth returns the depth of a node, with the root at depth 0.
func depth(node uint64) uint64 {
	if node == 0 {
		panic("oram: depth of node 0")
	}
	return uint64(63 - bits.LeadingZeros64(node))
}

// isLeaf reports whether node is a leaf of a tree of the given height.
func isLeaf(node, height uint64) bool {
	return node != 0 && depth(node) == height
}

// nodeOnPath returns the ancestor of leaf at depth d.
func nodeOnPath(leaf, d, height uint64) uint64 {
	if !isLeaf(leaf, height) {
		panic("oram: nodeOnPath of a non-leaf")
	}
	return leaf >> (height - d)
}

// commonAncestorOfLeaves returns the deepest node lying on both leaves'
// root-to-leaf paths. Both arguments must be leaves of the same tree.
func commonAncestorOfLeaves(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		panic("oram: commonAncestorOfLeaves of node 0")
	}
	if bits.LeadingZeros64(a) != bits.LeadingZeros64(b) {
		panic("oram: leaves of different depths")
	}
	shared := bits.LeadingZeros64(a ^ b)
	return a >> (64 - shared)
}
