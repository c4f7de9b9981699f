package oram

import (
	"io"
	"math/bits"

	"github.com/rs/zerolog"
)

// positionMap tracks, for every logical address, the leaf its block
// currently lives under. Small maps pack their entries into position blocks
// stored in a linear-scan ORAM; larger maps store the position blocks in
// another Path ORAM whose own position map is built by the same rule, so
// the recursion shrinks by a factor of AB per level and always terminates
// in a linear base.
type positionMap interface {
	// writePosition atomically swaps the stored leaf for address and
	// returns the previous one.
	writePosition(address, newPosition uint64, rng io.Reader) (uint64, error)

	// writePositionBlock bulk-writes a whole position block. Used only
	// during construction.
	writePositionBlock(address uint64, pb PositionBlock, rng io.Reader) error

	// recursionHeight returns the number of Path ORAM levels below this
	// map.
	recursionHeight() int
}

// newPositionMap builds the position map for an ORAM of the given capacity.
func newPositionMap(log zerolog.Logger, capacity uint64, rng io.Reader, cfg Config) (positionMap, error) {
	ab := uint64(cfg.PositionBlockSize)
	abBits := uint64(bits.TrailingZeros64(ab))
	proto := make(PositionBlock, cfg.PositionBlockSize)

	if capacity/ab <= cfg.RecursionCutoff {
		numBlocks := capacity / ab
		if capacity%ab > 0 {
			numBlocks++
		}
		inner, err := NewLinearOram(proto, numBlocks)
		if err != nil {
			return nil, err
		}
		return &linearPositionMap{oram: inner, ab: ab, abBits: abBits}, nil
	}

	inner, err := NewPathOram(log, proto, capacity/ab, rng, cfg)
	if err != nil {
		return nil, err
	}
	return &recursivePositionMap{oram: inner, ab: ab, abBits: abBits}, nil
}

// positionUpdateCallback returns a callback that replaces the entry at
// offset with newPosition and copies every other entry unchanged, via
// constant-time selection over the whole block.
func positionUpdateCallback(offset, newPosition uint64) func(PositionBlock) PositionBlock {
	return func(pb PositionBlock) PositionBlock {
		out := make(PositionBlock, len(pb))
		for i := range pb {
			match := ctEq64(uint64(i), offset)
			out[i] = ctSelect64(pb[i], newPosition, match)
		}
		return out
	}
}

// linearPositionMap is the recursion base: all position blocks live in a
// linear-scan ORAM.
type linearPositionMap struct {
	oram   *LinearOram[PositionBlock]
	ab     uint64
	abBits uint64
}

func (m *linearPositionMap) writePosition(address, newPosition uint64, rng io.Reader) (uint64, error) {
	blockAddress := address >> m.abBits
	offset := address & (m.ab - 1)
	pb, err := m.oram.Access(blockAddress, positionUpdateCallback(offset, newPosition), rng)
	if err != nil {
		return 0, err
	}
	return pb[offset], nil
}

func (m *linearPositionMap) writePositionBlock(address uint64, pb PositionBlock, rng io.Reader) error {
	_, err := m.oram.Write(address>>m.abBits, pb, rng)
	return err
}

func (m *linearPositionMap) recursionHeight() int { return 0 }

// recursivePositionMap stores its position blocks in another Path ORAM.
type recursivePositionMap struct {
	oram   *PathOram[PositionBlock]
	ab     uint64
	abBits uint64
}

func (m *recursivePositionMap) writePosition(address, newPosition uint64, rng io.Reader) (uint64, error) {
	blockAddress := address >> m.abBits
	offset := address & (m.ab - 1)
	pb, err := m.oram.Access(blockAddress, positionUpdateCallback(offset, newPosition), rng)
	if err != nil {
		return 0, err
	}

	// The returned block crossed an oblivious boundary; extract the old
	// entry with a constant-time scan rather than an indexed load.
	var old uint64
	for i := range pb {
		match := ctEq64(uint64(i), offset)
		old = ctSelect64(old, pb[i], match)
	}
	return old, nil
}

func (m *recursivePositionMap) writePositionBlock(address uint64, pb PositionBlock, rng io.Reader) error {
	_, err := m.oram.Write(address>>m.abBits, pb, rng)
	return err
}

func (m *recursivePositionMap) recursionHeight() int {
	return 1 + m.oram.RecursionHeight()
}
