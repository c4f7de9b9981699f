package oram

import "github.com/rs/zerolog"

// stashGrowthIncrement is the number of dummy slots appended when the stash
// overflows during eviction.
const stashGrowthIncrement = 10

// Level tags driving the eviction sort. Blocks assigned to a bucket carry
// the bucket's depth, so sorting moves them to the front in depth order;
// overflowed real blocks sort after them and stay in the stash; free
// dummies sort last.
const (
	levelOverflow   = ^uint64(0) - 1
	levelUnassigned = ^uint64(0)
)

// stash holds the blocks in flight between tree paths. The first pathSize
// slots form the path buffer reloaded on every access; the remainder is the
// overflow region that persists between accesses.
type stash[V Value[V]] struct {
	log        zerolog.Logger
	blocks     []block[V]
	pathSize   int
	bucketSize int
	proto      V
}

// newStash returns an all-dummy stash for paths of pathSize blocks plus an
// overflow region of overflowSize blocks.
func newStash[V Value[V]](log zerolog.Logger, proto V, pathSize, overflowSize, bucketSize int) *stash[V] {
	blocks := make([]block[V], pathSize+overflowSize)
	for i := range blocks {
		blocks[i] = dummyBlock(proto)
	}
	return &stash[V]{
		log:        log,
		blocks:     blocks,
		pathSize:   pathSize,
		bucketSize: bucketSize,
		proto:      proto,
	}
}

// readFromPath copies the Z blocks of every bucket on the root-to-leaf path
// into the path buffer. The leaf being read is a previously drawn uniform
// random value, so the bucket indices touched here reveal nothing.
func (s *stash[V]) readFromPath(store *treeStore[V], leaf uint64) {
	height := depth(leaf)
	z := s.bucketSize
	for d := s.pathSize/z - 1; d >= 0; d-- {
		bkt := store.readBucket(nodeOnPath(leaf, uint64(d), height))
		copy(s.blocks[z*d:z*d+z], bkt.blocks)
	}
}

// access scans every stash entry, reading the value at address into the
// result, re-tagging the matching block with its new position, and
// replacing its value with the callback's output. The callback runs on
// every iteration; selection masks whether its result sticks, so the sweep
// touches the same memory in the same order regardless of where (or
// whether) the address matches.
func (s *stash[V]) access(address, newPosition uint64, callback func(V) V) V {
	result := s.proto.Zero()
	for i := range s.blocks {
		b := &s.blocks[i]
		match := ctEq64(b.address, address)
		result = result.Select(b.value, match)
		b.position = ctSelect64(b.position, newPosition, match)
		b.value = b.value.Select(callback(result), match)
	}
	return result
}

// writeToPath redistributes the stash over the H+1 buckets of the path to
// leaf, placing every real block in the deepest non-full bucket that lies
// on both the block's own path and the eviction path, padding each bucket to
// exactly Z blocks with dummies, and retaining whatever does not fit.
// Everything runs in constant time except stash growth, which reveals that
// an overflow occurred and nothing more.
func (s *stash[V]) writeToPath(store *treeStore[V], leaf uint64) {
	height := depth(leaf)
	z := uint64(s.bucketSize)

	levels := make([]uint64, len(s.blocks))
	for i := range levels {
		levels[i] = levelUnassigned
	}
	counts := make([]uint64, height+1)

	// Assignment pass. The depth loop runs leaf to root so each block lands
	// as deep as possible, freeing slots near the root for later blocks;
	// it always scans every depth to keep the trace uniform.
	for i := range s.blocks {
		b := s.blocks[i]
		dummy := b.isDummy()

		// Dummies run the same arithmetic on an arbitrary leaf; their
		// result is masked out below.
		position := ctSelect64(b.position, 1<<height, dummy)

		assigned := Choice(0)
		for d := int(height); d >= 0; d-- {
			du := uint64(d)
			full := ctEq64(counts[d], z)
			onPath := ctEq64(nodeOnPath(position, du, height), nodeOnPath(leaf, du, height))
			place := onPath & (1 ^ full) & (1 ^ dummy) & (1 ^ assigned)
			assigned |= place
			counts[d] = ctSelect64(counts[d], counts[d]+1, place)
			levels[i] = ctSelect64(levels[i], du, place)
		}
		levels[i] = ctSelect64(levels[i], levelOverflow, (1^assigned)&(1^dummy))
	}

	// Dummy fill. Pad every bucket up to Z with free dummies. If the
	// dummies run out before the buckets fill, grow the stash and resume
	// with the fresh slots.
	firstUnassigned := 0
	for {
		for i := firstUnassigned; i < len(s.blocks); i++ {
			free := s.blocks[i].isDummy()
			assigned := Choice(0)
			for d := uint64(0); d <= height; d++ {
				full := ctEq64(counts[d], z)
				fill := (1 ^ assigned) & (1 ^ full) & free
				levels[i] = ctSelect64(levels[i], d, fill)
				counts[d] = ctSelect64(counts[d], counts[d]+1, fill)
				assigned |= fill
			}
		}

		unfilled := Choice(0)
		for d := range counts {
			unfilled |= 1 ^ ctEq64(counts[d], z)
		}
		if unfilled == 0 {
			break
		}

		firstUnassigned = len(s.blocks)
		for j := 0; j < stashGrowthIncrement; j++ {
			s.blocks = append(s.blocks, dummyBlock(s.proto))
			levels = append(levels, levelUnassigned)
		}
		s.log.Warn().Int("stash_size", len(s.blocks)).Msg("stash overflow, growing stash")
	}

	bitonicSortByKeys(s.blocks, levels)

	// The sorted prefix now holds exactly Z blocks per depth, in depth
	// order; write them out. Everything past the prefix is the retained
	// stash state.
	for d := uint64(0); d <= height; d++ {
		bkt := newBucket(s.proto, s.bucketSize)
		lo := int(d) * s.bucketSize
		copy(bkt.blocks, s.blocks[lo:lo+s.bucketSize])
		store.writeBucket(nodeOnPath(leaf, d, height), bkt)
	}
}

// occupancy returns the number of real blocks outside the path buffer. Not
// constant time; tests and instrumentation only.
func (s *stash[V]) occupancy() int {
	n := 0
	for _, b := range s.blocks[s.pathSize:] {
		if b.position != dummyPosition {
			n++
		}
	}
	return n
}
