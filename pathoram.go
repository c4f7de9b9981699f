package oram

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// PathOram is a doubly-oblivious Path ORAM: the bucket tree is accessed one
// uniformly random root-to-leaf path per operation, and the client-side
// bookkeeping (stash scans, eviction, position-map updates) avoids
// secret-dependent branches and memory indexing as well, so the engine is
// safe to run inside an enclave whose own memory trace is observable.
type PathOram[V Value[V]] struct {
	log      zerolog.Logger
	cfg      Config
	proto    V
	capacity uint64
	height   uint64
	store    *treeStore[V]
	stash    *stash[V]
	posMap   positionMap
}

// NewPathOram creates a Path ORAM storing capacity blocks shaped like
// proto, all zero. Capacity must be a power of two and at least 2. The
// tree has capacity-1 nodes and capacity/2 leaves; every logical block
// exists from construction on.
func NewPathOram[V Value[V]](log zerolog.Logger, proto V, capacity uint64, rng io.Reader, cfg Config) (*PathOram[V], error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	if capacity < 2 || !isPowerOfTwo(capacity) {
		return nil, fmt.Errorf("capacity %d: %w", capacity, ErrInvalidConfiguration)
	}

	height := depth(capacity) - 1

	log.Debug().
		Uint64("capacity", capacity).
		Uint64("height", height).
		Int("bucket_size", cfg.BucketSize).
		Msg("creating path oram")

	store, err := newTreeStore(proto, capacity, cfg.BucketSize)
	if err != nil {
		return nil, err
	}

	pathSize := cfg.BucketSize * (int(height) + 1)
	st := newStash(log, proto, pathSize, cfg.OverflowSize, cfg.BucketSize)

	posMap, err := newPositionMap(log, capacity, rng, cfg)
	if err != nil {
		return nil, err
	}

	o := &PathOram[V]{
		log:      log,
		cfg:      cfg,
		proto:    proto,
		capacity: capacity,
		height:   height,
		store:    store,
		stash:    st,
		posMap:   posMap,
	}
	if err := o.initialize(rng); err != nil {
		return nil, err
	}
	return o, nil
}

// initialize fills the leaf buckets with one block per logical address, two
// per leaf in randomly permuted address order, and seeds the position map
// to match, so that every address is reachable before its first access.
func (o *PathOram[V]) initialize(rng io.Reader) error {
	perm, err := randomPermutation(o.capacity, rng)
	if err != nil {
		return err
	}
	inv := invertPermutation(perm)

	firstLeaf := uint64(1) << o.height

	for leaf := firstLeaf; leaf < 2*firstLeaf; leaf++ {
		bkt := newBucket(o.proto, o.cfg.BucketSize)
		base := 2 * (leaf - firstLeaf)
		for slot := uint64(0); slot < 2; slot++ {
			bkt.blocks[slot] = block[V]{
				value:    o.proto.Zero(),
				address:  perm[base+slot],
				position: leaf,
			}
		}
		o.store.writeBucket(leaf, bkt)
	}

	// Address a went under leaf firstLeaf + inv[a]/2. When the capacity is
	// not a multiple of AB the final partial block is padded; the pad
	// entries map addresses past the capacity and are never read.
	ab := uint64(o.cfg.PositionBlockSize)
	numBlocks := o.capacity / ab
	if o.capacity%ab > 0 {
		numBlocks++
		pad := make([]uint64, numBlocks*ab-o.capacity)
		inv = append(inv, pad...)
	}
	for k := uint64(0); k < numBlocks; k++ {
		pb := make(PositionBlock, ab)
		for i := uint64(0); i < ab; i++ {
			pb[i] = firstLeaf + inv[k*ab+i]/2
		}
		if err := o.posMap.writePositionBlock(k*ab, pb, rng); err != nil {
			return err
		}
	}
	return nil
}

// Access reads the value stored at address, writes callback(value) in its
// place, and returns the previous value. One access reads and writes
// exactly the H+1 buckets of one random root-to-leaf path of its own tree,
// plus whatever the recursive position-map levels do on theirs.
func (o *PathOram[V]) Access(address uint64, callback func(V) V, rng io.Reader) (V, error) {
	// The range check is the one data-dependent branch of the pipeline; it
	// leaks only whether the address was well-formed.
	if address >= o.capacity {
		return o.proto.Zero(), fmt.Errorf("address %d: %w", address, ErrAddressOutOfBounds)
	}

	newPosition, err := randomLeaf(o.height, rng)
	if err != nil {
		return o.proto.Zero(), err
	}

	// Position lookup: swap in the fresh leaf, recursing through the
	// position map.
	oldPosition, err := o.posMap.writePosition(address, newPosition, rng)
	if err != nil {
		return o.proto.Zero(), err
	}
	if !isLeaf(oldPosition, o.height) {
		panic("oram: position map returned a non-leaf position")
	}

	// Path read, stash access, path write.
	o.stash.readFromPath(o.store, oldPosition)
	result := o.stash.access(address, newPosition, callback)
	o.stash.writeToPath(o.store, oldPosition)

	return result, nil
}

// Read returns the value stored at index.
func (o *PathOram[V]) Read(index uint64, rng io.Reader) (V, error) {
	return o.Access(index, func(v V) V { return v }, rng)
}

// Write stores value at index and returns the previous value.
func (o *PathOram[V]) Write(index uint64, value V, rng io.Reader) (V, error) {
	return o.Access(index, func(V) V { return value }, rng)
}

// BlockCapacity returns the number of blocks the ORAM stores.
func (o *PathOram[V]) BlockCapacity() uint64 {
	return o.capacity
}

// Height returns the height of the bucket tree.
func (o *PathOram[V]) Height() uint64 {
	return o.height
}

// RecursionHeight returns the number of Path ORAM levels in the position
// map recursion below this one.
func (o *PathOram[V]) RecursionHeight() int {
	return o.posMap.recursionHeight()
}

// StashOccupancy returns the number of real blocks currently retained in
// the stash overflow. Not constant time; instrumentation only.
func (o *PathOram[V]) StashOccupancy() int {
	return o.stash.occupancy()
}

// PhysicalReadCount returns the total number of bucket reads issued to this
// ORAM's own tree, excluding recursive position-map levels.
func (o *PathOram[V]) PhysicalReadCount() uint64 {
	return o.store.readCount()
}

// PhysicalWriteCount returns the total number of bucket writes issued to
// this ORAM's own tree, excluding recursive position-map levels.
func (o *PathOram[V]) PhysicalWriteCount() uint64 {
	return o.store.writeCount()
}
