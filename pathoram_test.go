package oram

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPathOramValidation(t *testing.T) {
	tests := []struct {
		name     string
		capacity uint64
		cfg      Config
		wantErr  error
	}{
		{"valid", 8, DefaultConfig(), nil},
		{"smallest capacity", 2, DefaultConfig(), nil},
		{"zero capacity", 0, DefaultConfig(), ErrInvalidConfiguration},
		{"capacity one", 1, DefaultConfig(), ErrInvalidConfiguration},
		{"non power of two", 6, DefaultConfig(), ErrInvalidConfiguration},
		{"bucket size too small", 8, Config{BucketSize: 1}, ErrInvalidConfiguration},
		{"position block size not power of two", 8, Config{PositionBlockSize: 3}, ErrInvalidConfiguration},
		{"negative overflow", 8, Config{OverflowSize: -1}, ErrInvalidConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := testRNG()
			o, err := NewPathOram(zerolog.Nop(), make(ByteBlock, 1), tt.capacity, rng, tt.cfg)
			if tt.wantErr != nil {
				require.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			require.NotNil(t, o)
			assert.Equal(t, tt.capacity, o.BlockCapacity())
		})
	}
}

func TestPathOramTreeShape(t *testing.T) {
	tests := []struct {
		capacity   uint64
		wantHeight uint64
	}{
		{2, 0},
		{8, 2},
		{16, 3},
		{64, 5},
		{2048, 10},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("capacity=%d", tt.capacity), func(t *testing.T) {
			rng := testRNG()
			o, err := NewPathOram(zerolog.Nop(), make(ByteBlock, 1), tt.capacity, rng, DefaultConfig())
			require.NoError(t, err)
			assert.Equal(t, tt.wantHeight, o.Height())
			assert.Equal(t, tt.capacity, o.BlockCapacity())
		})
	}
}

func TestPathOramInitialState(t *testing.T) {
	rng := testRNG()
	o, err := NewPathOram(zerolog.Nop(), make(ByteBlock, 1), 8, rng, DefaultConfig())
	require.NoError(t, err)

	checkInvariants(t, o)
	for address := uint64(0); address < 8; address++ {
		got, err := o.Read(address, rng)
		require.NoError(t, err)
		assert.Equal(t, ByteBlock{0}, got)
	}
	checkInvariants(t, o)
}

func TestPathOramWriteThenRead(t *testing.T) {
	rng := testRNG()
	o, err := NewPathOram(zerolog.Nop(), make(ByteBlock, 1), 8, rng, DefaultConfig())
	require.NoError(t, err)

	previous, err := o.Write(0, ByteBlock{1}, rng)
	require.NoError(t, err)
	assert.Equal(t, ByteBlock{0}, previous)

	got, err := o.Read(0, rng)
	require.NoError(t, err)
	assert.Equal(t, ByteBlock{1}, got)

	got, err = o.Read(1, rng)
	require.NoError(t, err)
	assert.Equal(t, ByteBlock{0}, got)
}

func TestPathOramLinearPass(t *testing.T) {
	rng := testRNG()
	o, err := NewPathOram(zerolog.Nop(), make(ByteBlock, 1), 8, rng, DefaultConfig())
	require.NoError(t, err)

	for address := uint64(0); address < 8; address++ {
		_, err := o.Write(address, ByteBlock{byte(address + 1)}, rng)
		require.NoError(t, err)
	}
	for address := uint64(0); address < 8; address++ {
		got, err := o.Read(address, rng)
		require.NoError(t, err)
		assert.Equal(t, ByteBlock{byte(address + 1)}, got)
	}
}

func TestPathOramRandomWorkload(t *testing.T) {
	rng := testRNG()
	o, err := NewPathOram(zerolog.Nop(), make(ByteBlock, 2), 64, rng, DefaultConfig())
	require.NoError(t, err)
	runRandomWorkload(t, o, 64, 2, 1000, rng)
	checkInvariants(t, o)
}

func TestPathOramRepeatedLinearPasses(t *testing.T) {
	rng := testRNG()
	o, err := NewPathOram(zerolog.Nop(), make(ByteBlock, 1), 16, rng, DefaultConfig())
	require.NoError(t, err)
	runLinearWorkload(t, o, 16, 1, 100, rng)
	checkInvariants(t, o)
}

func TestPathOramSmallestCapacity(t *testing.T) {
	rng := testRNG()
	o, err := NewPathOram(zerolog.Nop(), make(ByteBlock, 2), 2, rng, DefaultConfig())
	require.NoError(t, err)
	runRandomWorkload(t, o, 2, 2, 10, rng)
	checkInvariants(t, o)
}

func TestPathOramStashOccupancyBound(t *testing.T) {
	if testing.Short() {
		t.Skip("long workload")
	}
	rng := testRNG()
	o, err := NewPathOram(zerolog.Nop(), make(ByteBlock, 1), 2048, rng, DefaultConfig())
	require.NoError(t, err)

	peak := 0
	for i := 0; i < 10000; i++ {
		address := uint64(rng.Intn(2048))
		if rng.Intn(2) == 0 {
			_, err = o.Read(address, rng)
		} else {
			_, err = o.Write(address, ByteBlock{byte(i)}, rng)
		}
		require.NoError(t, err)
		if occ := o.StashOccupancy(); occ > peak {
			peak = occ
		}
	}
	assert.LessOrEqual(t, peak, 10, "stash occupancy high-water mark")
}

func TestPathOramInvariantsAfterEveryAccess(t *testing.T) {
	rng := testRNG()
	o, err := NewPathOram(zerolog.Nop(), make(ByteBlock, 1), 64, rng, DefaultConfig())
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		address := uint64(rng.Intn(64))
		if rng.Intn(2) == 0 {
			_, err = o.Read(address, rng)
		} else {
			_, err = o.Write(address, ByteBlock{byte(i)}, rng)
		}
		require.NoError(t, err)
		checkInvariants(t, o)
	}
}

func TestPathOramAccessCounts(t *testing.T) {
	rng := testRNG()
	o, err := NewPathOram(zerolog.Nop(), make(ByteBlock, 1), 64, rng, DefaultConfig())
	require.NoError(t, err)

	pathLength := o.Height() + 1
	for i := 0; i < 20; i++ {
		readsBefore := o.PhysicalReadCount()
		writesBefore := o.PhysicalWriteCount()

		_, err := o.Read(uint64(rng.Intn(64)), rng)
		require.NoError(t, err)

		assert.Equal(t, pathLength, o.PhysicalReadCount()-readsBefore)
		assert.Equal(t, pathLength, o.PhysicalWriteCount()-writesBefore)
	}
}

func TestPathOramAccessCallback(t *testing.T) {
	rng := testRNG()
	o, err := NewPathOram(zerolog.Nop(), Word(0), 8, rng, DefaultConfig())
	require.NoError(t, err)

	_, err = o.Write(5, Word(41), rng)
	require.NoError(t, err)

	previous, err := o.Access(5, func(v Word) Word { return v + 1 }, rng)
	require.NoError(t, err)
	assert.Equal(t, Word(41), previous)

	got, err := o.Read(5, rng)
	require.NoError(t, err)
	assert.Equal(t, Word(42), got)
}

func TestPathOramOutOfBounds(t *testing.T) {
	rng := testRNG()
	o, err := NewPathOram(zerolog.Nop(), make(ByteBlock, 1), 8, rng, DefaultConfig())
	require.NoError(t, err)

	_, err = o.Read(8, rng)
	assert.True(t, errors.Is(err, ErrAddressOutOfBounds))

	_, err = o.Write(1000, ByteBlock{1}, rng)
	assert.True(t, errors.Is(err, ErrAddressOutOfBounds))
}

func TestPathOramRecursivePositionMap(t *testing.T) {
	rng := testRNG()
	cfg := DefaultConfig()
	cfg.PositionBlockSize = 4
	cfg.RecursionCutoff = 1

	o, err := NewPathOram(zerolog.Nop(), make(ByteBlock, 1), 256, rng, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, o.RecursionHeight())

	runRandomWorkload(t, o, 256, 1, 200, rng)
	checkInvariants(t, o)
}

func TestPathOramZeroOverflow(t *testing.T) {
	// With no overflow region every retained block forces the stash to
	// grow; correctness must survive repeated growth.
	rng := testRNG()
	cfg := DefaultConfig()
	cfg.OverflowSize = 0

	o, err := NewPathOram(zerolog.Nop(), make(ByteBlock, 1), 8, rng, cfg)
	require.NoError(t, err)
	runRandomWorkload(t, o, 8, 1, 300, rng)
	checkInvariants(t, o)
}

func TestPathOramLeafWriteDistribution(t *testing.T) {
	rng := testRNG()
	o, err := NewPathOram(zerolog.Nop(), make(ByteBlock, 1), 64, rng, DefaultConfig())
	require.NoError(t, err)

	firstLeaf := uint64(1) << o.Height()
	baseline := make([]uint64, 64)
	copy(baseline, o.store.writes)

	// Repeated accesses to one fixed address. Each access rewrites the
	// path to one leaf; obliviousness demands those leaves look uniform.
	const accesses = 3200
	for i := 0; i < accesses; i++ {
		_, err := o.Read(0, rng)
		require.NoError(t, err)
	}

	leaves := 64 - firstLeaf
	expected := uint64(accesses) / leaves
	var total uint64
	for leaf := firstLeaf; leaf < 64; leaf++ {
		count := o.store.writes[leaf] - baseline[leaf]
		total += count
		assert.Greater(t, count, expected/2, "leaf %d starved", leaf)
		assert.Less(t, count, expected*2, "leaf %d favored", leaf)
	}
	assert.Equal(t, uint64(accesses), total)
}
