package oram

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/bits"
)

// randomUint64 reads eight bytes from rng.
func randomUint64(rng io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(rng, buf[:]); err != nil {
		return 0, fmt.Errorf("read rng: %w", err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// randomUint64Below returns a uniform value in [0, n), rejection-sampling
// over the smallest covering power of two so any uniform bit stream yields
// an unbiased draw.
func randomUint64Below(n uint64, rng io.Reader) (uint64, error) {
	if n == 0 {
		panic("oram: randomUint64Below of 0")
	}
	mask := uint64(1)<<bits.Len64(n-1) - 1
	for {
		r, err := randomUint64(rng)
		if err != nil {
			return 0, err
		}
		r &= mask
		if r < n {
			return r, nil
		}
	}
}

// randomPermutation returns a uniformly random permutation of 0..n-1.
func randomPermutation(n uint64, rng io.Reader) ([]uint64, error) {
	size, err := toInt(n)
	if err != nil {
		return nil, err
	}
	perm := make([]uint64, size)
	for i := range perm {
		perm[i] = uint64(i)
	}
	for i := n - 1; i > 0; i-- {
		j, err := randomUint64Below(i+1, rng)
		if err != nil {
			return nil, err
		}
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm, nil
}

// invertPermutation returns the inverse of perm. The inversion runs through
// the oblivious sort so that computing it during construction does not leak
// the permutation through the memory trace.
func invertPermutation(perm []uint64) []uint64 {
	keys := make([]uint64, len(perm))
	copy(keys, perm)
	items := make([]Word, len(perm))
	for i := range items {
		items[i] = Word(i)
	}
	bitonicSortByKeys(items, keys)
	inv := make([]uint64, len(perm))
	for i := range items {
		inv[i] = uint64(items[i])
	}
	return inv
}

// isPowerOfTwo reports whether n is a power of two. Zero is not.
func isPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

// toInt converts a uint64 to int, failing rather than truncating.
func toInt(n uint64) (int, error) {
	if n > math.MaxInt {
		return 0, fmt.Errorf("%d: %w", n, ErrIntegerConversion)
	}
	return int(n), nil
}
