package oram

import "math/bits"

// selectable is satisfied by types with a constant-time two-way select.
type selectable[T any] interface {
	Select(other T, choice Choice) T
}

// bitonicSortByKeys sorts keys ascending and applies the same permutation
// to items, in constant time: the sequence of compared index pairs depends
// only on the length, never on the data. The network is Batcher's bitonic
// sort in its recursive form, generalized to arbitrary lengths by
// partitioning merges at the largest power of two below n. Not stable.
func bitonicSortByKeys[T selectable[T]](items []T, keys []uint64) {
	if len(items) != len(keys) {
		panic("oram: bitonicSortByKeys length mismatch")
	}
	bitonicSort(items, keys, 0, len(keys), true)
}

func bitonicSort[T selectable[T]](items []T, keys []uint64, lo, n int, ascending bool) {
	if n <= 1 {
		return
	}
	m := n / 2
	bitonicSort(items, keys, lo, m, !ascending)
	bitonicSort(items, keys, lo+m, n-m, ascending)
	bitonicMerge(items, keys, lo, n, ascending)
}

func bitonicMerge[T selectable[T]](items []T, keys []uint64, lo, n int, ascending bool) {
	if n <= 1 {
		return
	}
	m := greatestPowerOfTwoBelow(n)
	for i := lo; i < lo+n-m; i++ {
		compareSwap(items, keys, i, i+m, ascending)
	}
	bitonicMerge(items, keys, lo, m, ascending)
	bitonicMerge(items, keys, lo+m, n-m, ascending)
}

// compareSwap conditionally exchanges entries i and j so that
// keys[i] <= keys[j] when ascending and keys[i] >= keys[j] otherwise. The
// direction depends only on the position in the network, not on the data.
func compareSwap[T selectable[T]](items []T, keys []uint64, i, j int, ascending bool) {
	var doSwap Choice
	if ascending {
		doSwap = ctLess64(keys[j], keys[i])
	} else {
		doSwap = ctLess64(keys[i], keys[j])
	}
	si := items[i].Select(items[j], doSwap)
	sj := items[j].Select(items[i], doSwap)
	items[i], items[j] = si, sj
	ctSwap64(&keys[i], &keys[j], doSwap)
}

// greatestPowerOfTwoBelow returns the largest power of two strictly less
// than n. n must be at least 2.
func greatestPowerOfTwoBelow(n int) int {
	if n < 2 {
		panic("oram: greatestPowerOfTwoBelow needs n >= 2")
	}
	return 1 << (bits.Len(uint(n-1)) - 1)
}
