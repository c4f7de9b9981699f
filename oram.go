// Package oram implements an oblivious RAM: an array of fixed-size blocks
// whose physical memory trace is statistically independent of the logical
// addresses being read and written. The Path ORAM engine is doubly
// oblivious, hiding the access pattern from an observer of both the bucket
// tree and the client-side bookkeeping, which makes it suitable for use
// inside a trusted execution environment backed by encrypted but
// observable memory. Block contents are not encrypted here; that is the
// host's job.
package oram

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Value is the element type stored by an ORAM. Implementations must treat
// values as immutable, returning fresh instances rather than mutating
// shared state, and Select must not branch or index on the contents.
type Value[V any] interface {
	// Zero returns the default value with the same shape as the receiver.
	Zero() V

	// Select returns the receiver if choice is 0 and other if choice is 1,
	// in constant time. Both values must share the receiver's shape.
	Select(other V, choice Choice) V
}

// Oram maps addresses 0 <= address < BlockCapacity() to values while
// hiding the access pattern from the memory the blocks live in. All
// randomness is drawn from the caller-supplied rng, which must yield
// uniform bytes (crypto/rand.Reader in production).
//
// Implementations are not safe for concurrent use.
type Oram[V Value[V]] interface {
	// BlockCapacity returns the number of blocks the ORAM stores.
	BlockCapacity() uint64

	// Access reads the value stored at index, writes callback(value) in
	// its place, and returns the previous value.
	Access(index uint64, callback func(V) V, rng io.Reader) (V, error)

	// Read returns the value stored at index.
	Read(index uint64, rng io.Reader) (V, error)

	// Write stores value at index and returns the previous value.
	Write(index uint64, value V, rng io.Reader) (V, error)
}

// New creates an ORAM storing capacity blocks shaped like proto, using the
// default parameters and no logging. Capacity must be a power of two and
// at least 2. Capacities below DefaultLinearCutoff get a linear-scan ORAM;
// larger ones a recursive Path ORAM.
func New[V Value[V]](proto V, capacity uint64, rng io.Reader) (Oram[V], error) {
	return NewWithConfig(zerolog.Nop(), proto, capacity, rng, DefaultConfig())
}

// NewWithConfig is New with explicit tuning parameters and a logger.
func NewWithConfig[V Value[V]](log zerolog.Logger, proto V, capacity uint64, rng io.Reader, cfg Config) (Oram[V], error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	if capacity < 2 || !isPowerOfTwo(capacity) {
		return nil, fmt.Errorf("capacity %d: %w", capacity, ErrInvalidConfiguration)
	}
	if capacity < cfg.LinearCutoff {
		return NewLinearOram(proto, capacity)
	}
	return NewPathOram(log, proto, capacity, rng, cfg)
}
