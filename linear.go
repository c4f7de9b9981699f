package oram

import (
	"fmt"
	"io"
)

// LinearOram achieves obliviousness by reading and writing every block on
// every access, so the memory trace is the same for all addresses. It is
// the right choice for small capacities, and serves as the base case of the
// recursive position map.
type LinearOram[V Value[V]] struct {
	memory []V
	proto  V
}

// NewLinearOram creates a linear-scan ORAM holding capacity blocks shaped
// like proto, all zero.
func NewLinearOram[V Value[V]](proto V, capacity uint64) (*LinearOram[V], error) {
	if capacity == 0 {
		return nil, fmt.Errorf("capacity 0: %w", ErrInvalidConfiguration)
	}
	size, err := toInt(capacity)
	if err != nil {
		return nil, err
	}
	memory := make([]V, size)
	for i := range memory {
		memory[i] = proto.Zero()
	}
	return &LinearOram[V]{memory: memory, proto: proto}, nil
}

// BlockCapacity returns the number of blocks the ORAM stores.
func (o *LinearOram[V]) BlockCapacity() uint64 {
	return uint64(len(o.memory))
}

// Access sweeps every slot in order, using constant-time selection to
// extract the value at index and fold in the callback's update. The
// callback runs on every slot; its output takes effect only at the
// requested index.
func (o *LinearOram[V]) Access(index uint64, callback func(V) V, _ io.Reader) (V, error) {
	if index >= o.BlockCapacity() {
		return o.proto.Zero(), fmt.Errorf("index %d: %w", index, ErrAddressOutOfBounds)
	}
	result := o.proto.Zero()
	for i := range o.memory {
		entry := o.memory[i]
		match := ctEq64(uint64(i), index)
		result = result.Select(entry, match)
		o.memory[i] = entry.Select(callback(entry), match)
	}
	return result, nil
}

// Read returns the value stored at index.
func (o *LinearOram[V]) Read(index uint64, rng io.Reader) (V, error) {
	return o.Access(index, func(v V) V { return v }, rng)
}

// Write stores value at index and returns the previous value.
func (o *LinearOram[V]) Write(index uint64, value V, rng io.Reader) (V, error) {
	return o.Access(index, func(V) V { return value }, rng)
}
