// Copyright 2020 kawminer developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package kawminer

import "math/bits"

// FastModulo holds precomputed parameters for division-free modulo on the device.
// The search and dataset kernels have no cheap integer division so the host
// computes a fixed-point reciprocal once per cache size instead.
type FastModulo struct {
	Reciprocal uint32
	Increment  uint32
	Shift      uint32
}

// NewFastModulo computes the reciprocal parameters for the given divisor.
// The result is deterministic: the same divisor always yields the same triple.
func NewFastModulo(divisor uint32) FastModulo {
	if divisor == 0 {
		panic("fast modulo of zero divisor")
	}
	if divisor&(divisor-1) == 0 {
		// exact power of two reduces to a shift
		return FastModulo{
			Reciprocal: 1,
			Increment:  0,
			Shift:      uint32(bits.TrailingZeros32(divisor)),
		}
	}

	// largest shift keeping 2^(32+shift) representable in 64 bits
	shift := uint32(31 - bits.LeadingZeros32(divisor))
	n := uint64(1) << (32 + shift)
	q := n / uint64(divisor)
	r := n % uint64(divisor)
	if 2*r < uint64(divisor) {
		// round down and correct with an increment on the device
		return FastModulo{Reciprocal: uint32(q), Increment: 1, Shift: shift}
	}
	return FastModulo{Reciprocal: uint32(q + 1), Increment: 0, Shift: shift}
}

// Reduce computes value % divisor the way the device kernel does, with a
// multiply and shift in place of a division. Used by tests to verify the
// parameters reproduce hardware behavior and by the stub backend.
func (f FastModulo) Reduce(value, divisor uint32) uint32 {
	if divisor&(divisor-1) == 0 {
		return value & (divisor - 1)
	}
	quotient := uint32(((uint64(value) + uint64(f.Increment)) * uint64(f.Reciprocal)) >> (32 + f.Shift))
	return value - quotient*divisor
}
