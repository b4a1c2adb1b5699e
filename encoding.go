// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package torus

import (
	"math/bits"
)

// EncodingContext maps cleartext integers in [Min, Max] onto the fixed-point
// phase of a ciphertext. The top PaddingBits of the phase stay free so sums
// and lookup-table inputs do not wrap around the modulus.
//
// Every Encryptor and Evaluator taking part in a session must use equal
// contexts; ciphertexts remember the context that produced them.
type EncodingContext struct {
	Min           uint64
	Max           uint64
	CleartextBits int
	PaddingBits   int
}

const (
	maxCleartextBits = 48
	maxEncodingBits  = 62
)

// NewEncodingContext returns the context for bits-wide unsigned cleartexts.
func NewEncodingContext(bits, padding int) (EncodingContext, error) {
	enc := EncodingContext{
		CleartextBits: bits,
		PaddingBits:   padding,
	}
	if bits > 0 && bits <= maxCleartextBits {
		enc.Max = 1<<uint(bits) - 1
	}
	return enc, enc.Validate()
}

// DefaultEncoding is the levelled session context: 32-bit cleartexts with
// one padding bit.
func DefaultEncoding() EncodingContext {
	return EncodingContext{Max: 1<<32 - 1, CleartextBits: 32, PaddingBits: 1}
}

// BootstrapEncoding is small enough to be resolved by blind rotation on the
// PN11QP48 preset and carries the padding MulAndBootstrap needs.
func BootstrapEncoding() EncodingContext {
	return EncodingContext{Max: 3, CleartextBits: 2, PaddingBits: 3}
}

// Validate reports whether the context is well formed.
func (e EncodingContext) Validate() error {
	switch {
	case e.CleartextBits <= 0 || e.CleartextBits > maxCleartextBits:
		return paramErrorf("encoding", "cleartext bits %d out of range [1, %d]", e.CleartextBits, maxCleartextBits)
	case e.PaddingBits < 1:
		return paramErrorf("encoding", "at least one padding bit required, got %d", e.PaddingBits)
	case e.CleartextBits+e.PaddingBits > maxEncodingBits:
		return paramErrorf("encoding", "%d cleartext and %d padding bits exceed %d", e.CleartextBits, e.PaddingBits, maxEncodingBits)
	case e.Min != 0 || e.Max != 1<<uint(e.CleartextBits)-1:
		return paramErrorf("encoding", "range [%d, %d] does not match %d cleartext bits", e.Min, e.Max, e.CleartextBits)
	}
	return nil
}

// Compatible reports whether ciphertexts under e and other can be mixed.
func (e EncodingContext) Compatible(other EncodingContext) bool {
	return e.CleartextBits == other.CleartextBits && e.PaddingBits == other.PaddingBits
}

// precision is the number of bits of phase the encoding uses.
func (e EncodingContext) precision() uint {
	return uint(e.CleartextBits + e.PaddingBits)
}

// delta returns Q / 2^precision as a float, the phase of cleartext 1.
func (e EncodingContext) delta(q uint64) float64 {
	return float64(q) / float64(uint64(1)<<e.precision())
}

// encode returns round(m * q / 2^k) mod q.
func (e EncodingContext) encode(m, q uint64) uint64 {
	k := e.precision()
	m &= uint64(1)<<k - 1

	hi, lo := bits.Mul64(m, q)
	lo, carry := bits.Add64(lo, uint64(1)<<(k-1), 0)
	hi += carry

	// (hi:lo) >> k, which fits in 64 bits since m < 2^k.
	v := lo>>k | hi<<(64-k)
	if v >= q {
		v -= q
	}
	return v
}

// decode returns round(phase * 2^k / q) mod 2^k.
func (e EncodingContext) decode(phase, q uint64) uint64 {
	k := e.precision()

	hi, lo := bits.Mul64(phase, uint64(1)<<k)
	lo, carry := bits.Add64(lo, q>>1, 0)
	hi += carry

	m, _ := bits.Div64(hi, lo, q)
	return m & (uint64(1)<<k - 1)
}
