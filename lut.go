// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package torus

import (
	"github.com/luxfi/lattice/v7/ring"
)

// minBootstrapStep is the smallest distance, in units of the blind rotation
// torus Z_2N, between two consecutive encoded cleartexts.
const minBootstrapStep = 128

// testPolynomial builds the blind rotation test polynomial of f, in NTT form.
//
// A ciphertext whose phase is x*Q/4 with x in (-1, 1) blind-rotates to the
// coefficient the layout below assigns to x: coefficient i in [0, N/2] holds
// f at x = -2i/N, coefficient i in (N/2, N) holds -f at x = 2(N-i)/N. f sees
// the signed cleartext nearest to x, so noise within half a step rounds away.
func testPolynomial(ringQ *ring.Ring, q uint64, enc EncodingContext, f func(m int64) int64) ring.Poly {
	F := ringQ.NewPoly()
	N := ringQ.N()
	k := enc.precision()
	mask := uint64(1)<<k - 1

	// Cleartext nearest to x = 2j/N is round(j * 2^k / 2N).
	nearest := func(j int) int64 {
		return int64((uint64(j)<<k + uint64(N)) / uint64(2*N))
	}
	value := func(m int64) uint64 {
		return enc.encode(uint64(f(m))&mask, q)
	}

	// Single-prime modulus: one row of coefficients.
	coeffs := F.Coeffs[0]
	for i := 0; i <= N>>1; i++ {
		coeffs[i] = value(-nearest(i))
	}
	for i := N>>1 + 1; i < N; i++ {
		if v := value(nearest(N - i)); v != 0 {
			coeffs[i] = q - v
		}
	}

	ringQ.NTT(F, F)
	return F
}

// clampCleartext saturates m into [0, limit].
func clampCleartext(m int64, limit uint64) uint64 {
	switch {
	case m < 0:
		return 0
	case uint64(m) > limit:
		return limit
	default:
		return uint64(m)
	}
}

func squareQuarter(m int64) int64 {
	return m * m / 4
}
