// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package torus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodingValidate(t *testing.T) {
	cases := []struct {
		name    string
		bits    int
		padding int
		ok      bool
	}{
		{"default", 32, 1, true},
		{"bootstrap", 2, 3, true},
		{"no padding", 8, 0, false},
		{"zero bits", 0, 1, false},
		{"too wide", 49, 1, false},
		{"precision overflow", 48, 15, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enc, err := NewEncodingContext(tc.bits, tc.padding)
			if !tc.ok {
				require.ErrorIs(t, err, ErrParameter)
				return
			}
			require.NoError(t, err)
			require.Zero(t, enc.Min)
			require.Equal(t, uint64(1)<<tc.bits-1, enc.Max)
		})
	}

	require.NoError(t, DefaultEncoding().Validate())
	require.NoError(t, BootstrapEncoding().Validate())

	bad := DefaultEncoding()
	bad.Max = 10
	require.ErrorIs(t, bad.Validate(), ErrParameter)
}

func TestEncodeDecodeExact(t *testing.T) {
	// Large enough that the 33-bit default encoding keeps Delta above 2^8.
	moduli := []uint64{0x3fffffc0001, 0x3ffffff000001, 0x3ffffffffc0001}

	for _, q := range moduli {
		for _, enc := range []EncodingContext{DefaultEncoding(), BootstrapEncoding()} {
			values := []uint64{0, 1, 2, enc.Max / 2, enc.Max}
			for _, m := range values {
				phase := enc.encode(m, q)
				require.Less(t, phase, q)
				require.Equal(t, m, enc.decode(phase, q), "q=%d m=%d", q, m)
			}
		}
	}
}

func TestDecodeToleratesNoise(t *testing.T) {
	q := uint64(0x3ffffff000001)
	enc := BootstrapEncoding()
	halfStep := uint64(enc.delta(q) / 2)

	for m := uint64(0); m <= enc.Max; m++ {
		phase := enc.encode(m, q)
		up := (phase + halfStep - 1) % q
		down := (phase + q - halfStep + 1) % q
		require.Equal(t, m, enc.decode(up, q))
		require.Equal(t, m, enc.decode(down, q))
	}
}

func TestEncodingCompatible(t *testing.T) {
	a := BootstrapEncoding()
	b, err := NewEncodingContext(2, 3)
	require.NoError(t, err)
	require.True(t, a.Compatible(b))
	require.False(t, a.Compatible(DefaultEncoding()))
}
