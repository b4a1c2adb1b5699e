// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package torus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	bootstrapKeysOnce sync.Once
	bootstrapSK       *SecretKey
	bootstrapPK       *PublicKey
	bootstrapKeysErr  error
)

// bootstrapKeys generates one PN11QP48 key pair per test binary.
func bootstrapKeys(t *testing.T) (*SecretKey, *PublicKey) {
	t.Helper()
	if testing.Short() {
		t.Skip("bootstrapping key generation is slow")
	}

	bootstrapKeysOnce.Do(func() {
		kgen, err := NewKeyGenerator(PN11QP48)
		if err != nil {
			bootstrapKeysErr = err
			return
		}
		bootstrapSK, bootstrapPK, bootstrapKeysErr = kgen.Generate()
	})
	require.NoError(t, bootstrapKeysErr)
	return bootstrapSK, bootstrapPK
}

type bootstrapSession struct {
	enc  *Encryptor
	dec  *Decryptor
	eval *Evaluator
}

func newBootstrapSession(t *testing.T, encoding EncodingContext) *bootstrapSession {
	sk, pk := bootstrapKeys(t)

	enc, err := NewEncryptor(sk, encoding)
	require.NoError(t, err)
	dec, err := NewDecryptor(sk)
	require.NoError(t, err)
	eval, err := NewEvaluator(pk, encoding)
	require.NoError(t, err)

	return &bootstrapSession{enc: enc, dec: dec, eval: eval}
}

func (s *bootstrapSession) encrypt(t *testing.T, m uint64) *Ciphertext {
	ct, err := s.enc.Encrypt(m)
	require.NoError(t, err)
	return ct
}

func (s *bootstrapSession) decrypt(t *testing.T, ct *Ciphertext) uint64 {
	m, err := s.dec.Decrypt(ct)
	require.NoError(t, err)
	return m
}

func TestBootstrapWithFunction(t *testing.T) {
	s := newBootstrapSession(t, BootstrapEncoding())

	funcs := map[string]func(uint64) uint64{
		"negate":   func(m uint64) uint64 { return 3 - m },
		"double":   func(m uint64) uint64 { return 2 * m },
		"constant": func(uint64) uint64 { return 2 },
		"isZero": func(m uint64) uint64 {
			if m == 0 {
				return 1
			}
			return 0
		},
	}

	for name, f := range funcs {
		t.Run(name, func(t *testing.T) {
			for m := uint64(0); m <= 3; m++ {
				out, err := s.eval.BootstrapWithFunction(s.encrypt(t, m), f)
				require.NoError(t, err)
				// Results above Max saturate.
				require.Equal(t, min(f(m), 3), s.decrypt(t, out), "f(%d)", m)
			}
		})
	}

	_, err := s.eval.BootstrapWithFunction(s.encrypt(t, 1), nil)
	require.ErrorIs(t, err, ErrParameter)
}

func TestMulAndBootstrap(t *testing.T) {
	s := newBootstrapSession(t, BootstrapEncoding())

	pairs := [][2]uint64{{0, 0}, {0, 3}, {3, 0}, {1, 1}, {1, 2}, {2, 1}, {1, 3}, {3, 1}}
	for _, p := range pairs {
		out, err := s.eval.MulAndBootstrap(s.encrypt(t, p[0]), s.encrypt(t, p[1]))
		require.NoError(t, err)
		require.Equal(t, p[0]*p[1], s.decrypt(t, out), "%d*%d", p[0], p[1])
	}
}

func TestMulAndBootstrapNeedsPadding(t *testing.T) {
	narrow, err := NewEncodingContext(2, 2)
	require.NoError(t, err)
	s := newBootstrapSession(t, narrow)

	_, err = s.eval.MulAndBootstrap(s.encrypt(t, 1), s.encrypt(t, 1))
	require.ErrorIs(t, err, ErrParameter)

	// Single-input bootstraps only need two padding bits.
	out, err := s.eval.Refresh(s.encrypt(t, 2))
	require.NoError(t, err)
	require.Equal(t, uint64(2), s.decrypt(t, out))
}

func TestReluAndRefresh(t *testing.T) {
	s := newBootstrapSession(t, BootstrapEncoding())

	for m := uint64(0); m <= 3; m++ {
		out, err := s.eval.Relu(s.encrypt(t, m))
		require.NoError(t, err)
		require.Equal(t, m, s.decrypt(t, out))

		out, err = s.eval.Refresh(s.encrypt(t, m))
		require.NoError(t, err)
		require.Equal(t, m, s.decrypt(t, out))
	}

	// A negative difference is clipped to zero.
	neg := s.eval.sub(s.encrypt(t, 1), s.encrypt(t, 3))
	out, err := s.eval.Relu(neg)
	require.NoError(t, err)
	require.Equal(t, uint64(0), s.decrypt(t, out))

	pos := s.eval.sub(s.encrypt(t, 3), s.encrypt(t, 1))
	out, err = s.eval.Relu(pos)
	require.NoError(t, err)
	require.Equal(t, uint64(2), s.decrypt(t, out))
}

func TestBootstrapChain(t *testing.T) {
	s := newBootstrapSession(t, BootstrapEncoding())

	// Repeated refreshes and levelled ops on bootstrapped outputs keep noise
	// bounded.
	ct := s.encrypt(t, 1)
	for i := 0; i < 4; i++ {
		var err error
		ct, err = s.eval.Refresh(ct)
		require.NoError(t, err)
		require.NoError(t, s.eval.AddScalarInplace(ct, 1))
		ct, err = s.eval.BootstrapWithFunction(ct, func(m uint64) uint64 { return m - 1 })
		require.NoError(t, err)
	}
	require.Equal(t, uint64(1), s.decrypt(t, ct))
}

func TestNewEvaluatorRejects(t *testing.T) {
	_, pk := bootstrapKeys(t)

	// One padding bit.
	_, err := NewEvaluator(pk, DefaultEncoding())
	require.ErrorIs(t, err, ErrParameter)

	// Eight bits of precision are finer than a degree 2048 rotation resolves.
	fine, err := NewEncodingContext(6, 2)
	require.NoError(t, err)
	_, err = NewEvaluator(pk, fine)
	require.ErrorIs(t, err, ErrParameter)

	_, err = NewEvaluator(nil, BootstrapEncoding())
	require.ErrorIs(t, err, ErrNoPublicKey)
}

func TestPublicKeyMarshal(t *testing.T) {
	sk, pk := bootstrapKeys(t)

	data, err := pk.MarshalBinary()
	require.NoError(t, err)

	restored, err := UnmarshalPublicKey(data, PN11QP48)
	require.NoError(t, err)

	enc, err := NewEncryptor(sk, BootstrapEncoding())
	require.NoError(t, err)
	dec, err := NewDecryptor(sk)
	require.NoError(t, err)
	eval, err := NewEvaluator(restored, BootstrapEncoding())
	require.NoError(t, err)

	ct, err := enc.Encrypt(2)
	require.NoError(t, err)
	out, err := eval.BootstrapWithFunction(ct, func(m uint64) uint64 { return m + 1 })
	require.NoError(t, err)
	got, err := dec.Decrypt(out)
	require.NoError(t, err)
	require.Equal(t, uint64(3), got)

	_, err = UnmarshalPublicKey(data, PN10QP30)
	require.ErrorIs(t, err, ErrCacheMismatch)
}
