// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package torus

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// levelledSession builds the pieces of a linear-only session.
func levelledSession(t testing.TB, enc EncodingContext) (*SecretKey, *Encryptor, *Decryptor, *Evaluator) {
	t.Helper()

	kgen, err := NewKeyGenerator(PN11QP58)
	require.NoError(t, err)

	sk, err := kgen.GenerateOnlySK()
	require.NoError(t, err)

	encryptor, err := NewEncryptor(sk, enc)
	require.NoError(t, err)
	decryptor, err := NewDecryptor(sk)
	require.NoError(t, err)
	eval, err := NewLevelledEvaluator(enc)
	require.NoError(t, err)

	return sk, encryptor, decryptor, eval
}

func TestRoundTrip(t *testing.T) {
	_, encryptor, decryptor, _ := levelledSession(t, DefaultEncoding())

	for _, m := range []uint64{0, 1, 2, 7, 1000, 1 << 20, 1<<32 - 2, 1<<32 - 1} {
		ct, err := encryptor.Encrypt(m)
		require.NoError(t, err)

		got, err := decryptor.Decrypt(ct)
		require.NoError(t, err)
		require.Equal(t, m, got)
	}
}

func TestEncryptOutOfRange(t *testing.T) {
	_, encryptor, _, _ := levelledSession(t, DefaultEncoding())

	_, err := encryptor.Encrypt(1 << 32)
	require.ErrorIs(t, err, ErrValueOutOfRange)
	require.ErrorIs(t, err, ErrParameter)
}

func TestLevelledOperations(t *testing.T) {
	_, encryptor, decryptor, eval := levelledSession(t, DefaultEncoding())

	encrypt := func(m uint64) *Ciphertext {
		ct, err := encryptor.Encrypt(m)
		require.NoError(t, err)
		return ct
	}
	decrypt := func(ct *Ciphertext) uint64 {
		m, err := decryptor.Decrypt(ct)
		require.NoError(t, err)
		return m
	}

	t.Run("Add", func(t *testing.T) {
		for _, tc := range [][2]uint64{{0, 0}, {1, 2}, {123456, 654321}, {1<<31 + 5, 1<<31 - 6}} {
			a, b := encrypt(tc[0]), encrypt(tc[1])
			sum, err := eval.Add(a, b)
			require.NoError(t, err)
			require.Equal(t, tc[0]+tc[1], decrypt(sum))
			// Operands are untouched.
			require.Equal(t, tc[0], decrypt(a))
		}
	})

	t.Run("AddInplace", func(t *testing.T) {
		a := encrypt(40)
		require.NoError(t, eval.AddInplace(a, encrypt(2)))
		require.Equal(t, uint64(42), decrypt(a))
	})

	t.Run("AddScalar", func(t *testing.T) {
		a := encrypt(1000)
		out, err := eval.AddScalar(a, 337)
		require.NoError(t, err)
		require.Equal(t, uint64(1337), decrypt(out))

		require.NoError(t, eval.AddScalarInplace(a, 1))
		require.Equal(t, uint64(1001), decrypt(a))

		_, err = eval.AddScalar(a, 1<<40)
		require.ErrorIs(t, err, ErrValueOutOfRange)
	})

	t.Run("MulScalar", func(t *testing.T) {
		for _, tc := range [][2]uint64{{0, 9}, {7, 0}, {3, 5}, {65535, 65537}, {85, 500000}} {
			out, err := eval.MulScalar(encrypt(tc[0]), tc[1])
			require.NoError(t, err)
			require.Equal(t, tc[0]*tc[1], decrypt(out), "%d*%d", tc[0], tc[1])
		}

		a := encrypt(6)
		require.NoError(t, eval.MulScalarInplace(a, 7))
		require.Equal(t, uint64(42), decrypt(a))
	})

	t.Run("ScalarLimit", func(t *testing.T) {
		limit, err := ScalarLimit(PN11QP58, DefaultEncoding())
		require.NoError(t, err)
		require.Greater(t, limit, uint64(1<<16))
		require.Less(t, limit, uint64(1<<24))

		for i := 0; i < 20; i++ {
			out, err := eval.MulScalar(encrypt(1), limit)
			require.NoError(t, err)
			require.Equal(t, limit, decrypt(out))
		}

		for _, c := range []uint64{limit + 1, 1 << 24, 49995000, 1<<32 - 1} {
			_, err = eval.MulScalar(encrypt(85), c)
			require.ErrorIs(t, err, ErrValueOutOfRange, "scalar %d", c)
			require.ErrorIs(t, eval.MulScalarInplace(encrypt(1), c), ErrParameter)
		}
	})

	t.Run("Overflow", func(t *testing.T) {
		out, err := eval.MulScalar(encrypt(1<<31), 2)
		require.NoError(t, err)
		_, err = decryptor.Decrypt(out)
		require.ErrorIs(t, err, ErrValueOutOfRange)
	})
}

func TestSumOfRange(t *testing.T) {
	if testing.Short() {
		t.Skip("encrypts 10000 values")
	}

	_, encryptor, decryptor, eval := levelledSession(t, DefaultEncoding())

	const n = 10000
	acc, err := encryptor.Encrypt(0)
	require.NoError(t, err)
	for i := uint64(1); i < n; i++ {
		ct, err := encryptor.Encrypt(i)
		require.NoError(t, err)
		require.NoError(t, eval.AddInplace(acc, ct))
	}

	got, err := decryptor.Decrypt(acc)
	require.NoError(t, err)
	require.Equal(t, uint64(49995000), got)

	require.NoError(t, eval.MulScalarInplace(acc, 7))
	got, err = decryptor.Decrypt(acc)
	require.NoError(t, err)
	require.Equal(t, uint64(7*49995000), got)
}

func TestEncodingMismatch(t *testing.T) {
	sk, encryptor, _, eval := levelledSession(t, DefaultEncoding())

	narrow, err := NewEncodingContext(16, 2)
	require.NoError(t, err)
	other, err := NewEncryptor(sk, narrow)
	require.NoError(t, err)

	a, err := encryptor.Encrypt(1)
	require.NoError(t, err)
	b, err := other.Encrypt(1)
	require.NoError(t, err)

	_, err = eval.Add(a, b)
	require.ErrorIs(t, err, ErrEncodingMismatch)
	require.ErrorIs(t, err, ErrParameter)

	require.ErrorIs(t, eval.MulScalarInplace(b, 2), ErrEncodingMismatch)
}

func TestLevelledEvaluatorCannotBootstrap(t *testing.T) {
	_, encryptor, _, eval := levelledSession(t, BootstrapEncoding())
	require.False(t, eval.CanBootstrap())

	ct, err := encryptor.Encrypt(1)
	require.NoError(t, err)

	_, err = eval.BootstrapWithFunction(ct, func(m uint64) uint64 { return m })
	require.ErrorIs(t, err, ErrNoPublicKey)
	_, err = eval.MulAndBootstrap(ct, ct)
	require.ErrorIs(t, err, ErrNoPublicKey)
	_, err = eval.Relu(ct)
	require.ErrorIs(t, err, ErrNoPublicKey)
	_, err = eval.Refresh(ct)
	require.ErrorIs(t, err, ErrNoPublicKey)

	_, err = NewEvaluator(nil, BootstrapEncoding())
	require.ErrorIs(t, err, ErrNoPublicKey)
}

func TestDestroyedKey(t *testing.T) {
	sk, encryptor, decryptor, _ := levelledSession(t, DefaultEncoding())

	ct, err := encryptor.Encrypt(5)
	require.NoError(t, err)

	sk.Destroy()
	sk.Destroy()
	require.True(t, sk.Destroyed())

	_, err = encryptor.Encrypt(5)
	require.ErrorIs(t, err, ErrKeyDestroyed)
	_, err = decryptor.Decrypt(ct)
	require.ErrorIs(t, err, ErrKeyDestroyed)

	_, err = NewEncryptor(sk, DefaultEncoding())
	require.ErrorIs(t, err, ErrKeyDestroyed)
	_, err = NewDecryptor(sk)
	require.ErrorIs(t, err, ErrKeyDestroyed)
	_, err = sk.MarshalBinary()
	require.ErrorIs(t, err, ErrKeyDestroyed)
}

func TestSecretKeyRedacted(t *testing.T) {
	sk, _, _, _ := levelledSession(t, DefaultEncoding())

	require.Equal(t, "torus.SecretKey{redacted}", fmt.Sprint(sk))
	require.Equal(t, "torus.SecretKey{redacted}", fmt.Sprintf("%#v", sk))
}

func TestCiphertextMarshal(t *testing.T) {
	_, encryptor, decryptor, eval := levelledSession(t, DefaultEncoding())

	ct, err := encryptor.Encrypt(31337)
	require.NoError(t, err)

	data, err := ct.MarshalBinary()
	require.NoError(t, err)

	var back Ciphertext
	require.NoError(t, back.UnmarshalBinary(data))
	require.Equal(t, DefaultEncoding(), back.Encoding())

	got, err := decryptor.Decrypt(&back)
	require.NoError(t, err)
	require.Equal(t, uint64(31337), got)

	sum, err := eval.Add(ct, &back)
	require.NoError(t, err)
	got, err = decryptor.Decrypt(sum)
	require.NoError(t, err)
	require.Equal(t, uint64(62674), got)

	require.Error(t, back.UnmarshalBinary(data[:len(data)-3]))
}

func TestSecretKeyMarshal(t *testing.T) {
	sk, encryptor, _, _ := levelledSession(t, DefaultEncoding())

	data, err := sk.MarshalBinary()
	require.NoError(t, err)

	restored, err := UnmarshalSecretKey(data, PN11QP58)
	require.NoError(t, err)

	decryptor, err := NewDecryptor(restored)
	require.NoError(t, err)

	ct, err := encryptor.Encrypt(99)
	require.NoError(t, err)
	got, err := decryptor.Decrypt(ct)
	require.NoError(t, err)
	require.Equal(t, uint64(99), got)

	other := PN11QP58
	other.LogStdDev = -50
	_, err = UnmarshalSecretKey(data, other)
	require.ErrorIs(t, err, ErrCacheMismatch)
}

func TestDecryptWrongRing(t *testing.T) {
	_, encryptor, _, _ := levelledSession(t, DefaultEncoding())

	kgen, err := NewKeyGenerator(PN11QP48)
	require.NoError(t, err)
	sk, err := kgen.GenerateOnlySK()
	require.NoError(t, err)
	decryptor, err := NewDecryptor(sk)
	require.NoError(t, err)

	ct, err := encryptor.Encrypt(1)
	require.NoError(t, err)
	_, err = decryptor.Decrypt(ct)
	require.ErrorIs(t, err, ErrParamsMismatch)
}

func TestDecryptNil(t *testing.T) {
	_, _, decryptor, _ := levelledSession(t, DefaultEncoding())

	_, err := decryptor.Decrypt(nil)
	require.ErrorIs(t, err, ErrParameter)
}
