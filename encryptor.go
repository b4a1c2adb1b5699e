// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package torus

import (
	"errors"

	"github.com/luxfi/lattice/v7/core/rlwe"
)

// noiseHeadroomBits is the phase left below the encoding for fresh noise
// and its growth under levelled operations.
const noiseHeadroomBits = 10

// Encryptor encrypts unsigned integers under a secret key. It borrows the
// key: once the key is destroyed, Encrypt fails with ErrKeyDestroyed.
type Encryptor struct {
	sk       *SecretKey
	encoding EncodingContext
	enc      *rlwe.Encryptor
}

// NewEncryptor binds an encryptor to sk and the session encoding.
func NewEncryptor(sk *SecretKey, enc EncodingContext) (*Encryptor, error) {
	if err := enc.Validate(); err != nil {
		return nil, err
	}
	if err := checkEncodingFits(sk.params, enc); err != nil {
		return nil, err
	}

	var renc *rlwe.Encryptor
	err := sk.withLWE(func(key *rlwe.SecretKey) error {
		renc = rlwe.NewEncryptor(sk.params.lwe, key)
		return nil
	})
	if err != nil {
		return nil, paramError("new encryptor", err)
	}

	return &Encryptor{sk: sk, encoding: enc, enc: renc}, nil
}

func checkEncodingFits(lp latticeParams, enc EncodingContext) error {
	if int(enc.precision())+noiseHeadroomBits > lp.scheme.LogQ {
		return paramErrorf("encoding", "%d encoding bits leave no noise headroom in a %d-bit modulus",
			enc.precision(), lp.scheme.LogQ)
	}
	return nil
}

// Encoding returns the encoding ciphertexts are produced under.
func (e *Encryptor) Encoding() EncodingContext {
	return e.encoding
}

// Encrypt encodes m into the session range and encrypts it.
func (e *Encryptor) Encrypt(m uint64) (*Ciphertext, error) {
	if m > e.encoding.Max {
		return nil, paramError("encrypt", ErrValueOutOfRange)
	}

	params := e.sk.params.lwe
	pt := rlwe.NewPlaintext(params, params.MaxLevel())
	pt.Value.Coeffs[0][0] = e.encoding.encode(m, e.sk.params.Q())
	params.RingQ().NTT(pt.Value, pt.Value)

	out := newCiphertext(params, e.encoding)

	// The read lock is held across encryption so Destroy cannot zero the key
	// mid-operation.
	err := e.sk.withLWE(func(*rlwe.SecretKey) error {
		return e.enc.Encrypt(pt, out.ct)
	})
	switch {
	case errors.Is(err, ErrKeyDestroyed):
		return nil, paramError("encrypt", err)
	case err != nil:
		return nil, cryptoError("encrypt", err)
	}

	return out, nil
}
