// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package torus

import (
	"errors"
	"fmt"

	"github.com/luxfi/lattice/v7/core/rlwe"
)

// Decryptor recovers cleartexts under a secret key, decoding each ciphertext
// with the encoding it carries. Like Encryptor it borrows the key.
type Decryptor struct {
	sk  *SecretKey
	dec *rlwe.Decryptor
}

// NewDecryptor binds a decryptor to sk.
func NewDecryptor(sk *SecretKey) (*Decryptor, error) {
	var rdec *rlwe.Decryptor
	err := sk.withLWE(func(key *rlwe.SecretKey) error {
		rdec = rlwe.NewDecryptor(sk.params.lwe, key)
		return nil
	})
	if err != nil {
		return nil, paramError("new decryptor", err)
	}
	return &Decryptor{sk: sk, dec: rdec}, nil
}

// Decrypt returns the cleartext of ct. A phase that decodes into the padding
// region means the computation overflowed the cleartext width and is
// reported as ErrValueOutOfRange.
func (d *Decryptor) Decrypt(ct *Ciphertext) (uint64, error) {
	if ct == nil {
		return 0, paramErrorf("decrypt", "ciphertext is nil")
	}
	params := d.sk.params.lwe
	if !ct.params.Equal(&params) {
		return 0, paramError("decrypt", ErrParamsMismatch)
	}

	pt := rlwe.NewPlaintext(params, ct.ct.Level())
	err := d.sk.withLWE(func(*rlwe.SecretKey) error {
		d.dec.Decrypt(ct.ct, pt)
		return nil
	})
	if errors.Is(err, ErrKeyDestroyed) {
		return 0, paramError("decrypt", err)
	}

	if pt.IsNTT {
		params.RingQ().AtLevel(pt.Level()).INTT(pt.Value, pt.Value)
	}

	m := ct.encoding.decode(pt.Value.Coeffs[0][0], d.sk.params.Q())
	if m > ct.encoding.Max {
		return 0, paramError("decrypt", fmt.Errorf("%w: decoded %d, max %d", ErrValueOutOfRange, m, ct.encoding.Max))
	}
	return m, nil
}
