// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package torus

import (
	"bytes"
	"fmt"
	"io"

	"github.com/luxfi/lattice/v7/core/rlwe"
)

// Ciphertext is an LWE sample kept in the constant coefficient of an RLWE
// ciphertext over the LWE ring, in NTT form. It records the encoding it was
// produced under and holds no reference to any key.
type Ciphertext struct {
	ct       *rlwe.Ciphertext
	params   rlwe.Parameters
	encoding EncodingContext
}

func newCiphertext(params rlwe.Parameters, enc EncodingContext) *Ciphertext {
	return &Ciphertext{
		ct:       rlwe.NewCiphertext(params, 1, params.MaxLevel()),
		params:   params,
		encoding: enc,
	}
}

// Encoding returns the encoding the ciphertext was produced under.
func (c *Ciphertext) Encoding() EncodingContext {
	return c.encoding
}

// Clone returns a deep copy.
func (c *Ciphertext) Clone() *Ciphertext {
	return &Ciphertext{
		ct:       c.ct.CopyNew(),
		params:   c.params,
		encoding: c.encoding,
	}
}

// MarshalBinary encodes the ciphertext together with its encoding and
// lattice parameters, so it can be decoded without outside context.
func (c *Ciphertext) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	hdr := [2]uint8{uint8(c.encoding.CleartextBits), uint8(c.encoding.PaddingBits)}
	buf.Write(hdr[:])

	if err := writeBlob(&buf, c.params); err != nil {
		return nil, fmt.Errorf("marshal parameters: %w", err)
	}
	if err := writeBlob(&buf, c.ct); err != nil {
		return nil, fmt.Errorf("marshal ciphertext: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a ciphertext produced by MarshalBinary.
func (c *Ciphertext) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)

	var hdr [2]uint8
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return paramError("unmarshal ciphertext", err)
	}
	enc, err := NewEncodingContext(int(hdr[0]), int(hdr[1]))
	if err != nil {
		return err
	}

	var params rlwe.Parameters
	if err := readBlob(r, &params); err != nil {
		return paramError("unmarshal ciphertext", fmt.Errorf("parameters: %w", err))
	}

	ct := rlwe.NewCiphertext(params, 1, params.MaxLevel())
	if err := readBlob(r, ct); err != nil {
		return paramError("unmarshal ciphertext", fmt.Errorf("body: %w", err))
	}
	if ct.Degree() != 1 || ct.Value[0].N() != params.N() {
		return paramErrorf("unmarshal ciphertext", "malformed ciphertext body")
	}
	if r.Len() != 0 {
		return paramErrorf("unmarshal ciphertext", "%d trailing bytes", r.Len())
	}

	c.ct, c.params, c.encoding = ct, params, enc
	return nil
}

// sameRing reports whether both ciphertexts live over the same lattice
// parameters.
func (c *Ciphertext) sameRing(other *Ciphertext) bool {
	return c.params.Equal(&other.params) && c.ct.Level() == other.ct.Level()
}
