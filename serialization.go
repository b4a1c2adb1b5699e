// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package torus

import (
	"bufio"
	"bytes"
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/luxfi/lattice/v7/core/rgsw"
	"github.com/luxfi/lattice/v7/core/rgsw/blindrot"
	"github.com/luxfi/lattice/v7/core/rlwe"
)

// Key files start with a fixed header:
//
//	magic "TRUS" | version uint16 | kind uint8 | parameter digest [32]byte
//
// followed by length-prefixed lattice blobs.
var keyMagic = [4]byte{'T', 'R', 'U', 'S'}

const (
	keyFormatVersion uint16 = 1

	kindSecretKey    uint8 = 1
	kindBootstrapKey uint8 = 2

	// maxBlobSize bounds a single length prefix when reading.
	maxBlobSize = 1 << 31
)

var errBadHeader = errors.New("not a key file")

type keyHeader struct {
	Magic   [4]byte
	Version uint16
	Kind    uint8
	Digest  [32]byte
}

func writeHeader(w io.Writer, kind uint8, p SchemeParameters) error {
	return binary.Write(w, binary.LittleEndian, keyHeader{
		Magic:   keyMagic,
		Version: keyFormatVersion,
		Kind:    kind,
		Digest:  p.Digest(),
	})
}

func readHeader(r io.Reader, kind uint8, p SchemeParameters) error {
	var h keyHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if h.Magic != keyMagic || h.Kind != kind {
		return errBadHeader
	}
	if h.Version != keyFormatVersion {
		return fmt.Errorf("unsupported key format version %d", h.Version)
	}
	if h.Digest != p.Digest() {
		return ErrCacheMismatch
	}
	return nil
}

func writeBlob(w io.Writer, m encoding.BinaryMarshaler) error {
	data, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(data))); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func readBlob(r io.Reader, u encoding.BinaryUnmarshaler) error {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return err
	}
	if n > maxBlobSize {
		return fmt.Errorf("blob of %d bytes exceeds limit", n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return err
	}
	return u.UnmarshalBinary(data)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// ========== Secret Key ==========

// WriteTo writes the key in the secret_key file format.
func (sk *SecretKey) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)

	err := func() error {
		sk.mu.RLock()
		defer sk.mu.RUnlock()

		if sk.destroyed {
			return ErrKeyDestroyed
		}
		if err := writeHeader(bw, kindSecretKey, sk.params.scheme); err != nil {
			return err
		}
		if err := writeBlob(bw, sk.lwe); err != nil {
			return fmt.Errorf("LWE secret: %w", err)
		}
		if err := writeBlob(bw, sk.br); err != nil {
			return fmt.Errorf("blind rotation secret: %w", err)
		}
		return bw.Flush()
	}()

	return cw.n, err
}

// MarshalBinary encodes the key in the secret_key file format.
func (sk *SecretKey) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := sk.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadSecretKey decodes a secret_key file generated for params.
func ReadSecretKey(r io.Reader, params SchemeParameters) (*SecretKey, error) {
	lp, err := newLatticeParams(params)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(r)

	if err := readHeader(br, kindSecretKey, lp.scheme); err != nil {
		return nil, paramError("read secret key", err)
	}

	sk := &SecretKey{params: lp, lwe: new(rlwe.SecretKey), br: new(rlwe.SecretKey)}
	if err := readBlob(br, sk.lwe); err != nil {
		return nil, cryptoError("read secret key", fmt.Errorf("LWE secret: %w", err))
	}
	if err := readBlob(br, sk.br); err != nil {
		return nil, cryptoError("read secret key", fmt.Errorf("blind rotation secret: %w", err))
	}

	if sk.lwe.Value.Q.N() != lp.lwe.N() || sk.br.Value.Q.N() != lp.br.N() {
		return nil, paramErrorf("read secret key", "ring degrees %d/%d do not match parameters",
			sk.lwe.Value.Q.N(), sk.br.Value.Q.N())
	}

	return sk, nil
}

// UnmarshalSecretKey decodes a secret key produced by MarshalBinary.
func UnmarshalSecretKey(data []byte, params SchemeParameters) (*SecretKey, error) {
	return ReadSecretKey(bytes.NewReader(data), params)
}

// ========== Public Key ==========

// WriteTo writes the key in the bootstrapping_key file format.
func (pk *PublicKey) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriterSize(cw, 1<<20)

	err := func() error {
		if err := writeHeader(bw, kindBootstrapKey, pk.params.scheme); err != nil {
			return err
		}

		if err := binary.Write(bw, binary.LittleEndian, uint32(len(pk.brk.BlindRotationKeys))); err != nil {
			return err
		}
		for i, ct := range pk.brk.BlindRotationKeys {
			if err := writeBlob(bw, ct); err != nil {
				return fmt.Errorf("blind rotation key %d: %w", i, err)
			}
		}

		if err := binary.Write(bw, binary.LittleEndian, uint32(len(pk.brk.AutomorphismKeys))); err != nil {
			return err
		}
		for i, gk := range pk.brk.AutomorphismKeys {
			if err := writeBlob(bw, gk); err != nil {
				return fmt.Errorf("automorphism key %d: %w", i, err)
			}
		}

		if err := writeBlob(bw, pk.ksk); err != nil {
			return fmt.Errorf("key switching key: %w", err)
		}
		return bw.Flush()
	}()

	return cw.n, err
}

// MarshalBinary encodes the key in the bootstrapping_key file format.
func (pk *PublicKey) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := pk.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadPublicKey decodes a bootstrapping_key file generated for params.
func ReadPublicKey(r io.Reader, params SchemeParameters) (*PublicKey, error) {
	lp, err := newLatticeParams(params)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReaderSize(r, 1<<20)

	if err := readHeader(br, kindBootstrapKey, lp.scheme); err != nil {
		return nil, paramError("read bootstrapping key", err)
	}

	var n uint32
	if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
		return nil, cryptoError("read bootstrapping key", err)
	}
	if int(n) != lp.lwe.N() {
		return nil, paramErrorf("read bootstrapping key", "%d blind rotation keys for LWE dimension %d", n, lp.lwe.N())
	}

	brk := blindrot.MemBlindRotationEvaluationKeySet{
		BlindRotationKeys: make([]*rgsw.Ciphertext, n),
	}
	for i := range brk.BlindRotationKeys {
		brk.BlindRotationKeys[i] = new(rgsw.Ciphertext)
		if err := readBlob(br, brk.BlindRotationKeys[i]); err != nil {
			return nil, cryptoError("read bootstrapping key", fmt.Errorf("blind rotation key %d: %w", i, err))
		}
	}

	if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
		return nil, cryptoError("read bootstrapping key", err)
	}
	if int(n) > 2*lp.br.N() {
		return nil, paramErrorf("read bootstrapping key", "%d automorphism keys", n)
	}
	brk.AutomorphismKeys = make([]*rlwe.GaloisKey, n)
	for i := range brk.AutomorphismKeys {
		brk.AutomorphismKeys[i] = new(rlwe.GaloisKey)
		if err := readBlob(br, brk.AutomorphismKeys[i]); err != nil {
			return nil, cryptoError("read bootstrapping key", fmt.Errorf("automorphism key %d: %w", i, err))
		}
	}

	ksk := new(rlwe.EvaluationKey)
	if err := readBlob(br, ksk); err != nil {
		return nil, cryptoError("read bootstrapping key", fmt.Errorf("key switching key: %w", err))
	}

	return &PublicKey{params: lp, brk: brk, ksk: ksk}, nil
}

// UnmarshalPublicKey decodes a public key produced by MarshalBinary.
func UnmarshalPublicKey(data []byte, params SchemeParameters) (*PublicKey, error) {
	return ReadPublicKey(bytes.NewReader(data), params)
}
