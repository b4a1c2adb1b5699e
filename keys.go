// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package torus

import (
	"sync"

	"github.com/luxfi/lattice/v7/core/rgsw/blindrot"
	"github.com/luxfi/lattice/v7/core/rlwe"
)

// SecretKey holds the LWE secret and the blind rotation ring secret it was
// generated with. It must never leave the process in cleartext and is never
// printed: String and GoString are redacted.
//
// Destroy zeroes the key material; encryptors and decryptors built on a
// destroyed key fail with ErrKeyDestroyed.
type SecretKey struct {
	params latticeParams

	mu        sync.RWMutex
	lwe       *rlwe.SecretKey
	br        *rlwe.SecretKey
	destroyed bool
}

// Parameters returns the parameters the key was generated for.
func (sk *SecretKey) Parameters() SchemeParameters {
	return sk.params.scheme
}

// Destroy zeroes the key material. It is idempotent.
func (sk *SecretKey) Destroy() {
	sk.mu.Lock()
	defer sk.mu.Unlock()

	if sk.destroyed {
		return
	}
	zeroSecret(sk.lwe)
	zeroSecret(sk.br)
	sk.lwe, sk.br = nil, nil
	sk.destroyed = true
}

// Destroyed reports whether Destroy was called.
func (sk *SecretKey) Destroyed() bool {
	sk.mu.RLock()
	defer sk.mu.RUnlock()
	return sk.destroyed
}

// withLWE runs fn with the LWE secret under the read lock.
func (sk *SecretKey) withLWE(fn func(*rlwe.SecretKey) error) error {
	sk.mu.RLock()
	defer sk.mu.RUnlock()

	if sk.destroyed {
		return ErrKeyDestroyed
	}
	return fn(sk.lwe)
}

func (sk *SecretKey) String() string {
	return "torus.SecretKey{redacted}"
}

func (sk *SecretKey) GoString() string {
	return sk.String()
}

func zeroSecret(sk *rlwe.SecretKey) {
	if sk == nil {
		return
	}
	for _, coeffs := range sk.Value.Q.Coeffs {
		clear(coeffs)
	}
	for _, coeffs := range sk.Value.P.Coeffs {
		clear(coeffs)
	}
}

// PublicKey is the bootstrapping key: one RGSW encryption per LWE secret
// coefficient under the blind rotation secret, the automorphism keys the
// blind rotation needs, and a key switching key back to the LWE secret.
// It reveals nothing about the SecretKey and can be handed to an evaluating
// party.
type PublicKey struct {
	params latticeParams
	brk    blindrot.MemBlindRotationEvaluationKeySet
	ksk    *rlwe.EvaluationKey
}

// Parameters returns the parameters the key was generated for.
func (pk *PublicKey) Parameters() SchemeParameters {
	return pk.params.scheme
}
