// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package torus

import (
	"time"

	"github.com/luxfi/lattice/v7/core/rgsw/blindrot"
	"github.com/luxfi/lattice/v7/core/rlwe"
	"go.uber.org/zap"
)

// KeyGenerator produces key pairs for one SchemeParameters.
type KeyGenerator struct {
	params  latticeParams
	kgenLWE *rlwe.KeyGenerator
	kgenBR  *rlwe.KeyGenerator
	log     *zap.Logger
}

// Option configures a KeyGenerator.
type Option func(*KeyGenerator)

// WithLogger sets the logger used for generation and cache events.
func WithLogger(log *zap.Logger) Option {
	return func(kg *KeyGenerator) {
		if log != nil {
			kg.log = log
		}
	}
}

// NewKeyGenerator validates params and returns a generator for them.
func NewKeyGenerator(params SchemeParameters, opts ...Option) (*KeyGenerator, error) {
	lp, err := newLatticeParams(params)
	if err != nil {
		return nil, err
	}

	kg := &KeyGenerator{
		params:  lp,
		kgenLWE: rlwe.NewKeyGenerator(lp.lwe),
		kgenBR:  rlwe.NewKeyGenerator(lp.br),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(kg)
	}
	return kg, nil
}

// Parameters returns the resolved parameters of the generator.
func (kg *KeyGenerator) Parameters() SchemeParameters {
	return kg.params.scheme
}

// Generate samples a fresh secret key and derives its bootstrapping key.
func (kg *KeyGenerator) Generate() (*SecretKey, *PublicKey, error) {
	sk, err := kg.GenerateOnlySK()
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	pk, err := kg.genPublicKey(sk)
	if err != nil {
		return nil, nil, err
	}
	kg.log.Debug("generated bootstrapping key",
		zap.String("params", kg.params.scheme.Fingerprint()),
		zap.Duration("elapsed", time.Since(start)),
	)

	return sk, pk, nil
}

// GenerateOnlySK samples a secret key without the bootstrapping key, for
// sessions that only use levelled operations.
func (kg *KeyGenerator) GenerateOnlySK() (*SecretKey, error) {
	sk := &SecretKey{
		params: kg.params,
		lwe:    kg.kgenLWE.GenSecretKeyNew(),
		br:     kg.kgenBR.GenSecretKeyNew(),
	}
	return sk, nil
}

func (kg *KeyGenerator) genPublicKey(sk *SecretKey) (pk *PublicKey, err error) {
	sk.mu.RLock()
	defer sk.mu.RUnlock()

	if sk.destroyed {
		return nil, paramError("generate bootstrapping key", ErrKeyDestroyed)
	}

	defer func() {
		if r := recover(); r != nil {
			err = cryptoError("generate bootstrapping key", panicError(r))
		}
	}()

	brk := blindrot.GenEvaluationKeyNew(kg.params.br, sk.br, kg.params.lwe, sk.lwe, kg.params.evkParams)

	// Switches blind rotation outputs from the ring secret back to the LWE
	// secret, and from degree N down to the LWE degree.
	ksk := kg.kgenBR.GenEvaluationKeyNew(sk.br, sk.lwe, kg.params.evkParams)

	return &PublicKey{params: kg.params, brk: brk, ksk: ksk}, nil
}
