// Package torus implements an integer FHE session layer on top of
// luxfi/lattice: key generation with an on-disk key cache, encryption and
// decryption of unsigned integers, and a ciphertext algebra with levelled
// (linear) operations and bootstrap-gated ones (lookup-table evaluation and
// ciphertext multiplication).
//
// Ciphertexts are LWE samples stored in the constant coefficient of an RLWE
// ciphertext over a small ring. Bootstrapping blind-rotates them in a larger
// ring and key-switches the result back to the LWE key.
//
// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause
package torus

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/luxfi/lattice/v7/core/rlwe"
	"github.com/luxfi/lattice/v7/ring"
	"github.com/luxfi/lattice/v7/utils"
	"github.com/zeebo/blake3"
)

// SchemeParameters identifies a cryptographic configuration. Two keys are
// interoperable only if they were generated from equal SchemeParameters.
type SchemeParameters struct {
	// LogN is log2 of the blind rotation ring degree (the polynomial size).
	LogN int
	// RingDimension is the GLWE dimension k. Only 1 is supported.
	RingDimension int
	// LogNLWE is log2 of the LWE dimension. Must not exceed LogN.
	LogNLWE int
	// LogQ is the bit size of the ciphertext modulus shared by both rings.
	// Zero means BaseLog*Level.
	LogQ int
	// LogStdDev is the noise standard deviation exponent relative to 2^LogQ.
	// Zero selects the library default.
	LogStdDev int
	// BaseLog is log2 of the bootstrap gadget decomposition base.
	BaseLog int
	// Level is the bootstrap decomposition level count.
	// Zero means ceil(LogQ/BaseLog).
	Level int
}

// Parameter presets. They favour test speed and are not for production.
var (
	// PN11QP48 is the bootstrapping preset: a 2048 blind rotation ring over
	// 512-dimensional LWE samples.
	PN11QP48 = SchemeParameters{
		LogN:          11,
		RingDimension: 1,
		LogNLWE:       9,
		LogQ:          48,
		BaseLog:       12,
		Level:         4,
	}

	// PN10QP30 generates its bootstrapping key quickly. Its 30-bit modulus
	// only leaves room for tiny encodings.
	PN10QP30 = SchemeParameters{
		LogN:          10,
		RingDimension: 1,
		LogNLWE:       9,
		LogQ:          30,
		BaseLog:       10,
		Level:         3,
	}

	// PN11QP58 targets levelled sessions with wide cleartexts.
	PN11QP58 = SchemeParameters{
		LogN:          11,
		RingDimension: 1,
		LogNLWE:       11,
		LogQ:          58,
		BaseLog:       10,
		Level:         6,
	}
)

// Presets indexes the presets by name.
var Presets = map[string]SchemeParameters{
	"PN11QP48": PN11QP48,
	"PN10QP30": PN10QP30,
	"PN11QP58": PN11QP58,
}

const (
	minLogN   = 8
	maxLogN   = 16
	maxLogQ   = 60
	minLogQ   = 16
	maxLevels = 16
)

// Resolved returns a copy with LogQ and Level filled in.
func (p SchemeParameters) Resolved() SchemeParameters {
	if p.LogQ == 0 {
		p.LogQ = p.BaseLog * p.Level
	}
	if p.Level == 0 && p.BaseLog > 0 {
		p.Level = (p.LogQ + p.BaseLog - 1) / p.BaseLog
	}
	return p
}

// Validate checks the parameters for consistency.
func (p SchemeParameters) Validate() error {
	p = p.Resolved()

	switch {
	case p.RingDimension != 1:
		return paramErrorf("validate", "ring dimension %d not supported, must be 1", p.RingDimension)
	case p.LogN < minLogN || p.LogN > maxLogN:
		return paramErrorf("validate", "LogN %d out of range [%d, %d]", p.LogN, minLogN, maxLogN)
	case p.LogNLWE < minLogN || p.LogNLWE > p.LogN:
		return paramErrorf("validate", "LogNLWE %d out of range [%d, %d]", p.LogNLWE, minLogN, p.LogN)
	case p.BaseLog <= 0:
		return paramErrorf("validate", "base log must be positive, got %d", p.BaseLog)
	case p.LogQ < minLogQ || p.LogQ > maxLogQ:
		return paramErrorf("validate", "LogQ %d out of range [%d, %d]", p.LogQ, minLogQ, maxLogQ)
	case p.Level <= 0 || p.Level > maxLevels:
		return paramErrorf("validate", "level %d out of range [1, %d]", p.Level, maxLevels)
	case p.Level != (p.LogQ+p.BaseLog-1)/p.BaseLog:
		return paramErrorf("validate", "level %d does not cover a %d-bit modulus with base 2^%d", p.Level, p.LogQ, p.BaseLog)
	case p.LogStdDev > 0 || (p.LogStdDev != 0 && p.LogQ+p.LogStdDev < 0):
		return paramErrorf("validate", "noise exponent %d invalid for a %d-bit modulus", p.LogStdDev, p.LogQ)
	}

	return nil
}

// PolynomialSize returns the blind rotation ring degree.
func (p SchemeParameters) PolynomialSize() int {
	return 1 << p.LogN
}

// LWEDimension returns the dimension of the LWE samples.
func (p SchemeParameters) LWEDimension() int {
	return 1 << p.LogNLWE
}

// Fingerprint returns the key cache directory name for these parameters.
func (p SchemeParameters) Fingerprint() string {
	p = p.Resolved()
	return fmt.Sprintf("rlwe_%d_%d_bs_%d_%d", p.PolynomialSize(), p.RingDimension, p.BaseLog, p.Level)
}

// Digest hashes every field of the resolved parameters. Cached key files
// carry it so a load can be rejected when the parameters differ.
func (p SchemeParameters) Digest() [32]byte {
	p = p.Resolved()
	fields := []int{p.LogN, p.RingDimension, p.LogNLWE, p.LogQ, p.LogStdDev, p.BaseLog, p.Level}

	buf := make([]byte, 0, 8*len(fields))
	for _, f := range fields {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(int64(f)))
	}
	return blake3.Sum256(buf)
}

func (p SchemeParameters) noise() ring.DistributionParameters {
	if p.LogStdDev == 0 {
		return rlwe.DefaultXe
	}
	sigma := math.Ldexp(1, p.LogQ+p.LogStdDev)
	return ring.DiscreteGaussian{Sigma: sigma, Bound: 6 * sigma}
}

// latticeParams is the pair of lattice parameters behind a SchemeParameters.
type latticeParams struct {
	scheme    SchemeParameters
	lwe       rlwe.Parameters
	br        rlwe.Parameters
	evkParams rlwe.EvaluationKeyParameters
}

func newLatticeParams(p SchemeParameters) (lp latticeParams, err error) {
	if err = p.Validate(); err != nil {
		return
	}
	p = p.Resolved()
	lp.scheme = p

	lp.br, err = rlwe.NewParametersFromLiteral(rlwe.ParametersLiteral{
		LogN:    p.LogN,
		LogQ:    []int{p.LogQ},
		Xe:      p.noise(),
		NTTFlag: true,
	})
	if err != nil {
		return lp, paramErrorf("lattice parameters", "blind rotation ring: %v", err)
	}

	// Both rings share the prime so that the key switch out of the blind
	// rotation ring lands directly on LWE samples. A prime that is 1 mod 2N is
	// also 1 mod 2n for n <= N.
	lp.lwe, err = rlwe.NewParametersFromLiteral(rlwe.ParametersLiteral{
		LogN:    p.LogNLWE,
		Q:       []uint64{lp.br.Q()[0]},
		Xe:      p.noise(),
		NTTFlag: true,
	})
	if err != nil {
		return lp, paramErrorf("lattice parameters", "LWE ring: %v", err)
	}

	lp.evkParams = rlwe.EvaluationKeyParameters{
		BaseTwoDecomposition: utils.Pointy(p.BaseLog),
	}

	return lp, nil
}

// Q returns the ciphertext modulus.
func (lp latticeParams) Q() uint64 {
	return lp.lwe.Q()[0]
}
