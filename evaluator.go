// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package torus

import (
	"fmt"

	"github.com/luxfi/lattice/v7/core/rgsw/blindrot"
	"github.com/luxfi/lattice/v7/core/rlwe"
	"github.com/luxfi/lattice/v7/ring"
)

// Evaluator implements the ciphertext algebra of a session.
//
// A levelled evaluator (no PublicKey) supports the affine operations only:
// Add, AddScalar, MulScalar and their in-place forms. A full evaluator also
// bootstraps, which is the only way to apply a nonlinear function, to
// multiply two ciphertexts, or to reset noise.
//
// An Evaluator is not safe for concurrent use.
type Evaluator struct {
	encoding EncodingContext
	pk       *PublicKey

	br *blindrot.Evaluator
	ks *rlwe.Evaluator

	lutIdentity ring.Poly
	lutSquare   ring.Poly
	lutRelu     ring.Poly
}

// NewLevelledEvaluator returns an evaluator without bootstrapping.
func NewLevelledEvaluator(enc EncodingContext) (*Evaluator, error) {
	if err := enc.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{encoding: enc}, nil
}

// NewEvaluator returns a full evaluator bootstrapping with pk.
func NewEvaluator(pk *PublicKey, enc EncodingContext) (*Evaluator, error) {
	if pk == nil {
		return nil, paramError("new evaluator", ErrNoPublicKey)
	}
	if err := enc.Validate(); err != nil {
		return nil, err
	}
	if err := checkEncodingFits(pk.params, enc); err != nil {
		return nil, err
	}
	if enc.PaddingBits < 2 {
		return nil, paramErrorf("new evaluator", "bootstrapping needs 2 padding bits, encoding has %d", enc.PaddingBits)
	}
	if step := (2 * pk.params.br.N()) >> enc.precision(); step < minBootstrapStep {
		return nil, paramErrorf("new evaluator", "%d encoding bits are too fine for a degree %d blind rotation",
			enc.precision(), pk.params.br.N())
	}

	eval := &Evaluator{
		encoding: enc,
		pk:       pk,
		br:       blindrot.NewEvaluator(pk.params.br, pk.params.lwe),
		ks:       rlwe.NewEvaluator(pk.params.br, nil),
	}

	ringQ := pk.params.br.RingQ()
	q := pk.params.Q()
	eval.lutIdentity = testPolynomial(ringQ, q, enc, func(m int64) int64 {
		return int64(clampCleartext(m, enc.Max))
	})
	eval.lutSquare = testPolynomial(ringQ, q, enc, squareQuarter)
	eval.lutRelu = testPolynomial(ringQ, q, enc, func(m int64) int64 {
		return int64(clampCleartext(max(m, 0), enc.Max))
	})

	return eval, nil
}

// Encoding returns the session encoding.
func (eval *Evaluator) Encoding() EncodingContext {
	return eval.encoding
}

// CanBootstrap reports whether the evaluator holds a bootstrapping key.
func (eval *Evaluator) CanBootstrap() bool {
	return eval.pk != nil
}

func (eval *Evaluator) check(op string, cts ...*Ciphertext) error {
	for i, ct := range cts {
		if ct == nil {
			return paramErrorf(op, "operand %d is nil", i)
		}
		if !ct.encoding.Compatible(eval.encoding) {
			return paramError(op, fmt.Errorf("%w: operand %d has %d+%d bits, evaluator %d+%d",
				ErrEncodingMismatch, i, ct.encoding.CleartextBits, ct.encoding.PaddingBits,
				eval.encoding.CleartextBits, eval.encoding.PaddingBits))
		}
		if i > 0 && !ct.sameRing(cts[0]) {
			return paramError(op, ErrParamsMismatch)
		}
	}
	if eval.pk != nil && len(cts) > 0 && !cts[0].params.Equal(&eval.pk.params.lwe) {
		return paramError(op, ErrParamsMismatch)
	}
	return nil
}

func (eval *Evaluator) requireKey(op string) error {
	if eval.pk == nil {
		return paramError(op, ErrNoPublicKey)
	}
	return nil
}

func ringOf(ct *Ciphertext) *ring.Ring {
	return ct.params.RingQ().AtLevel(ct.ct.Level())
}

// ========== Levelled Operations ==========

// Add returns a + b.
func (eval *Evaluator) Add(a, b *Ciphertext) (*Ciphertext, error) {
	if err := eval.check("add", a, b); err != nil {
		return nil, err
	}
	out := a.Clone()
	addTo(out, b)
	return out, nil
}

// AddInplace sets a to a + b.
func (eval *Evaluator) AddInplace(a, b *Ciphertext) error {
	if err := eval.check("add", a, b); err != nil {
		return err
	}
	addTo(a, b)
	return nil
}

func addTo(a, b *Ciphertext) {
	r := ringOf(a)
	r.Add(a.ct.Value[0], b.ct.Value[0], a.ct.Value[0])
	r.Add(a.ct.Value[1], b.ct.Value[1], a.ct.Value[1])
}

// sub returns a - b. Cleartexts go negative modulo 2^k, which only the
// square lookup table interprets.
func (eval *Evaluator) sub(a, b *Ciphertext) *Ciphertext {
	out := a.Clone()
	r := ringOf(a)
	r.Sub(a.ct.Value[0], b.ct.Value[0], out.ct.Value[0])
	r.Sub(a.ct.Value[1], b.ct.Value[1], out.ct.Value[1])
	return out
}

// AddScalar returns a + c.
func (eval *Evaluator) AddScalar(a *Ciphertext, c uint64) (*Ciphertext, error) {
	if a == nil {
		return nil, paramErrorf("add scalar", "operand is nil")
	}
	out := a.Clone()
	if err := eval.AddScalarInplace(out, c); err != nil {
		return nil, err
	}
	return out, nil
}

// AddScalarInplace sets a to a + c.
func (eval *Evaluator) AddScalarInplace(a *Ciphertext, c uint64) error {
	if err := eval.check("add scalar", a); err != nil {
		return err
	}
	if c > eval.encoding.Max {
		return paramError("add scalar", ErrValueOutOfRange)
	}

	// The constant polynomial is the same in every NTT slot.
	q := a.params.Q()[0]
	ringOf(a).AddScalar(a.ct.Value[0], eval.encoding.encode(c, q), a.ct.Value[0])
	return nil
}

// MulScalar returns a * c.
func (eval *Evaluator) MulScalar(a *Ciphertext, c uint64) (*Ciphertext, error) {
	if a == nil {
		return nil, paramErrorf("mul scalar", "operand is nil")
	}
	out := a.Clone()
	if err := eval.MulScalarInplace(out, c); err != nil {
		return nil, err
	}
	return out, nil
}

// MulScalarInplace sets a to a * c. Noise grows by a factor c, so c must not
// exceed ScalarLimit for the ciphertext's parameters.
func (eval *Evaluator) MulScalarInplace(a *Ciphertext, c uint64) error {
	if err := eval.check("mul scalar", a); err != nil {
		return err
	}
	if limit := scalarLimit(a.params, eval.encoding); c > limit {
		return paramError("mul scalar", fmt.Errorf("%w: scalar %d exceeds the noise budget %d",
			ErrValueOutOfRange, c, limit))
	}
	r := ringOf(a)
	r.MulScalar(a.ct.Value[0], c, a.ct.Value[0])
	r.MulScalar(a.ct.Value[1], c, a.ct.Value[1])
	return nil
}

// ScalarLimit returns the largest scalar MulScalar accepts under params and
// enc. Scaling a fresh ciphertext by at most this much decrypts exactly.
func ScalarLimit(params SchemeParameters, enc EncodingContext) (uint64, error) {
	lp, err := newLatticeParams(params)
	if err != nil {
		return 0, err
	}
	return scalarLimit(lp.lwe, enc), nil
}

// scalarLimit bounds c so that c times the worst fresh error, the truncated
// noise plus half a unit of encoding rounding, stays below Delta/2.
func scalarLimit(params rlwe.Parameters, enc EncodingContext) uint64 {
	halfDelta := enc.delta(params.Q()[0]) / 2
	return uint64(halfDelta / (params.NoiseBound() + 0.5))
}

// ========== Bootstrapped Operations ==========

// bootstrap blind-rotates ct with the test polynomial lut and switches the
// result back to an LWE ciphertext under the session key.
func (eval *Evaluator) bootstrap(op string, ct *Ciphertext, lut *ring.Poly) (out *Ciphertext, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, cryptoError(op, panicError(r))
		}
	}()

	res, err := eval.br.Evaluate(ct.ct, map[int]*ring.Poly{0: lut}, eval.pk.brk)
	if err != nil {
		return nil, cryptoError(op, fmt.Errorf("blind rotation: %w", err))
	}
	ctBR, ok := res[0]
	if !ok {
		return nil, cryptoError(op, fmt.Errorf("blind rotation: no result for slot 0"))
	}

	out = newCiphertext(eval.pk.params.lwe, eval.encoding)
	if err := eval.ks.ApplyEvaluationKey(ctBR, eval.pk.ksk, out.ct); err != nil {
		return nil, cryptoError(op, fmt.Errorf("key switch: %w", err))
	}
	return out, nil
}

// BootstrapWithFunction returns an encryption of f(m) for the cleartext m of
// ct, with noise reset to that of a fresh bootstrap. Results above the
// cleartext range saturate to Max.
func (eval *Evaluator) BootstrapWithFunction(ct *Ciphertext, f func(uint64) uint64) (*Ciphertext, error) {
	const op = "bootstrap with function"
	if err := eval.requireKey(op); err != nil {
		return nil, err
	}
	if err := eval.check(op, ct); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, paramErrorf(op, "nil function")
	}

	limit := eval.encoding.Max
	lut := testPolynomial(eval.pk.params.br.RingQ(), eval.pk.params.Q(), eval.encoding, func(m int64) int64 {
		return int64(min(f(clampCleartext(m, limit)), limit))
	})
	return eval.bootstrap(op, ct, &lut)
}

// Refresh bootstraps ct with the identity, resetting its noise.
func (eval *Evaluator) Refresh(ct *Ciphertext) (*Ciphertext, error) {
	if err := eval.requireKey("refresh"); err != nil {
		return nil, err
	}
	if err := eval.check("refresh", ct); err != nil {
		return nil, err
	}
	return eval.bootstrap("refresh", ct, &eval.lutIdentity)
}

// MulAndBootstrap returns an encryption of a*b using
//
//	a*b = floor((a+b)^2 / 4) - floor((a-b)^2 / 4)
//
// with one square lookup bootstrap per term. It needs three padding bits so
// a+b and a-b stay inside the lookup domain, and a*b must not exceed Max.
func (eval *Evaluator) MulAndBootstrap(a, b *Ciphertext) (*Ciphertext, error) {
	const op = "mul and bootstrap"
	if err := eval.requireKey(op); err != nil {
		return nil, err
	}
	if err := eval.check(op, a, b); err != nil {
		return nil, err
	}
	if eval.encoding.PaddingBits < 3 {
		return nil, paramErrorf(op, "needs 3 padding bits, encoding has %d", eval.encoding.PaddingBits)
	}

	sum := a.Clone()
	addTo(sum, b)
	diff := eval.sub(a, b)

	hi, err := eval.bootstrap(op, sum, &eval.lutSquare)
	if err != nil {
		return nil, err
	}
	lo, err := eval.bootstrap(op, diff, &eval.lutSquare)
	if err != nil {
		return nil, err
	}

	return eval.sub(hi, lo), nil
}

// Relu bootstraps ct through max(m, 0). Cleartexts are unsigned, so on
// valid inputs this returns the same value with fresh noise; it is kept for
// callers composing neural-network style pipelines.
func (eval *Evaluator) Relu(ct *Ciphertext) (*Ciphertext, error) {
	if err := eval.requireKey("relu"); err != nil {
		return nil, err
	}
	if err := eval.check("relu", ct); err != nil {
		return nil, err
	}
	return eval.bootstrap("relu", ct, &eval.lutRelu)
}
