// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package ffi exposes a torus session through opaque handles and tagged
// results, for callers on the other side of a language boundary.
//
// Every call returns a Result instead of panicking. Objects built from a key
// retain the key's handle: freeing the key handle while an Encryptor still
// uses it only drops the caller's reference, and the key material is
// destroyed when the last dependent is freed.
package ffi

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/luxfi/torus"
)

// SecurityParams selects the ring. Dimension is both the polynomial size and
// the LWE dimension and must be a power of two. Log2StdDev is the noise
// exponent relative to the modulus; zero selects the library default.
type SecurityParams struct {
	Dimension  int
	Log2StdDev int
}

// EncodingConfig selects the session encoding. The zero value is the
// default 32-bit encoding.
type EncodingConfig struct {
	CleartextBits int
	PaddingBits   int
}

func (c EncodingConfig) context() (torus.EncodingContext, error) {
	if c == (EncodingConfig{}) {
		return torus.DefaultEncoding(), nil
	}
	return torus.NewEncodingContext(c.CleartextBits, c.PaddingBits)
}

// evaluator serializes calls on a torus.Evaluator, which is not safe for
// concurrent use.
type evaluator struct {
	mu   sync.Mutex
	eval *torus.Evaluator
}

// ========== Key Generator ==========

// KeyGeneratorNew returns a key generator for a single-ring configuration:
// the LWE dimension equals the polynomial size and the modulus has
// baseLog*level bits.
func (r *Registry) KeyGeneratorNew(sec SecurityParams, baseLog, level int) (h Handle, res Result) {
	defer recoverResult(&res)

	if sec.Dimension <= 0 || bits.OnesCount(uint(sec.Dimension)) != 1 {
		return 0, failure(CodeParameter, fmt.Sprintf("dimension %d is not a power of two", sec.Dimension))
	}
	logN := bits.Len(uint(sec.Dimension)) - 1

	return r.KeyGeneratorFromParameters(torus.SchemeParameters{
		LogN:          logN,
		RingDimension: 1,
		LogNLWE:       logN,
		LogStdDev:     sec.Log2StdDev,
		BaseLog:       baseLog,
		Level:         level,
	})
}

// KeyGeneratorFromParameters returns a key generator for params.
func (r *Registry) KeyGeneratorFromParameters(params torus.SchemeParameters) (h Handle, res Result) {
	defer recoverResult(&res)

	kg, err := torus.NewKeyGenerator(params)
	if err != nil {
		return 0, resultOf(err)
	}
	return r.put(kg, nil), okResult
}

// KeyGeneratorFromPreset returns a key generator for a named preset.
func (r *Registry) KeyGeneratorFromPreset(name string) (Handle, Result) {
	params, found := torus.Presets[name]
	if !found {
		return 0, failure(CodeParameter, fmt.Sprintf("unknown preset %q", name))
	}
	return r.KeyGeneratorFromParameters(params)
}

func (r *Registry) putSecretKey(sk *torus.SecretKey) Handle {
	return r.put(sk, sk.Destroy)
}

// KeyGeneratorGenerate returns a fresh key pair.
func (r *Registry) KeyGeneratorGenerate(kgh Handle) (sk, pk Handle, res Result) {
	defer recoverResult(&res)

	kg, found := lookup[*torus.KeyGenerator](r, kgh)
	if !found {
		return 0, 0, handleError(kgh, "key generator")
	}
	s, p, err := kg.Generate()
	if err != nil {
		return 0, 0, resultOf(err)
	}
	return r.putSecretKey(s), r.put(p, nil), okResult
}

// KeyGeneratorGenerateOnlySK returns a secret key without a bootstrapping
// key.
func (r *Registry) KeyGeneratorGenerateOnlySK(kgh Handle) (sk Handle, res Result) {
	defer recoverResult(&res)

	kg, found := lookup[*torus.KeyGenerator](r, kgh)
	if !found {
		return 0, handleError(kgh, "key generator")
	}
	s, err := kg.GenerateOnlySK()
	if err != nil {
		return 0, resultOf(err)
	}
	return r.putSecretKey(s), okResult
}

// KeyGeneratorGenerateWithCache loads the key pair cached under root, or
// generates and caches it.
func (r *Registry) KeyGeneratorGenerateWithCache(kgh Handle, root string) (sk, pk Handle, res Result) {
	defer recoverResult(&res)

	kg, found := lookup[*torus.KeyGenerator](r, kgh)
	if !found {
		return 0, 0, handleError(kgh, "key generator")
	}
	s, p, err := kg.GenerateWithCache(root)
	if err != nil {
		return 0, 0, resultOf(err)
	}
	return r.putSecretKey(s), r.put(p, nil), okResult
}

// ========== Encryptor / Decryptor ==========

// EncryptorNew returns an encryptor borrowing the secret key skh.
func (r *Registry) EncryptorNew(skh Handle, cfg EncodingConfig) (h Handle, res Result) {
	defer recoverResult(&res)

	sk, found := lookup[*torus.SecretKey](r, skh)
	if !found {
		return 0, handleError(skh, "secret key")
	}
	enc, err := cfg.context()
	if err != nil {
		return 0, resultOf(err)
	}
	e, err := torus.NewEncryptor(sk, enc)
	if err != nil {
		return 0, resultOf(err)
	}
	return r.putRetaining(e, skh)
}

// Encrypt returns a new ciphertext of m.
func (r *Registry) Encrypt(eh Handle, m uint64) (h Handle, res Result) {
	defer recoverResult(&res)

	e, found := lookup[*torus.Encryptor](r, eh)
	if !found {
		return 0, handleError(eh, "encryptor")
	}
	ct, err := e.Encrypt(m)
	if err != nil {
		return 0, resultOf(err)
	}
	return r.put(ct, nil), okResult
}

// DecryptorNew returns a decryptor borrowing the secret key skh.
func (r *Registry) DecryptorNew(skh Handle) (h Handle, res Result) {
	defer recoverResult(&res)

	sk, found := lookup[*torus.SecretKey](r, skh)
	if !found {
		return 0, handleError(skh, "secret key")
	}
	d, err := torus.NewDecryptor(sk)
	if err != nil {
		return 0, resultOf(err)
	}
	return r.putRetaining(d, skh)
}

// Decrypt returns the cleartext of cth.
func (r *Registry) Decrypt(dh, cth Handle) (m uint64, res Result) {
	defer recoverResult(&res)

	d, found := lookup[*torus.Decryptor](r, dh)
	if !found {
		return 0, handleError(dh, "decryptor")
	}
	ct, found := lookup[*torus.Ciphertext](r, cth)
	if !found {
		return 0, handleError(cth, "ciphertext")
	}
	m, err := d.Decrypt(ct)
	if err != nil {
		return 0, resultOf(err)
	}
	return m, okResult
}

// ========== Evaluator ==========

// EvaluatorNewLevelled returns an evaluator without bootstrapping.
func (r *Registry) EvaluatorNewLevelled(cfg EncodingConfig) (h Handle, res Result) {
	defer recoverResult(&res)

	enc, err := cfg.context()
	if err != nil {
		return 0, resultOf(err)
	}
	eval, err := torus.NewLevelledEvaluator(enc)
	if err != nil {
		return 0, resultOf(err)
	}
	return r.put(&evaluator{eval: eval}, nil), okResult
}

// EvaluatorNew returns a bootstrapping evaluator retaining the public key
// pkh.
func (r *Registry) EvaluatorNew(pkh Handle, cfg EncodingConfig) (h Handle, res Result) {
	defer recoverResult(&res)

	pk, found := lookup[*torus.PublicKey](r, pkh)
	if !found {
		return 0, handleError(pkh, "public key")
	}
	enc, err := cfg.context()
	if err != nil {
		return 0, resultOf(err)
	}
	eval, err := torus.NewEvaluator(pk, enc)
	if err != nil {
		return 0, resultOf(err)
	}
	return r.putRetaining(&evaluator{eval: eval}, pkh)
}

// withEval runs fn on the evaluator evh and the ciphertexts cts.
func (r *Registry) withEval(evh Handle, cts []Handle, fn func(*torus.Evaluator, []*torus.Ciphertext) error) Result {
	ev, found := lookup[*evaluator](r, evh)
	if !found {
		return handleError(evh, "evaluator")
	}
	resolved := make([]*torus.Ciphertext, len(cts))
	for i, h := range cts {
		ct, found := lookup[*torus.Ciphertext](r, h)
		if !found {
			return handleError(h, "ciphertext")
		}
		resolved[i] = ct
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()
	return resultOf(fn(ev.eval, resolved))
}

// produce runs an evaluator call returning a new ciphertext.
func (r *Registry) produce(evh Handle, cts []Handle, fn func(*torus.Evaluator, []*torus.Ciphertext) (*torus.Ciphertext, error)) (h Handle, res Result) {
	defer recoverResult(&res)

	var out *torus.Ciphertext
	res = r.withEval(evh, cts, func(eval *torus.Evaluator, in []*torus.Ciphertext) error {
		var err error
		out, err = fn(eval, in)
		return err
	})
	if !res.OK() {
		return 0, res
	}
	return r.put(out, nil), okResult
}

// mutate runs an in-place evaluator call.
func (r *Registry) mutate(evh Handle, cts []Handle, fn func(*torus.Evaluator, []*torus.Ciphertext) error) (res Result) {
	defer recoverResult(&res)
	return r.withEval(evh, cts, fn)
}

// Add returns a new ciphertext of a + b.
func (r *Registry) Add(evh, a, b Handle) (Handle, Result) {
	return r.produce(evh, []Handle{a, b}, func(eval *torus.Evaluator, ct []*torus.Ciphertext) (*torus.Ciphertext, error) {
		return eval.Add(ct[0], ct[1])
	})
}

// AddInplace sets a to a + b.
func (r *Registry) AddInplace(evh, a, b Handle) Result {
	return r.mutate(evh, []Handle{a, b}, func(eval *torus.Evaluator, ct []*torus.Ciphertext) error {
		return eval.AddInplace(ct[0], ct[1])
	})
}

// AddScalar returns a new ciphertext of a + c.
func (r *Registry) AddScalar(evh, a Handle, c uint64) (Handle, Result) {
	return r.produce(evh, []Handle{a}, func(eval *torus.Evaluator, ct []*torus.Ciphertext) (*torus.Ciphertext, error) {
		return eval.AddScalar(ct[0], c)
	})
}

// AddScalarInplace sets a to a + c.
func (r *Registry) AddScalarInplace(evh, a Handle, c uint64) Result {
	return r.mutate(evh, []Handle{a}, func(eval *torus.Evaluator, ct []*torus.Ciphertext) error {
		return eval.AddScalarInplace(ct[0], c)
	})
}

// MulScalar returns a new ciphertext of a * c.
func (r *Registry) MulScalar(evh, a Handle, c uint64) (Handle, Result) {
	return r.produce(evh, []Handle{a}, func(eval *torus.Evaluator, ct []*torus.Ciphertext) (*torus.Ciphertext, error) {
		return eval.MulScalar(ct[0], c)
	})
}

// MulScalarInplace sets a to a * c.
func (r *Registry) MulScalarInplace(evh, a Handle, c uint64) Result {
	return r.mutate(evh, []Handle{a}, func(eval *torus.Evaluator, ct []*torus.Ciphertext) error {
		return eval.MulScalarInplace(ct[0], c)
	})
}

// MulAndBootstrap returns a new ciphertext of a * b.
func (r *Registry) MulAndBootstrap(evh, a, b Handle) (Handle, Result) {
	return r.produce(evh, []Handle{a, b}, func(eval *torus.Evaluator, ct []*torus.Ciphertext) (*torus.Ciphertext, error) {
		return eval.MulAndBootstrap(ct[0], ct[1])
	})
}

// Relu returns a new ciphertext of max(a, 0).
func (r *Registry) Relu(evh, a Handle) (Handle, Result) {
	return r.produce(evh, []Handle{a}, func(eval *torus.Evaluator, ct []*torus.Ciphertext) (*torus.Ciphertext, error) {
		return eval.Relu(ct[0])
	})
}

// Refresh returns a new ciphertext of a with fresh noise.
func (r *Registry) Refresh(evh, a Handle) (Handle, Result) {
	return r.produce(evh, []Handle{a}, func(eval *torus.Evaluator, ct []*torus.Ciphertext) (*torus.Ciphertext, error) {
		return eval.Refresh(ct[0])
	})
}

// BootstrapWithFunction returns a new ciphertext of fn(a). A panic in fn is
// reported as a crypto result.
func (r *Registry) BootstrapWithFunction(evh, a Handle, fn func(uint64) uint64) (Handle, Result) {
	return r.produce(evh, []Handle{a}, func(eval *torus.Evaluator, ct []*torus.Ciphertext) (*torus.Ciphertext, error) {
		return eval.BootstrapWithFunction(ct[0], fn)
	})
}

// ========== Ciphertext ==========

// CiphertextClone returns an independent copy of cth.
func (r *Registry) CiphertextClone(cth Handle) (h Handle, res Result) {
	defer recoverResult(&res)

	ct, found := lookup[*torus.Ciphertext](r, cth)
	if !found {
		return 0, handleError(cth, "ciphertext")
	}
	return r.put(ct.Clone(), nil), okResult
}

// CiphertextSerialize returns the wire form of cth.
func (r *Registry) CiphertextSerialize(cth Handle) (data []byte, res Result) {
	defer recoverResult(&res)

	ct, found := lookup[*torus.Ciphertext](r, cth)
	if !found {
		return nil, handleError(cth, "ciphertext")
	}
	data, err := ct.MarshalBinary()
	if err != nil {
		return nil, resultOf(err)
	}
	return data, okResult
}

// CiphertextDeserialize registers a ciphertext decoded from data.
func (r *Registry) CiphertextDeserialize(data []byte) (h Handle, res Result) {
	defer recoverResult(&res)

	ct := new(torus.Ciphertext)
	if err := ct.UnmarshalBinary(data); err != nil {
		return 0, resultOf(err)
	}
	return r.put(ct, nil), okResult
}
