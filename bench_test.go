// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package torus

import (
	"testing"
)

// BenchmarkParameters benchmarks lattice parameter construction.
func BenchmarkParameters(b *testing.B) {
	for _, name := range []string{"PN10QP30", "PN11QP48", "PN11QP58"} {
		p := Presets[name]
		b.Run(name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := newLatticeParams(p); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkKeyGeneration benchmarks key generation
func BenchmarkKeyGeneration(b *testing.B) {
	kgen, err := NewKeyGenerator(PN10QP30)
	if err != nil {
		b.Fatal(err)
	}

	b.Run("SecretKey", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := kgen.GenerateOnlySK(); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("BootstrapKey", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, _, err := kgen.Generate(); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkLevelled(b *testing.B) {
	kgen, err := NewKeyGenerator(PN11QP58)
	if err != nil {
		b.Fatal(err)
	}
	sk, err := kgen.GenerateOnlySK()
	if err != nil {
		b.Fatal(err)
	}
	enc, err := NewEncryptor(sk, DefaultEncoding())
	if err != nil {
		b.Fatal(err)
	}
	dec, err := NewDecryptor(sk)
	if err != nil {
		b.Fatal(err)
	}
	eval, err := NewLevelledEvaluator(DefaultEncoding())
	if err != nil {
		b.Fatal(err)
	}
	x, err := enc.Encrypt(3)
	if err != nil {
		b.Fatal(err)
	}
	y, err := enc.Encrypt(4)
	if err != nil {
		b.Fatal(err)
	}

	b.Run("Encrypt", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := enc.Encrypt(uint64(i)); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Decrypt", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := dec.Decrypt(x); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Add", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := eval.Add(x, y); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("MulScalar", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := eval.MulScalar(x, 1000); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkBootstrap(b *testing.B) {
	if testing.Short() {
		b.Skip("bootstrapping key generation is slow")
	}
	kgen, err := NewKeyGenerator(PN11QP48)
	if err != nil {
		b.Fatal(err)
	}
	sk, pk, err := kgen.Generate()
	if err != nil {
		b.Fatal(err)
	}
	encoding := BootstrapEncoding()
	enc, err := NewEncryptor(sk, encoding)
	if err != nil {
		b.Fatal(err)
	}
	eval, err := NewEvaluator(pk, encoding)
	if err != nil {
		b.Fatal(err)
	}
	x, err := enc.Encrypt(1)
	if err != nil {
		b.Fatal(err)
	}

	b.Run("Refresh", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := eval.Refresh(x); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("MulAndBootstrap", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := eval.MulAndBootstrap(x, x); err != nil {
				b.Fatal(err)
			}
		}
	})
}
