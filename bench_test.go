// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fhegol

import (
	"fmt"
	"testing"
)

// BenchmarkParameters benchmarks parameter set initialization
func BenchmarkParameters(b *testing.B) {
	for name, lit := range map[string]ParametersLiteral{"PN10QP27": PN10QP27, "PN11QP54": PN11QP54} {
		b.Run(name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := NewParametersFromLiteral(lit); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkKeyGeneration benchmarks key generation
func BenchmarkKeyGeneration(b *testing.B) {
	params, err := NewParametersFromLiteral(PN10QP27)
	if err != nil {
		b.Fatal(err)
	}
	kg := NewKeyGenerator(params)

	b.Run("SecretKey", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			kg.GenSecretKey()
		}
	})

	sk := kg.GenSecretKey()

	b.Run("PublicKey", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			kg.GenPublicKey(sk)
		}
	})
}

// BenchmarkCell benchmarks the per-cell operations of one generation
func BenchmarkCell(b *testing.B) {
	for _, lit := range []ParametersLiteral{PN10QP27, PN11QP54} {
		params, err := NewParametersFromLiteral(lit)
		if err != nil {
			b.Fatal(err)
		}
		sk, pk := NewKeyGenerator(params).GenKeyPair()
		enc := NewEncryptor(params, pk)
		dec := NewDecryptor(params, sk)
		eval := NewEvaluator(params)

		prefix := fmt.Sprintf("N=%d", params.N())

		b.Run(prefix+"/Encrypt", func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := enc.Encrypt(-2); err != nil {
					b.Fatal(err)
				}
			}
		})

		ct1, _ := enc.Encrypt(1)
		ct2, _ := enc.Encrypt(2)

		b.Run(prefix+"/Add", func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := eval.AddCiphertexts(ct1, ct2); err != nil {
					b.Fatal(err)
				}
			}
		})

		b.Run(prefix+"/Decrypt", func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				dec.Decrypt(ct1)
			}
		})

		b.Run(prefix+"/Marshal", func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := ct1.MarshalBinary(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
