// Package fhegol implements the additively homomorphic integer scheme used to
// evolve an encrypted Game of Life grid.
//
// Each cell value is a small signed integer encrypted on its own as the
// constant coefficient of an RLWE plaintext, scaled by Q/t. Adding two
// ciphertexts adds the underlying integers modulo t, which is all the
// evaluating party ever needs to do.
//
// This implementation is built on luxfi/lattice primitives:
//   - RLWE public-key encryption of scaled constants
//   - Ring addition for key-free evaluation
//
// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause
package fhegol

import (
	"github.com/cockroachdb/errors"
	"github.com/luxfi/lattice/v7/core/rlwe"
)

// Parameters defines the scheme parameter set
type Parameters struct {
	paramsRLWE rlwe.Parameters
	// t is the plaintext modulus; values live in (-t/2, t/2]
	t uint64
}

// ParametersLiteral is a user-friendly parameter specification
type ParametersLiteral struct {
	// LogN is log2 of the ring degree
	LogN int
	// Q is the ciphertext modulus, an NTT-friendly prime (Q = 1 mod 2N)
	Q uint64
	// PlaintextModulus bounds the encoded integers
	PlaintextModulus uint64
}

// Standard parameter sets
var (
	// PN10QP27 is the default set. N=1024, Q=134215681, t=256.
	// t matches the 8-bit plaintext modulus the protocol was designed with;
	// sums of two encoded cells stay in [-2, 3].
	PN10QP27 = ParametersLiteral{
		LogN:             10,
		Q:                0x7fff801,
		PlaintextModulus: 1 << 8,
	}

	// PN11QP54 trades speed for a much larger noise margin.
	// N=2048, Q=~2^54, t=256.
	PN11QP54 = ParametersLiteral{
		LogN:             11,
		Q:                0x3FFFFFFFFFC0001,
		PlaintextModulus: 1 << 8,
	}
)

// NewParametersFromLiteral creates Parameters from a literal specification
func NewParametersFromLiteral(lit ParametersLiteral) (params Parameters, err error) {
	if lit.PlaintextModulus < 4 {
		return params, errors.Newf("plaintext modulus %d too small", lit.PlaintextModulus)
	}
	if lit.PlaintextModulus >= lit.Q {
		return params, errors.Newf("plaintext modulus %d not below Q=%d", lit.PlaintextModulus, lit.Q)
	}

	params.paramsRLWE, err = rlwe.NewParametersFromLiteral(rlwe.ParametersLiteral{
		LogN:    lit.LogN,
		Q:       []uint64{lit.Q},
		NTTFlag: true,
	})
	if err != nil {
		return params, errors.Wrap(err, "rlwe parameters")
	}
	params.t = lit.PlaintextModulus

	return params, nil
}

// N returns the ring degree
func (p Parameters) N() int {
	return p.paramsRLWE.N()
}

// Q returns the ciphertext modulus
func (p Parameters) Q() uint64 {
	return p.paramsRLWE.Q()[0]
}

// PlaintextModulus returns t
func (p Parameters) PlaintextModulus() uint64 {
	return p.t
}

// Delta returns the scaling factor floor(Q/t)
func (p Parameters) Delta() uint64 {
	return p.Q() / p.t
}

// SecretKey is held by the client only
type SecretKey struct {
	SK *rlwe.SecretKey
}

// PublicKey encrypts without revealing the secret key
type PublicKey struct {
	PK *rlwe.PublicKey
}

// Ciphertext wraps an RLWE ciphertext encrypting one integer
type Ciphertext struct {
	*rlwe.Ciphertext
}

// KeyGenerator generates keys
type KeyGenerator struct {
	params Parameters
	kgen   *rlwe.KeyGenerator
}

// NewKeyGenerator creates a new key generator
func NewKeyGenerator(params Parameters) *KeyGenerator {
	return &KeyGenerator{
		params: params,
		kgen:   rlwe.NewKeyGenerator(params.paramsRLWE),
	}
}

// GenSecretKey generates a new secret key
func (kg *KeyGenerator) GenSecretKey() *SecretKey {
	return &SecretKey{SK: kg.kgen.GenSecretKeyNew()}
}

// GenPublicKey generates a public key from a secret key
func (kg *KeyGenerator) GenPublicKey(sk *SecretKey) *PublicKey {
	return &PublicKey{PK: kg.kgen.GenPublicKeyNew(sk.SK)}
}

// GenKeyPair generates both a secret key and corresponding public key
func (kg *KeyGenerator) GenKeyPair() (*SecretKey, *PublicKey) {
	sk := kg.GenSecretKey()
	pk := kg.GenPublicKey(sk)
	return sk, pk
}
