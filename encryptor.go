// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fhegol

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/luxfi/lattice/v7/core/rlwe"
)

// Encryptor encrypts signed integers into ciphertexts
type Encryptor struct {
	params    Parameters
	mu        sync.Mutex
	encryptor *rlwe.Encryptor
}

// NewEncryptor creates a new encryptor from a public key
func NewEncryptor(params Parameters, pk *PublicKey) *Encryptor {
	return &Encryptor{
		params:    params,
		encryptor: rlwe.NewEncryptor(params.paramsRLWE, pk.PK),
	}
}

// encode places m mod t, scaled by Delta, in the constant coefficient.
func (enc *Encryptor) encode(m int64) *rlwe.Plaintext {
	pt := rlwe.NewPlaintext(enc.params.paramsRLWE, enc.params.paramsRLWE.MaxLevel())

	t := int64(enc.params.t)
	r := uint64(((m % t) + t) % t)
	pt.Value.Coeffs[0][0] = r * enc.params.Delta()

	enc.params.paramsRLWE.RingQ().NTT(pt.Value, pt.Value)
	return pt
}

// Encrypt encrypts m. Values are reduced into (-t/2, t/2].
func (enc *Encryptor) Encrypt(m int64) (*Ciphertext, error) {
	pt := enc.encode(m)
	ct := rlwe.NewCiphertext(enc.params.paramsRLWE, 1, enc.params.paramsRLWE.MaxLevel())

	// rlwe.Encryptor keeps sampler state and is not safe for concurrent use.
	enc.mu.Lock()
	err := enc.encryptor.Encrypt(pt, ct)
	enc.mu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, "encrypt")
	}

	return &Ciphertext{ct}, nil
}
