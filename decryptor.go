// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fhegol

import (
	"math/bits"
	"sync"

	"github.com/luxfi/lattice/v7/core/rlwe"
	"github.com/luxfi/lattice/v7/ring"
)

// Decryptor decrypts ciphertexts to signed integers
type Decryptor struct {
	params    Parameters
	mu        sync.Mutex
	decryptor *rlwe.Decryptor
	ringQ     *ring.Ring
}

// NewDecryptor creates a new decryptor from secret key
func NewDecryptor(params Parameters, sk *SecretKey) *Decryptor {
	return &Decryptor{
		params:    params,
		decryptor: rlwe.NewDecryptor(params.paramsRLWE, sk.SK),
		ringQ:     params.paramsRLWE.RingQ(),
	}
}

// Decrypt decrypts a ciphertext to an integer in (-t/2, t/2].
// The ciphertext must have been checked with Parameters.check.
func (dec *Decryptor) Decrypt(ct *Ciphertext) int64 {
	pt := rlwe.NewPlaintext(dec.params.paramsRLWE, ct.Level())

	dec.mu.Lock()
	dec.decryptor.Decrypt(ct.Ciphertext, pt)
	dec.mu.Unlock()

	if pt.IsNTT {
		dec.ringQ.INTT(pt.Value, pt.Value)
	}

	return dec.params.decode(pt.Value.Coeffs[0][0])
}

// decode computes round(c*t/Q) mod t and centres it.
func (p Parameters) decode(c uint64) int64 {
	q, t := p.Q(), p.t

	// c < Q and t < Q, so the 128-bit product stays below Q^2 and the
	// high word below Q, which is what Div64 requires.
	hi, lo := bits.Mul64(c, t)
	lo, carry := bits.Add64(lo, q>>1, 0)
	hi += carry
	v, _ := bits.Div64(hi, lo, q)
	v %= t

	if v > t/2 {
		return int64(v) - int64(t)
	}
	return int64(v)
}
