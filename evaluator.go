// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fhegol

import (
	"github.com/cockroachdb/errors"
	"github.com/luxfi/lattice/v7/core/rlwe"
	"github.com/luxfi/lattice/v7/ring"

	"github.com/luxfi/fhegol/he"
)

// Evaluator adds encrypted integers.
// SECURITY: This evaluator does NOT hold any key. It only needs the
// parameters to perform ring arithmetic on ciphertexts.
type Evaluator struct {
	params Parameters
	ringQ  *ring.Ring
}

// NewEvaluator creates a key-free evaluator
func NewEvaluator(params Parameters) *Evaluator {
	return &Evaluator{
		params: params,
		ringQ:  params.paramsRLWE.RingQ(),
	}
}

// NewDefaultEvaluator creates a key-free evaluator for PN10QP27
func NewDefaultEvaluator() (*Evaluator, error) {
	params, err := NewParametersFromLiteral(PN10QP27)
	if err != nil {
		return nil, errors.Wrap(err, "create parameters")
	}
	return NewEvaluator(params), nil
}

// AddCiphertexts adds two ciphertexts polynomial-wise
func (eval *Evaluator) AddCiphertexts(ct1, ct2 *Ciphertext) (*Ciphertext, error) {
	if err := eval.params.check(ct1); err != nil {
		return nil, err
	}
	if err := eval.params.check(ct2); err != nil {
		return nil, err
	}
	if ct1.Level() != ct2.Level() || ct1.IsNTT != ct2.IsNTT {
		return nil, errors.Wrap(he.ErrForeignCiphertext, "operands at different level or domain")
	}

	result := rlwe.NewCiphertext(eval.params.paramsRLWE, 1, ct1.Level())

	eval.ringQ.Add(ct1.Value[0], ct2.Value[0], result.Value[0])
	eval.ringQ.Add(ct1.Value[1], ct2.Value[1], result.Value[1])

	result.IsNTT = ct1.IsNTT

	return &Ciphertext{result}, nil
}

// Add implements he.Evaluator
func (eval *Evaluator) Add(a, b he.Ciphertext) (he.Ciphertext, error) {
	ct1, ok := a.(*Ciphertext)
	if !ok {
		return nil, errors.Wrapf(he.ErrForeignCiphertext, "lhs is %T", a)
	}
	ct2, ok := b.(*Ciphertext)
	if !ok {
		return nil, errors.Wrapf(he.ErrForeignCiphertext, "rhs is %T", b)
	}
	return eval.AddCiphertexts(ct1, ct2)
}

// UnmarshalCiphertext implements he.Evaluator
func (eval *Evaluator) UnmarshalCiphertext(data []byte) (he.Ciphertext, error) {
	ct := new(Ciphertext)
	if err := ct.UnmarshalBinary(data); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "unmarshal ciphertext"), he.ErrForeignCiphertext)
	}
	if err := eval.params.check(ct); err != nil {
		return nil, err
	}
	return ct, nil
}

// check rejects ciphertexts not produced under these parameters.
func (p Parameters) check(ct *Ciphertext) error {
	if ct == nil || ct.Ciphertext == nil {
		return errors.Wrap(he.ErrForeignCiphertext, "nil ciphertext")
	}
	if len(ct.Value) != 2 {
		return errors.Wrapf(he.ErrForeignCiphertext, "degree %d", len(ct.Value)-1)
	}
	if ct.Level() > p.paramsRLWE.MaxLevel() {
		return errors.Wrapf(he.ErrForeignCiphertext, "level %d", ct.Level())
	}
	for i := range ct.Value {
		if ct.Value[i].N() != p.N() {
			return errors.Wrapf(he.ErrForeignCiphertext, "ring degree %d, want %d", ct.Value[i].N(), p.N())
		}
	}
	return nil
}
