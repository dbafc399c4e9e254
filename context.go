// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fhegol

import (
	"github.com/cockroachdb/errors"

	"github.com/luxfi/fhegol/he"
)

// Context bundles keys, encryptor, decryptor and evaluator. It is created
// once per process and shared by reference; nothing in it is mutated after
// construction.
type Context struct {
	params Parameters
	sk     *SecretKey
	pk     *PublicKey
	enc    *Encryptor
	dec    *Decryptor
	eval   *Evaluator
}

var _ he.Context = (*Context)(nil)

// NewContext generates a fresh key pair for params.
func NewContext(params Parameters) *Context {
	sk, pk := NewKeyGenerator(params).GenKeyPair()
	return NewContextFromKeys(params, sk, pk)
}

// NewContextFromKeys builds a context around existing keys.
func NewContextFromKeys(params Parameters, sk *SecretKey, pk *PublicKey) *Context {
	return &Context{
		params: params,
		sk:     sk,
		pk:     pk,
		enc:    NewEncryptor(params, pk),
		dec:    NewDecryptor(params, sk),
		eval:   NewEvaluator(params),
	}
}

// NewDefaultContext generates keys for PN10QP27.
func NewDefaultContext() (*Context, error) {
	params, err := NewParametersFromLiteral(PN10QP27)
	if err != nil {
		return nil, errors.Wrap(err, "create parameters")
	}
	return NewContext(params), nil
}

// Parameters returns the parameter set
func (c *Context) Parameters() Parameters { return c.params }

// PublicKey returns the encryption key
func (c *Context) PublicKey() *PublicKey { return c.pk }

// Encrypt implements he.Context
func (c *Context) Encrypt(v int64) (he.Ciphertext, error) {
	ct, err := c.enc.Encrypt(v)
	if err != nil {
		return nil, err
	}
	return ct, nil
}

// Decrypt implements he.Context
func (c *Context) Decrypt(ct he.Ciphertext) (int64, error) {
	rct, ok := ct.(*Ciphertext)
	if !ok {
		return 0, errors.Wrapf(he.ErrForeignCiphertext, "got %T", ct)
	}
	if err := c.params.check(rct); err != nil {
		return 0, err
	}
	return c.dec.Decrypt(rct), nil
}

// Add implements he.Evaluator
func (c *Context) Add(a, b he.Ciphertext) (he.Ciphertext, error) {
	return c.eval.Add(a, b)
}

// UnmarshalCiphertext implements he.Evaluator
func (c *Context) UnmarshalCiphertext(data []byte) (he.Ciphertext, error) {
	return c.eval.UnmarshalCiphertext(data)
}

// Public returns the key-free evaluator.
func (c *Context) Public() he.Evaluator {
	return c.eval
}
