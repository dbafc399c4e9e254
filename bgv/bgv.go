// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package bgv provides an he.Context backed by the lattigo BGV scheme.
//
// Every cell is still encrypted on its own: the value sits in slot 0 of a
// batched plaintext and the remaining slots are zero.
package bgv

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"

	"github.com/luxfi/fhegol/he"
)

// DefaultLiteral is sized for additions only: a single 54-bit modulus and no
// auxiliary modulus since no evaluation keys are generated.
var DefaultLiteral = bgv.ParametersLiteral{
	LogN:             11,
	LogQ:             []int{54},
	PlaintextModulus: 0x10001,
}

// Ciphertext wraps a BGV ciphertext encrypting one integer.
type Ciphertext struct {
	*rlwe.Ciphertext
}

// MarshalBinary serializes the ciphertext
func (ct *Ciphertext) MarshalBinary() ([]byte, error) {
	if ct.Ciphertext == nil {
		return nil, errors.New("marshal nil ciphertext")
	}
	return ct.Ciphertext.MarshalBinary()
}

// Evaluator is the key-free half of the context.
type Evaluator struct {
	params bgv.Parameters
	// bgv.Evaluator carries scratch buffers; each Add borrows a shallow copy.
	pool sync.Pool
}

// NewEvaluator creates an evaluator without evaluation keys.
func NewEvaluator(params bgv.Parameters) *Evaluator {
	base := bgv.NewEvaluator(params, nil)
	return &Evaluator{
		params: params,
		pool: sync.Pool{
			New: func() interface{} {
				return base.ShallowCopy()
			},
		},
	}
}

// Add implements he.Evaluator
func (e *Evaluator) Add(a, b he.Ciphertext) (he.Ciphertext, error) {
	ct1, err := e.own(a)
	if err != nil {
		return nil, err
	}
	ct2, err := e.own(b)
	if err != nil {
		return nil, err
	}

	eval := e.pool.Get().(*bgv.Evaluator)
	defer e.pool.Put(eval)

	sum, err := eval.AddNew(ct1.Ciphertext, ct2.Ciphertext)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "bgv add"), he.ErrForeignCiphertext)
	}
	return &Ciphertext{sum}, nil
}

// UnmarshalCiphertext implements he.Evaluator
func (e *Evaluator) UnmarshalCiphertext(data []byte) (he.Ciphertext, error) {
	ct := new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(data); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "unmarshal ciphertext"), he.ErrForeignCiphertext)
	}
	wrapped := &Ciphertext{ct}
	if _, err := e.own(wrapped); err != nil {
		return nil, err
	}
	return wrapped, nil
}

func (e *Evaluator) own(ct he.Ciphertext) (*Ciphertext, error) {
	c, ok := ct.(*Ciphertext)
	if !ok || c == nil || c.Ciphertext == nil {
		return nil, errors.Wrapf(he.ErrForeignCiphertext, "got %T", ct)
	}
	if c.Degree() != 1 || c.Level() > e.params.MaxLevel() {
		return nil, errors.Wrapf(he.ErrForeignCiphertext, "degree %d level %d", c.Degree(), c.Level())
	}
	if c.Value[0].N() != e.params.N() {
		return nil, errors.Wrapf(he.ErrForeignCiphertext, "ring degree %d, want %d", c.Value[0].N(), e.params.N())
	}
	return c, nil
}

// Context holds the BGV key pair and codecs.
type Context struct {
	params bgv.Parameters
	eval   *Evaluator

	mu  sync.Mutex
	ecd *bgv.Encoder
	enc *rlwe.Encryptor
	dec *rlwe.Decryptor
}

var _ he.Context = (*Context)(nil)

// NewContext generates a key pair for lit.
func NewContext(lit bgv.ParametersLiteral) (*Context, error) {
	params, err := bgv.NewParametersFromLiteral(lit)
	if err != nil {
		return nil, errors.Wrap(err, "bgv parameters")
	}

	sk, pk := rlwe.NewKeyGenerator(params).GenKeyPairNew()

	return &Context{
		params: params,
		eval:   NewEvaluator(params),
		ecd:    bgv.NewEncoder(params),
		enc:    rlwe.NewEncryptor(params, pk),
		dec:    rlwe.NewDecryptor(params, sk),
	}, nil
}

// NewDefaultContext generates keys for DefaultLiteral.
func NewDefaultContext() (*Context, error) {
	return NewContext(DefaultLiteral)
}

// Parameters returns the BGV parameters
func (c *Context) Parameters() bgv.Parameters { return c.params }

// Encrypt implements he.Context
func (c *Context) Encrypt(v int64) (he.Ciphertext, error) {
	values := make([]int64, c.params.MaxSlots())
	values[0] = v

	pt := bgv.NewPlaintext(c.params, c.params.MaxLevel())

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ecd.Encode(values, pt); err != nil {
		return nil, errors.Wrap(err, "encode")
	}
	ct, err := c.enc.EncryptNew(pt)
	if err != nil {
		return nil, errors.Wrap(err, "encrypt")
	}
	return &Ciphertext{ct}, nil
}

// Decrypt implements he.Context
func (c *Context) Decrypt(ct he.Ciphertext) (int64, error) {
	own, err := c.eval.own(ct)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	pt := c.dec.DecryptNew(own.Ciphertext)
	values := make([]int64, c.params.MaxSlots())
	if err := c.ecd.Decode(pt, values); err != nil {
		return 0, errors.Wrap(err, "decode")
	}
	return values[0], nil
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

// NewDefaultEvaluator returns the key-free evaluator for DefaultLiteral, for
// processes that never see a key.
func NewDefaultEvaluator() (*Evaluator, error) {
	params, err := bgv.NewParametersFromLiteral(DefaultLiteral)
	if err != nil {
		return nil, errors.Wrap(err, "bgv parameters")
	}
	return NewEvaluator(params), nil
}
