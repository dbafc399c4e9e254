// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package he defines the encryption context consumed by the Game of Life
// protocol. A Context owns the keys and is held by the client; the key-free
// Evaluator view returned by Public is all the evaluating party ever sees.
package he

import (
	"github.com/cockroachdb/errors"
)

// ErrForeignCiphertext is returned when a ciphertext was not produced under
// the parameters of the context operating on it.
var ErrForeignCiphertext = errors.New("he: foreign or malformed ciphertext")

// Ciphertext is an opaque encryption of one integer.
type Ciphertext interface {
	MarshalBinary() ([]byte, error)
}

// Evaluator adds ciphertexts without access to the secret key.
type Evaluator interface {
	// Add returns an encryption of the sum of the two plaintexts.
	Add(a, b Ciphertext) (Ciphertext, error)
	// UnmarshalCiphertext decodes a ciphertext produced by MarshalBinary.
	UnmarshalCiphertext(data []byte) (Ciphertext, error)
}

// Context is the process-wide encryption handle. Encrypt folds plaintext
// encoding into encryption and Decrypt folds decoding into decryption, so
// callers only see signed integers.
type Context interface {
	Evaluator
	Encrypt(v int64) (Ciphertext, error)
	Decrypt(ct Ciphertext) (int64, error)
	// Public returns the key-free view handed to evaluators.
	Public() Evaluator
}
