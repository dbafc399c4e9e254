// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fhegol

import (
	"github.com/cockroachdb/errors"
	"github.com/luxfi/lattice/v7/core/rlwe"
)

// ========== Key Serialization ==========

// MarshalBinary serializes the secret key to binary format
func (sk *SecretKey) MarshalBinary() ([]byte, error) {
	return sk.SK.MarshalBinary()
}

// UnmarshalBinary deserializes the secret key from binary format
func (sk *SecretKey) UnmarshalBinary(data []byte) error {
	sk.SK = new(rlwe.SecretKey)
	if err := sk.SK.UnmarshalBinary(data); err != nil {
		return errors.Wrap(err, "deserialize secret key")
	}
	return nil
}

// MarshalBinary serializes the public key to binary format
func (pk *PublicKey) MarshalBinary() ([]byte, error) {
	return pk.PK.MarshalBinary()
}

// UnmarshalBinary deserializes the public key from binary format
func (pk *PublicKey) UnmarshalBinary(data []byte) error {
	pk.PK = new(rlwe.PublicKey)
	if err := pk.PK.UnmarshalBinary(data); err != nil {
		return errors.Wrap(err, "deserialize public key")
	}
	return nil
}

// ========== Ciphertext Serialization ==========

// MarshalBinary serializes a ciphertext to binary format
func (ct *Ciphertext) MarshalBinary() ([]byte, error) {
	if ct.Ciphertext == nil {
		return nil, errors.New("marshal nil ciphertext")
	}
	return ct.Ciphertext.MarshalBinary()
}

// UnmarshalBinary deserializes a ciphertext from binary format
func (ct *Ciphertext) UnmarshalBinary(data []byte) error {
	ct.Ciphertext = new(rlwe.Ciphertext)
	return ct.Ciphertext.UnmarshalBinary(data)
}
