package life

import (
	"github.com/cockroachdb/errors"

	"github.com/luxfi/fhegol/he"
)

// Encrypter is the client half of he.Context used for encoding.
type Encrypter interface {
	Encrypt(v int64) (he.Ciphertext, error)
}

// Decrypter is the client half of he.Context used for decoding.
type Decrypter interface {
	Decrypt(ct he.Ciphertext) (int64, error)
}

// EncryptGrid encrypts every value on its own. Output index i always holds
// the encryption of values[i].
func EncryptGrid(enc Encrypter, values []int64) ([]he.Ciphertext, error) {
	cts := make([]he.Ciphertext, len(values))
	for i, v := range values {
		ct, err := enc.Encrypt(v)
		if err != nil {
			return nil, errors.Wrapf(err, "encrypt cell %d", i)
		}
		cts[i] = ct
	}
	return cts, nil
}

// DecryptGrid decrypts an N² ciphertext grid and thresholds each sum.
func DecryptGrid(dec Decrypter, cts []he.Ciphertext, n int) (*Grid, error) {
	if n < 1 || len(cts) != n*n {
		return nil, errors.Wrapf(ErrCountMismatch, "%d ciphertexts for dimension %d", len(cts), n)
	}
	g := NewGrid(n)
	for i, ct := range cts {
		v, err := dec.Decrypt(ct)
		if err != nil {
			return nil, errors.Wrapf(err, "decrypt cell %d", i)
		}
		g.cells[i] = Threshold(v)
	}
	return g, nil
}
