// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package he

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
)

// maxCiphertextSize bounds a single framed ciphertext so a corrupt length
// prefix cannot trigger a huge allocation.
const maxCiphertextSize = 1 << 26

// MarshalGrid frames an ordered ciphertext grid into one blob: a big-endian
// uint32 count followed by a uint32 length and the bytes of every element.
func MarshalGrid(cts []Ciphertext) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(cts))); err != nil {
		return nil, err
	}
	for i, ct := range cts {
		if ct == nil {
			return nil, errors.Newf("he: nil ciphertext at index %d", i)
		}
		data, err := ct.MarshalBinary()
		if err != nil {
			return nil, errors.Wrapf(err, "marshal ciphertext %d", i)
		}
		if err := binary.Write(&buf, binary.BigEndian, uint32(len(data))); err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

// UnmarshalGrid decodes a blob written by MarshalGrid, preserving order.
func UnmarshalGrid(ev Evaluator, data []byte) ([]Ciphertext, error) {
	r := bytes.NewReader(data)

	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, errors.Wrap(err, "read ciphertext count")
	}
	// Every element needs at least its 4-byte length prefix.
	if int64(count)*4 > int64(r.Len()) {
		return nil, errors.Newf("he: grid declares %d ciphertexts in %d bytes", count, r.Len())
	}

	cts := make([]Ciphertext, count)
	for i := range cts {
		var size uint32
		if err := binary.Read(r, binary.BigEndian, &size); err != nil {
			return nil, errors.Wrapf(err, "read length of ciphertext %d", i)
		}
		if size > maxCiphertextSize || int(size) > r.Len() {
			return nil, errors.Newf("he: ciphertext %d truncated (%d bytes declared)", i, size)
		}
		raw := make([]byte, size)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, errors.Wrapf(err, "read ciphertext %d", i)
		}
		ct, err := ev.UnmarshalCiphertext(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "unmarshal ciphertext %d", i)
		}
		cts[i] = ct
	}
	if r.Len() != 0 {
		return nil, errors.Newf("he: %d trailing bytes after ciphertext grid", r.Len())
	}
	return cts, nil
}
