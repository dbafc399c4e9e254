// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package bgv

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/fhegol/he"
)

func TestContext(t *testing.T) {
	ctx, err := NewDefaultContext()
	require.NoError(t, err)

	t.Run("EncryptDecrypt", func(t *testing.T) {
		for _, v := range []int64{-2, 0, 1, 2, 3} {
			ct, err := ctx.Encrypt(v)
			require.NoError(t, err)
			got, err := ctx.Decrypt(ct)
			require.NoError(t, err)
			assert.Equal(t, v, got)
		}
	})

	t.Run("Add", func(t *testing.T) {
		a, err := ctx.Encrypt(1)
		require.NoError(t, err)
		b, err := ctx.Encrypt(-2)
		require.NoError(t, err)

		sum, err := ctx.Public().Add(a, b)
		require.NoError(t, err)
		got, err := ctx.Decrypt(sum)
		require.NoError(t, err)
		assert.Equal(t, int64(-1), got)
	})

	t.Run("Serialization", func(t *testing.T) {
		ct, err := ctx.Encrypt(2)
		require.NoError(t, err)
		blob, err := he.MarshalGrid([]he.Ciphertext{ct, ct})
		require.NoError(t, err)

		back, err := he.UnmarshalGrid(ctx.Public(), blob)
		require.NoError(t, err)
		require.Len(t, back, 2)
		got, err := ctx.Decrypt(back[1])
		require.NoError(t, err)
		assert.Equal(t, int64(2), got)
	})

	t.Run("Foreign", func(t *testing.T) {
		_, err := ctx.Public().UnmarshalCiphertext([]byte("not a ciphertext"))
		assert.True(t, errors.Is(err, he.ErrForeignCiphertext))
	})
}
