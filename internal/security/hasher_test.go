package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNewHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).Cost)
	assert.Equal(t, bcrypt.MinCost, NewHasher(1).Cost)
	assert.Equal(t, bcrypt.MaxCost, NewHasher(99).Cost)
	assert.Equal(t, 12, NewHasher(12).Cost)
}

func TestHasher_HashAndMatch(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("Secret@123")
	require.NoError(t, err)
	assert.NotEqual(t, "Secret@123", hash)
	assert.True(t, h.Matches(hash, "Secret@123"))
	assert.False(t, h.Matches(hash, "Secret@124"))

	again, err := h.Hash("Secret@123")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "each hash carries its own salt")
}

func TestHasher_EmptyAndMalformed(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	_, err := h.Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
	assert.False(t, h.Matches("not-a-bcrypt-hash", "whatever"))
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "+84*******41", MaskPhone("+84397912441"))
	assert.Equal(t, "****", MaskPhone("+841"))
}

func TestHasher_RejectsPasswordOverBcryptLimit(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	_, err := h.Hash(strings.Repeat("a", MaxPasswordBytes))
	require.NoError(t, err)

	_, err = h.Hash(strings.Repeat("a", MaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}
