// internal/auth/password_test.go
package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	phc, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.Contains(t, phc, "$argon2id$")

	ok, err := VerifyPassword("correct horse battery staple", phc)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong password", phc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashesAreSalted(t *testing.T) {
	a, err := HashPassword("same input")
	require.NoError(t, err)
	b, err := HashPassword("same input")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	for _, phc := range []string{"", "plaintext", "$argon2i$v=19$m=1,t=1,p=1$xx$yy"} {
		_, err := VerifyPassword("pw", phc)
		assert.ErrorIs(t, err, ErrBadHash, "hash %q", phc)
	}
}
