package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openhomelab/smartserver/internal/auth"
)

func TestPasswordHasher_RoundTrip(t *testing.T) {
	hasher := auth.NewPasswordHasher()

	encoded, err := hasher.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	ok, err := hasher.VerifyPassword("correct horse battery staple", encoded)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = hasher.VerifyPassword("wrong password", encoded)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPasswordHasher_SaltsDiffer(t *testing.T) {
	hasher := auth.NewPasswordHasher()

	first, err := hasher.HashPassword("same password")
	require.NoError(t, err)
	second, err := hasher.HashPassword("same password")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
}

func TestPasswordHasher_RejectsMalformedHash(t *testing.T) {
	hasher := auth.NewPasswordHasher()

	_, err := hasher.VerifyPassword("anything", "not-an-encoded-hash")
	require.Error(t, err)
}
