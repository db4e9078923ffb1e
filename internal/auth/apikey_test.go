package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openhomelab/smartserver/internal/auth"
)

func TestHostKeyGenerator_GenerateHostKey(t *testing.T) {
	gen := auth.NewHostKeyGenerator()

	key, hash, err := gen.GenerateHostKey()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key, "hub_"))
	require.True(t, gen.ValidateKeyFormat(key))

	// The stored hash must match a fresh hash of the plaintext and never
	// contain the plaintext itself.
	require.Equal(t, gen.HashKey(key), hash)
	require.NotContains(t, hash, key)
	require.Len(t, hash, 64) // sha256, hex encoded
}

func TestHostKeyGenerator_KeysAreUnique(t *testing.T) {
	gen := auth.NewHostKeyGenerator()

	first, _, err := gen.GenerateHostKey()
	require.NoError(t, err)
	second, _, err := gen.GenerateHostKey()
	require.NoError(t, err)

	require.NotEqual(t, first, second)
}

func TestHostKeyGenerator_ValidateKeyFormat(t *testing.T) {
	gen := auth.NewHostKeyGenerator()

	require.False(t, gen.ValidateKeyFormat(""))
	require.False(t, gen.ValidateKeyFormat("hub_tooshort"))
	require.False(t, gen.ValidateKeyFormat(strings.Repeat("x", 120)))
}
