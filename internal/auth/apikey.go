package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

const hostKeyPrefix = "hub_"

type HostKeyGenerator struct{}

func NewHostKeyGenerator() *HostKeyGenerator {
	return &HostKeyGenerator{}
}

// GenerateHostKey creates a new gateway API key.
// Format: hub_<uuid>_<random_secret>. Only the hash is stored; the
// plaintext key is handed to the admin once at registration.
func (g *HostKeyGenerator) GenerateHostKey() (string, string, error) {
	id := uuid.New()

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate secret: %w", err)
	}
	secret := hex.EncodeToString(secretBytes)

	key := fmt.Sprintf("%s%s_%s", hostKeyPrefix, id.String(), secret)
	hash := g.HashKey(key)

	return key, hash, nil
}

// HashKey hashes a host API key for storage and lookup
func (g *HostKeyGenerator) HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// ValidateKeyFormat checks if the key has correct format
func (g *HostKeyGenerator) ValidateKeyFormat(key string) bool {
	if len(key) < len(hostKeyPrefix)+36+1+64 {
		return false
	}
	if key[:len(hostKeyPrefix)] != hostKeyPrefix {
		return false
	}
	return true
}
