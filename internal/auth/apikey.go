package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	// KeyPrefix marks every key issued by this server.
	KeyPrefix = "dw_key_"
	// KeyLength is the number of random bytes behind the prefix.
	KeyLength = 24
)

// GenerateAPIKey returns a fresh API key. Only its hash is ever stored.
func GenerateAPIKey() (string, error) {
	raw := make([]byte, KeyLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("reading randomness: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(raw), nil
}

// HashAPIKey returns the hex SHA-256 digest persisted in place of the key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
