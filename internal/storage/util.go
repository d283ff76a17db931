package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

func generateID() string {
	return uuid.New().String()
}

// generateAPIKey mints a key with the dw_key_ prefix. The raw key is
// returned to the caller once; only its hash lands in the database.
func generateAPIKey() string {
	raw := make([]byte, 24)
	_, _ = rand.Read(raw)
	return "dw_key_" + hex.EncodeToString(raw)
}

func hashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
