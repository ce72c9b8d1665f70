package security

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// KeyPrefix marks issued API keys so they're recognizable in configs
// and logs without storing the plain value anywhere.
const KeyPrefix = "uf_"

// NewAPIKey returns a fresh key in plain form. Only its digest ever
// reaches the database.
func NewAPIKey() (string, error) {
	id, err := gonanoid.New(20)
	if err != nil {
		return "", fmt.Errorf("failed to generate api key, %w", err)
	}

	return KeyPrefix + id, nil
}

// HashAPIKey digests a key for storage and lookup. SHA-256 instead of a
// salted KDF because keys are random, not user-chosen, and lookups must
// be by exact digest.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
