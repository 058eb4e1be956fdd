package apikeys

import (
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

const (
	// KeyLength is the length of the generated API key in bytes (32 bytes = 64 hex chars)
	KeyLength = 32
	// KeyPrefixLength is the number of characters to store as prefix for identification
	KeyPrefixLength = 8

	// MaxSecretBytes is the bcrypt input limit. Secrets longer than this are
	// truncated to the same byte boundary at both hash and verify time; the
	// two paths must never use different boundaries or verification of long
	// secrets silently breaks. Fixed at 72 permanently.
	MaxSecretBytes = 72
)

// GenerateKey generates a new random API key secret
func GenerateKey() (string, error) {
	bytes := make([]byte, KeyLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// truncateSecret caps the secret at MaxSecretBytes. Byte-oriented, so the
// hash and verify paths agree regardless of where rune boundaries fall.
func truncateSecret(secret string) []byte {
	b := []byte(secret)
	if len(b) > MaxSecretBytes {
		b = b[:MaxSecretBytes]
	}
	return b
}

// HashKey hashes an API key secret with bcrypt
func HashKey(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(truncateSecret(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckKey compares a presented secret against a stored bcrypt hash
func CheckKey(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), truncateSecret(secret)) == nil
}
