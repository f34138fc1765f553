package utils

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashSHA256 generates a SHA256 hash of the input string
func HashSHA256(input string) string {
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

// VerifyHash compares a plaintext credential against a stored SHA256
// hash in constant time.
func VerifyHash(plaintext, storedHash string) bool {
	providedHash := HashSHA256(plaintext)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
