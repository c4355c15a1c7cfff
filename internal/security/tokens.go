// Package security holds helpers for secrets the dashboard persists.
package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken returns the hex SHA-256 of a bearer secret such as an invite
// token. Only the hash is stored; the raw value is shown once at creation.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
