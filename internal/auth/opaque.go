package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

const opaqueTokenBytes = 32

// NewOpaqueToken returns a random URL-safe token and the SHA-256 hex digest
// under which it is stored. Only the digest is persisted.
func NewOpaqueToken() (raw, hash string, err error) {
	buf := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, HashOpaqueToken(raw), nil
}

// HashOpaqueToken digests a raw token for lookup.
func HashOpaqueToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
