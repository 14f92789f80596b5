package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

const opaqueTokenSize = 32

// NewOpaqueToken returns a random URL-safe token and the digest to persist
// in its place.
func NewOpaqueToken() (raw, digest string, err error) {
	b := make([]byte, opaqueTokenSize)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}

	raw = base64.RawURLEncoding.EncodeToString(b)
	return raw, Digest(raw), nil
}

// Digest is the SHA-256 hex of a token. Lookups always go through it.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
