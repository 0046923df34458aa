package utils

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA-256 hashing for tokens at rest
	"encoding/base64"
	"encoding/hex"
)

// RandomToken returns a url-safe string generated from n bytes of
// cryptographically secure random data.  It backs every opaque value the
// service hands out: download grant tokens (32 bytes, 256 bits), email
// verification tokens and public file identifiers.  If the random number
// generator fails, an error is returned.
func RandomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns the SHA-256 hash of a raw token as a hex string.
// Refresh tokens, verification tokens and download grant tokens are all
// stored hashed so that a leaked database dump cannot be replayed
// against the live service.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
