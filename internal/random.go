package internal

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

// NewToken returns size random bytes from crypto/rand, base64url-encoded
// without padding.
func NewToken(size int) (string, error) {
	if size < 16 {
		return "", errors.New("token size must be >= 16 bytes")
	}
	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// TokensEqual compares two secrets in constant time. Empty values never match.
func TokensEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
