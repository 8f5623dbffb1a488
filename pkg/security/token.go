package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// MinTokenBytes is the smallest amount of entropy accepted for bearer tokens.
const MinTokenBytes = 16

// NewOpaqueToken returns a url-safe random token built from n random bytes.
func NewOpaqueToken(n int) (string, error) {
	if n < MinTokenBytes {
		return "", fmt.Errorf("token needs at least %d bytes, got %d", MinTokenBytes, n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// DigestToken returns the hex blake2b-256 digest stored in place of a bearer
// token, so a leaked table never yields usable links.
func DigestToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// TokenMatches compares a presented token against a stored digest in constant time.
func TokenMatches(token, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(DigestToken(token)), []byte(digest)) == 1
}
