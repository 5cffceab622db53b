package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// HashToken returns a SHA-256 digest of the raw series or token string,
// URL-safe base64 encoded. Only digests are ever persisted; the plaintext
// lives exclusively in the cookie held by the client.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// TokenHashEqual performs constant-time comparison of the provided raw value's
// digest with the stored digest. Returns true only if they match.
func TokenHashEqual(raw, storedHash string) bool {
	providedHash := HashToken(raw)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
