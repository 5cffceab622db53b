package security

import (
	"crypto/rand"
	"encoding/base64"
)

const (
	// seriesRawSize yields a 16-character base64url series identifier.
	seriesRawSize = 12
	// tokenRawSize yields a 32-character base64url single-use token.
	tokenRawSize = 24
)

// NewSeries returns a fresh random series identifier for a persistent-login
// lineage. The series is stable for the lineage's lifetime.
func NewSeries() (string, error) {
	return randomString(seriesRawSize)
}

// NewToken returns a fresh random single-use token. A new one is generated on
// every rotation.
func NewToken() (string, error) {
	return randomString(tokenRawSize)
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
