package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a session token is malformed or invalid.
var ErrInvalidToken = errors.New("invalid token")

// SessionClaims holds JWT claims for the interactive session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// SessionTokenProvider issues and validates the short-lived session JWT that
// represents an established interactive session (HS256, shared secret).
type SessionTokenProvider struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewSessionTokenProvider returns a SessionTokenProvider signing with secret.
// issuer is set on claims and validated on parse.
func NewSessionTokenProvider(secret []byte, issuer string, ttl time.Duration) *SessionTokenProvider {
	return &SessionTokenProvider{secret: secret, issuer: issuer, ttl: ttl}
}

// Issue issues a session JWT for the given user. Returns the token string and
// its expiration time.
func (p *SessionTokenProvider) Issue(userID, email string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(p.ttl)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: email,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Validate parses and validates the session token (signature, exp, iss).
// Returns userID and email, or ErrInvalidToken.
func (p *SessionTokenProvider) Validate(tokenString string) (userID, email string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	})
	if err != nil {
		return "", "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return "", "", ErrInvalidToken
	}
	if claims.Issuer != p.issuer {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.Email, nil
}
