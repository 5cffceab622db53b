package domain

import "time"

// Token is one persistent-login ledger row: a single device/browser lineage
// for a user. The series identifies the lineage and never changes; the token
// digest is replaced on every successful validation.
type Token struct {
	ID     string
	UserID string
	// SeriesHash is the digest of the lineage's stable series identifier.
	SeriesHash string
	// TokenHash is the digest of the current single-use secret.
	TokenHash string
	// TokenCreatedAt is the time of the most recent rotation; the expiry
	// sweep removes rows older than the configured max age.
	TokenCreatedAt time.Time
	CreatedAt      time.Time
}
