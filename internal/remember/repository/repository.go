package repository

import (
	"context"
	"time"

	"authcore/internal/remember/domain"
)

// Repository is the token ledger persistence interface.
//
// Lookup methods return (nil, nil) when no row matches; an error means a
// database failure. At most one row exists per (user_id, series_hash).
type Repository interface {
	Create(ctx context.Context, t *domain.Token) error

	// FindBySeries returns the row for the user's lineage. The caller
	// compares the presented token digest against the row's in constant time;
	// a mismatch on a live lineage is the signature of a replayed superseded
	// cookie.
	FindBySeries(ctx context.Context, userID, seriesHash string) (*domain.Token, error)

	// Rotate replaces the row's token digest and rotation timestamp in place;
	// the series is untouched.
	Rotate(ctx context.Context, id, newTokenHash string, at time.Time) error

	// DeleteByUserAndSeries removes a single lineage.
	DeleteByUserAndSeries(ctx context.Context, userID, seriesHash string) error
	// DeleteAllForUser removes every lineage for the user in one statement.
	DeleteAllForUser(ctx context.Context, userID string) error
	// DeleteCreatedBefore removes all rows, across all users, whose rotation
	// timestamp is older than cutoff. Returns the number of rows removed.
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
