package repository

import (
	"context"
	"time"

	"authcore/internal/user/domain"
)

// Repository is the user persistence interface.
//
// Lookup methods return (nil, nil) when no row matches; an error means a
// database failure. The counter mutations are single atomic statements so
// concurrent requests for the same user cannot lose updates.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error

	// IncrementFailedAttempts atomically bumps the failed-attempt counter and
	// returns the post-increment value.
	IncrementFailedAttempts(ctx context.Context, id string) (int, error)
	// ResetFailedAttempts sets the failed-attempt counter back to zero.
	ResetFailedAttempts(ctx context.Context, id string) error
	// Lock stamps locked_at if it is not already set.
	Lock(ctx context.Context, id string, at time.Time) error
	// Unlock clears locked_at and the failed-attempt counter. Administrative;
	// nothing in the login path calls it.
	Unlock(ctx context.Context, id string) error

	// UpdateTracking persists the activity-tracking fields as one update.
	UpdateTracking(ctx context.Context, id string, tr domain.Tracking) error
	// MarkConfirmed flags the account as confirmed.
	MarkConfirmed(ctx context.Context, id string) error
}
