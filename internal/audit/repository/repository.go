package repository

import (
	"context"

	"authcore/internal/audit/domain"
)

// Repository defines persistence for auth events.
type Repository interface {
	Create(ctx context.Context, e *domain.Event) error
	// ListByUser returns the user's events newest first, paginated by limit
	// and offset. Returns an error only on database failures.
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.Event, error)
}
