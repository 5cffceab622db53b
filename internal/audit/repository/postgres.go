package repository

import (
	"context"
	"database/sql"

	"authcore/internal/audit/domain"
)

// PostgresRepository persists auth events in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an auth event repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, e *domain.Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_events (id, user_id, email, action, ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, stringToNullString(e.UserID), e.Email, e.Action, e.IP, e.CreatedAt,
	)
	return err
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, email, action, ip, created_at
		FROM auth_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var e domain.Event
		var uid sql.NullString
		if err := rows.Scan(&e.ID, &uid, &e.Email, &e.Action, &e.IP, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.UserID = uid.String
		out = append(out, &e)
	}
	return out, rows.Err()
}

func stringToNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
