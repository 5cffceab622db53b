package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"authcore/internal/remember/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a token ledger repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const tokenColumns = `id, user_id, series_hash, token_hash, token_created_at, created_at`

// Create persists the token row. The token must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.Token) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO remember_tokens (id, user_id, series_hash, token_hash, token_created_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.UserID, t.SeriesHash, t.TokenHash, t.TokenCreatedAt, t.CreatedAt,
	)
	return err
}

// FindBySeries returns the row matching (user_id, series_hash), or nil. The
// token digest is deliberately not part of the predicate; the service compares
// it in constant time.
func (r *PostgresRepository) FindBySeries(ctx context.Context, userID, seriesHash string) (*domain.Token, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+tokenColumns+` FROM remember_tokens
		WHERE user_id = $1 AND series_hash = $2`,
		userID, seriesHash,
	)
	return scanToken(row)
}

// Rotate replaces the token digest and rotation timestamp in place.
func (r *PostgresRepository) Rotate(ctx context.Context, id, newTokenHash string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE remember_tokens SET token_hash = $2, token_created_at = $3 WHERE id = $1`,
		id, newTokenHash, at,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteByUserAndSeries removes a single lineage.
func (r *PostgresRepository) DeleteByUserAndSeries(ctx context.Context, userID, seriesHash string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM remember_tokens WHERE user_id = $1 AND series_hash = $2`,
		userID, seriesHash,
	)
	return err
}

// DeleteAllForUser removes every lineage for the user in one bulk delete.
func (r *PostgresRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM remember_tokens WHERE user_id = $1`,
		userID,
	)
	return err
}

// DeleteCreatedBefore removes all rows older than cutoff, across all users.
func (r *PostgresRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM remember_tokens WHERE token_created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanToken(row *sql.Row) (*domain.Token, error) {
	var t domain.Token
	err := row.Scan(&t.ID, &t.UserID, &t.SeriesHash, &t.TokenHash, &t.TokenCreatedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}
