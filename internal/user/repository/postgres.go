package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"authcore/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, password_hash, confirmed, failed_attempts, locked_at,
	sign_in_count, current_sign_in_at, current_sign_in_ip, last_sign_in_at, last_sign_in_ip,
	created_at, updated_at`

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// Create persists the user. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, confirmed, failed_attempts, locked_at,
			sign_in_count, current_sign_in_at, current_sign_in_ip, last_sign_in_at, last_sign_in_ip,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		u.ID, u.Email, u.PasswordHash, u.Confirmed, u.FailedAttempts, timeToNullTime(u.LockedAt),
		u.SignInCount, timeToNullTime(u.CurrentSignInAt), stringToNullString(u.CurrentSignInIP),
		timeToNullTime(u.LastSignInAt), stringToNullString(u.LastSignInIP),
		u.CreatedAt, u.UpdatedAt,
	)
	return err
}

// IncrementFailedAttempts atomically bumps failed_attempts and returns the new value.
func (r *PostgresRepository) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		UPDATE users SET failed_attempts = failed_attempts + 1, updated_at = $2
		WHERE id = $1
		RETURNING failed_attempts`,
		id, time.Now().UTC(),
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ResetFailedAttempts sets failed_attempts back to zero.
func (r *PostgresRepository) ResetFailedAttempts(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET failed_attempts = 0, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC(),
	)
	return err
}

// Lock stamps locked_at = at unless the account is already locked.
func (r *PostgresRepository) Lock(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET locked_at = COALESCE(locked_at, $2), updated_at = $3 WHERE id = $1`,
		id, at, time.Now().UTC(),
	)
	return err
}

// Unlock clears locked_at and failed_attempts.
func (r *PostgresRepository) Unlock(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET locked_at = NULL, failed_attempts = 0, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC(),
	)
	return err
}

// UpdateTracking persists the activity-tracking fields as one update.
func (r *PostgresRepository) UpdateTracking(ctx context.Context, id string, tr domain.Tracking) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET sign_in_count = $2,
			current_sign_in_at = $3, current_sign_in_ip = $4,
			last_sign_in_at = $5, last_sign_in_ip = $6,
			updated_at = $7
		WHERE id = $1`,
		id, tr.SignInCount,
		timeToNullTime(tr.CurrentSignInAt), stringToNullString(tr.CurrentSignInIP),
		timeToNullTime(tr.LastSignInAt), stringToNullString(tr.LastSignInIP),
		time.Now().UTC(),
	)
	return err
}

// MarkConfirmed flags the account as confirmed.
func (r *PostgresRepository) MarkConfirmed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET confirmed = TRUE, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC(),
	)
	return err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u               domain.User
		lockedAt        sql.NullTime
		currentSignInAt sql.NullTime
		currentSignInIP sql.NullString
		lastSignInAt    sql.NullTime
		lastSignInIP    sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Confirmed, &u.FailedAttempts, &lockedAt,
		&u.SignInCount, &currentSignInAt, &currentSignInIP, &lastSignInAt, &lastSignInIP,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.LockedAt = nullTimeToTime(lockedAt)
	u.CurrentSignInAt = nullTimeToTime(currentSignInAt)
	u.CurrentSignInIP = currentSignInIP.String
	u.LastSignInAt = nullTimeToTime(lastSignInAt)
	u.LastSignInIP = lastSignInIP.String
	return &u, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func stringToNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
