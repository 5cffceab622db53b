// Package lockout implements the per-user failed-attempt lockout state machine.
//
// An account is Active until consecutive failed password attempts reach the
// configured threshold, at which point it transitions to Locked and stays
// Locked until an administrative unlock. The machine persists counter updates
// through single atomic statements on the user store; bookkeeping persistence
// failures are logged and swallowed so the primary auth decision is never
// blocked by them.
package lockout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"authcore/internal/user/domain"
)

// UserStore is the minimal user persistence needed by the lockout machine.
type UserStore interface {
	IncrementFailedAttempts(ctx context.Context, id string) (int, error)
	ResetFailedAttempts(ctx context.Context, id string) error
	Lock(ctx context.Context, id string, at time.Time) error
}

// Config holds lockout configuration.
type Config struct {
	Enabled bool
	// Threshold is the failed-attempt count at which the account locks.
	Threshold int
}

// Machine tracks failed login attempts and locks accounts at the threshold.
type Machine struct {
	store  UserStore
	config Config
	logger *slog.Logger
	nowF   func() time.Time
}

// NewMachine returns a lockout machine backed by the given user store.
func NewMachine(store UserStore, cfg Config, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{store: store, config: cfg, logger: logger, nowF: func() time.Time { return time.Now().UTC() }}
}

// RecordFailure increments the user's failed-attempt counter and locks the
// account when the post-increment count reaches the threshold. Returns true
// if this failure caused the transition into Locked. The in-memory user is
// updated to match. The counter is bookkeeping: a persistence failure there
// is logged, not retried. The lock itself is the authoritative state change,
// so failing to persist it is returned to the caller.
func (m *Machine) RecordFailure(ctx context.Context, u *domain.User) (bool, error) {
	if !m.config.Enabled {
		return false, nil
	}

	count, err := m.store.IncrementFailedAttempts(ctx, u.ID)
	if err != nil {
		m.logger.Error("lockout: persisting failed attempt", "user_id", u.ID, "error", err)
		count = u.FailedAttempts + 1
	}
	u.FailedAttempts = count

	if count < m.config.Threshold || u.LockedAt != nil {
		return false, nil
	}

	now := m.nowF()
	if err := m.store.Lock(ctx, u.ID, now); err != nil {
		return false, fmt.Errorf("persisting lock: %w", err)
	}
	u.LockedAt = &now
	return true, nil
}

// RecordSuccess resets the failed-attempt counter after a successful login.
// It never touches locked_at; unlocking is a separate administrative action.
func (m *Machine) RecordSuccess(ctx context.Context, u *domain.User) {
	if !m.config.Enabled || u.FailedAttempts == 0 {
		return
	}
	if err := m.store.ResetFailedAttempts(ctx, u.ID); err != nil {
		m.logger.Error("lockout: resetting failed attempts", "user_id", u.ID, "error", err)
	}
	u.FailedAttempts = 0
}

// IsLocked reports whether the account is Locked. Lockout is sticky: the
// machine never clears it, regardless of how much time has passed.
func (m *Machine) IsLocked(u *domain.User) bool {
	return m.config.Enabled && u.LockedAt != nil
}
