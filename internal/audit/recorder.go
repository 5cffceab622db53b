// Package audit persists a best-effort trail of authentication events:
// logins, failures, lockouts, logouts, and remember-token theft.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"authcore/internal/audit/domain"
	auditrepo "authcore/internal/audit/repository"
)

// Recorder writes auth events through the repository. A nil Recorder is a
// no-op, so callers need no enabled check of their own. Recording is
// best-effort: failures are logged and do not affect the caller.
type Recorder struct {
	repo   auditrepo.Repository
	logger *slog.Logger
	nowF   func() time.Time
}

// NewRecorder returns a Recorder persisting to repo.
func NewRecorder(repo auditrepo.Repository, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{repo: repo, logger: logger, nowF: func() time.Time { return time.Now().UTC() }}
}

// Record writes one auth event. userID may be empty when the event never
// resolved to an account.
func (r *Recorder) Record(ctx context.Context, userID, email, action, ip string) {
	if r == nil || r.repo == nil {
		return
	}
	event := &domain.Event{
		ID:        uuid.New().String(),
		UserID:    userID,
		Email:     email,
		Action:    action,
		IP:        ip,
		CreatedAt: r.nowF(),
	}
	if err := r.repo.Create(ctx, event); err != nil {
		r.logger.Error("audit: recording event", "action", action, "error", err)
	}
}

// RecentByUser returns the user's trail, newest first. On a nil Recorder it
// returns no events, matching Record's no-op behavior.
func (r *Recorder) RecentByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.Event, error) {
	if r == nil || r.repo == nil {
		return nil, nil
	}
	return r.repo.ListByUser(ctx, userID, limit, offset)
}
