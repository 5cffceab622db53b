// Package auth orchestrates interactive logins: credential verification,
// lockout, confirmation, activity tracking, session issuance, and remember-me
// opt-in.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"authcore/internal/lockout"
	"authcore/internal/security"
	"authcore/internal/user/domain"
)

// Sentinel errors for login outcomes; the HTTP layer maps them to responses.
var (
	// ErrInvalidCredentials covers both unknown identity and wrong password,
	// deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is produced only by the lockout state machine.
	ErrAccountLocked = errors.New("account locked")
	// ErrUnconfirmed means the account has not completed confirmation.
	ErrUnconfirmed = errors.New("account not confirmed")
)

// dummyPasswordHash is a bcrypt hash of a throwaway value, compared against
// on unknown-identity logins to equalize timing with the known-identity path.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// UserRepo is the minimal user repository needed by the session authenticator.
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	UpdateTracking(ctx context.Context, id string, tr domain.Tracking) error
}

// Rememberer is the persistent-login issuance/teardown surface consumed on
// login and logout.
type Rememberer interface {
	CreateLogin(ctx context.Context, u *domain.User) (string, error)
	InvalidateAll(ctx context.Context, userID string) error
}

// Options selects which optional capabilities are active.
type Options struct {
	ConfirmableEnabled  bool
	TrackableEnabled    bool
	RememberableEnabled bool
}

// LoginResult holds the outcome of a successful login.
type LoginResult struct {
	User             *domain.User
	SessionToken     string
	SessionExpiresAt time.Time
	// RememberCookie is the plaintext remember-cookie value to set, or empty
	// when the caller did not opt in (or rememberable is disabled).
	RememberCookie string
}

// Service implements the interactive login and logout flows.
type Service struct {
	users    UserRepo
	lockout  *lockout.Machine
	remember Rememberer
	hasher   *security.Hasher
	tokens   *security.SessionTokenProvider
	opts     Options
	logger   *slog.Logger
	nowF     func() time.Time
}

// NewService returns a session authenticator with the given dependencies.
// remember may be nil when rememberable is disabled.
func NewService(
	users UserRepo,
	lockoutMachine *lockout.Machine,
	remember Rememberer,
	hasher *security.Hasher,
	tokens *security.SessionTokenProvider,
	opts Options,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:    users,
		lockout:  lockoutMachine,
		remember: remember,
		hasher:   hasher,
		tokens:   tokens,
		opts:     opts,
		logger:   logger,
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// Login authenticates email/password. On success it resets the failure
// counter, records sign-in activity, optionally opens a remember-me lineage,
// and issues a session token. The first matching rejection wins: unknown
// identity and wrong password are the same error; a wrong password that trips
// the lockout threshold reports the lock instead; a locked account rejects
// even a correct password.
func (s *Service) Login(ctx context.Context, email, password string, rememberMe bool, ip string) (*LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if user == nil {
		// Burn a comparison so response time does not reveal whether the
		// email exists.
		_ = s.hasher.Compare(dummyPasswordHash, []byte(password))
		return nil, ErrInvalidCredentials
	}

	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		if _, lockErr := s.lockout.RecordFailure(ctx, user); lockErr != nil {
			return nil, fmt.Errorf("locking account: %w", lockErr)
		}
		if s.lockout.IsLocked(user) {
			return nil, ErrAccountLocked
		}
		return nil, ErrInvalidCredentials
	}

	if s.opts.ConfirmableEnabled && !user.Confirmed {
		return nil, ErrUnconfirmed
	}

	if s.lockout.IsLocked(user) {
		return nil, ErrAccountLocked
	}

	s.lockout.RecordSuccess(ctx, user)
	s.trackSignIn(ctx, user, ip)

	result := &LoginResult{User: user}

	if rememberMe && s.opts.RememberableEnabled && s.remember != nil {
		cookieValue, err := s.remember.CreateLogin(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("opening persistent login: %w", err)
		}
		result.RememberCookie = cookieValue
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("issuing session token: %w", err)
	}
	result.SessionToken = token
	result.SessionExpiresAt = expiresAt

	return result, nil
}

// Logout closes the user's session: activity tracking is shifted to mark the
// session closed and every remember-me lineage is torn down.
func (s *Service) Logout(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}
	if user == nil {
		return nil
	}

	if s.opts.TrackableEnabled {
		tr := CloseTracking(user.TrackingFields())
		if err := s.users.UpdateTracking(ctx, user.ID, tr); err != nil {
			s.logger.Error("auth: persisting logout tracking", "user_id", user.ID, "error", err)
		} else {
			user.ApplyTracking(tr)
		}
	}

	if s.opts.RememberableEnabled && s.remember != nil {
		if err := s.remember.InvalidateAll(ctx, user.ID); err != nil {
			return err
		}
	}
	return nil
}

// trackSignIn shifts the previous session into the last_* fields, stamps the
// current session, and bumps the counter, persisted as one update. Tracking
// is bookkeeping: a persistence failure is logged and the login proceeds.
func (s *Service) trackSignIn(ctx context.Context, user *domain.User, ip string) {
	if !s.opts.TrackableEnabled {
		return
	}
	tr := NextTracking(user.TrackingFields(), s.nowF(), ip)
	if err := s.users.UpdateTracking(ctx, user.ID, tr); err != nil {
		s.logger.Error("auth: persisting sign-in tracking", "user_id", user.ID, "error", err)
		return
	}
	user.ApplyTracking(tr)
}

// NextTracking computes the activity-tracking update for a new sign-in. The
// previous most-recent session (current if present, else last, else the
// current moment as a bootstrap) shifts into last_*; current_* becomes now/ip.
func NextTracking(prev domain.Tracking, now time.Time, ip string) domain.Tracking {
	lastAt, lastIP := prev.CurrentSignInAt, prev.CurrentSignInIP
	if lastAt == nil {
		lastAt, lastIP = prev.LastSignInAt, prev.LastSignInIP
	}
	if lastAt == nil {
		lastAt, lastIP = &now, ip
	}
	return domain.Tracking{
		SignInCount:     prev.SignInCount + 1,
		CurrentSignInAt: &now,
		CurrentSignInIP: ip,
		LastSignInAt:    lastAt,
		LastSignInIP:    lastIP,
	}
}

// CloseTracking mirrors NextTracking in reverse for logout: the current
// session shifts into last_* and the current fields clear, marking the
// session closed.
func CloseTracking(prev domain.Tracking) domain.Tracking {
	lastAt, lastIP := prev.LastSignInAt, prev.LastSignInIP
	if prev.CurrentSignInAt != nil {
		lastAt, lastIP = prev.CurrentSignInAt, prev.CurrentSignInIP
	}
	return domain.Tracking{
		SignInCount:  prev.SignInCount,
		LastSignInAt: lastAt,
		LastSignInIP: lastIP,
	}
}
