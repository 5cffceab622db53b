// Package remember implements the persistent "remember me" login protocol:
// per-lineage series/token issuance, single-use token rotation, replay (theft)
// detection, and age-based expiry.
package remember

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"authcore/internal/credcache"
	"authcore/internal/remember/domain"
	"authcore/internal/remember/repository"
	"authcore/internal/security"
	userdomain "authcore/internal/user/domain"
)

// Sentinel errors for remember-cookie validation; the HTTP layer maps them to responses.
var (
	// ErrTokenNotFound means the cookie references an unknown or expired
	// lineage. Not an attack: the caller proceeds as anonymous.
	ErrTokenNotFound = errors.New("remember token not found")
	// ErrTokenTheft means a superseded token was presented for a live
	// lineage: the signature of a replayed stolen cookie. Every lineage for
	// the user has been invalidated by the time this is returned.
	ErrTokenTheft = errors.New("remember token theft detected")
)

// UserStore is the minimal user lookup needed to resolve a validated cookie
// to an identity.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// Validation is the outcome of a successful remember-cookie validation.
type Validation struct {
	User *userdomain.User
	// CookieValue is the plaintext cookie the client should hold from now on.
	// After a ledger rotation it differs from the presented value; on a cache
	// hit it is the presented value unchanged.
	CookieValue string
	// Rotated is true when the ledger row was rotated (and the cookie must be
	// re-set on the response).
	Rotated bool
}

// Service is the remember-token authenticator over the token ledger and the
// credential cache.
type Service struct {
	ledger repository.Repository
	users  UserStore
	cache  credcache.Store
	maxAge time.Duration
	logger *slog.Logger
	nowF   func() time.Time
}

// NewService returns a remember-token authenticator. maxAge bounds the life
// of a token between rotations; rows older than that are swept on validation.
func NewService(ledger repository.Repository, users UserStore, cache credcache.Store, maxAge time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		ledger: ledger,
		users:  users,
		cache:  cache,
		maxAge: maxAge,
		logger: logger,
		nowF:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateLogin opens a new persistent-login lineage for the user and returns
// the plaintext cookie value to hand to the client. Each call creates an
// independent lineage (one per device/browser opt-in); existing lineages are
// untouched.
func (s *Service) CreateLogin(ctx context.Context, u *userdomain.User) (string, error) {
	series, err := security.NewSeries()
	if err != nil {
		return "", fmt.Errorf("generating series: %w", err)
	}
	token, err := security.NewToken()
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}

	now := s.nowF()
	row := &domain.Token{
		ID:             uuid.New().String(),
		UserID:         u.ID,
		SeriesHash:     security.HashToken(series),
		TokenHash:      security.HashToken(token),
		TokenCreatedAt: now,
		CreatedAt:      now,
	}
	if err := s.ledger.Create(ctx, row); err != nil {
		return "", fmt.Errorf("persisting remember token: %w", err)
	}

	return Cookie{UserID: u.ID, Series: series, Token: token}.String(), nil
}

// ValidateLogin validates a presented remember-cookie value.
//
// The credential cache is consulted first; a hit resolves the identity
// without touching the ledger. On a miss the ledger path runs: expiry sweep,
// series lookup, constant-time token comparison, then in-place rotation.
// Returns ErrTokenNotFound for unknown/expired lineages and ErrTokenTheft
// after a detected replay (all lineages and cached cookies for the user are
// purged before it is returned).
func (s *Service) ValidateLogin(ctx context.Context, cookieValue string) (*Validation, error) {
	cookie, err := ParseCookie(cookieValue)
	if err != nil {
		return nil, ErrTokenNotFound
	}

	if identity, ok := s.cache.Get(cookieValue); ok {
		user, err := s.users.GetByID(ctx, identity.UserID)
		if err != nil {
			return nil, fmt.Errorf("resolving cached identity: %w", err)
		}
		if user == nil {
			s.cache.Delete(cookieValue)
			return nil, ErrTokenNotFound
		}
		return &Validation{User: user, CookieValue: cookieValue}, nil
	}

	if n, err := s.ledger.DeleteCreatedBefore(ctx, s.nowF().Add(-s.maxAge)); err != nil {
		// The sweep is housekeeping; a failure must not abort validation.
		s.logger.Error("remember: expiry sweep", "error", err)
	} else if n > 0 {
		s.logger.Debug("remember: expiry sweep removed tokens", "count", n)
	}

	seriesHash := security.HashToken(cookie.Series)

	row, err := s.ledger.FindBySeries(ctx, cookie.UserID, seriesHash)
	if err != nil {
		return nil, fmt.Errorf("ledger lookup: %w", err)
	}
	if row == nil {
		return nil, ErrTokenNotFound
	}

	if !security.TokenHashEqual(cookie.Token, row.TokenHash) {
		// The lineage is live but its token was already consumed and rotated
		// away. Someone is replaying an old cookie; invalidate every lineage
		// and every cached cookie for the user.
		if err := s.ledger.DeleteAllForUser(ctx, cookie.UserID); err != nil {
			return nil, fmt.Errorf("invalidating lineages after theft: %w", err)
		}
		s.cache.DeleteUser(cookie.UserID)
		s.logger.Warn("remember: stale token presented, all persistent logins invalidated",
			"user_id", cookie.UserID, "series_hash", seriesHash)
		return nil, ErrTokenTheft
	}

	return s.rotate(ctx, cookie, row)
}

// rotate consumes the matched token: a fresh single-use secret replaces it in
// the same ledger row, the cache entry for the consumed cookie is evicted, and
// the new cookie value is cached against the resolved identity.
func (s *Service) rotate(ctx context.Context, cookie Cookie, row *domain.Token) (*Validation, error) {
	newToken, err := security.NewToken()
	if err != nil {
		return nil, fmt.Errorf("generating rotation token: %w", err)
	}

	// Rotation is the authoritative state change; a persistence failure here
	// surfaces rather than leaving a consumed token valid.
	if err := s.ledger.Rotate(ctx, row.ID, security.HashToken(newToken), s.nowF()); err != nil {
		return nil, fmt.Errorf("rotating remember token: %w", err)
	}

	user, err := s.users.GetByID(ctx, cookie.UserID)
	if err != nil {
		return nil, fmt.Errorf("resolving identity: %w", err)
	}
	if user == nil {
		return nil, ErrTokenNotFound
	}

	oldValue := cookie.String()
	cookie.Token = newToken
	newValue := cookie.String()

	s.cache.Delete(oldValue)
	s.cache.Put(newValue, credcache.Identity{UserID: user.ID, Email: user.Email})

	return &Validation{User: user, CookieValue: newValue, Rotated: true}, nil
}

// InvalidateAll deletes every persistent-login lineage for the user and
// evicts every cached cookie resolving to them. Called on logout.
func (s *Service) InvalidateAll(ctx context.Context, userID string) error {
	s.cache.DeleteUser(userID)
	if err := s.ledger.DeleteAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("deleting remember tokens: %w", err)
	}
	return nil
}

// SweepExpired removes all ledger rows older than the configured max age.
// The validation path already sweeps inline; this is exposed for deployments
// that prefer a periodic background sweep as well.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.ledger.DeleteCreatedBefore(ctx, s.nowF().Add(-s.maxAge))
}
