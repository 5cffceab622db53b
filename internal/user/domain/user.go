package domain

import (
	"errors"
	"time"
)

// User is the core account entity. The authentication core reads and writes
// the credential, lockout, and tracking fields; everything else about an
// account lives outside this module.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	// Confirmed is true once the account confirmation workflow has completed.
	Confirmed bool

	// FailedAttempts counts consecutive failed password attempts.
	FailedAttempts int
	// LockedAt is non-nil once the account is locked. Locking is sticky;
	// clearing it is an out-of-band administrative action.
	LockedAt *time.Time

	// Sign-in activity tracking: the two most recent sessions.
	SignInCount     int
	CurrentSignInAt *time.Time
	CurrentSignInIP string
	LastSignInAt    *time.Time
	LastSignInIP    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tracking is the activity-tracking field set persisted as one update on
// login and logout.
type Tracking struct {
	SignInCount     int
	CurrentSignInAt *time.Time
	CurrentSignInIP string
	LastSignInAt    *time.Time
	LastSignInIP    string
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.FailedAttempts < 0 {
		return errors.New("failed attempts must not be negative")
	}
	return nil
}

// Locked reports whether the account is in the Locked state.
func (u *User) Locked() bool {
	return u.LockedAt != nil
}

// TrackingFields returns the user's current activity-tracking values.
func (u *User) TrackingFields() Tracking {
	return Tracking{
		SignInCount:     u.SignInCount,
		CurrentSignInAt: u.CurrentSignInAt,
		CurrentSignInIP: u.CurrentSignInIP,
		LastSignInAt:    u.LastSignInAt,
		LastSignInIP:    u.LastSignInIP,
	}
}

// ApplyTracking copies tr onto the user.
func (u *User) ApplyTracking(tr Tracking) {
	u.SignInCount = tr.SignInCount
	u.CurrentSignInAt = tr.CurrentSignInAt
	u.CurrentSignInIP = tr.CurrentSignInIP
	u.LastSignInAt = tr.LastSignInAt
	u.LastSignInIP = tr.LastSignInIP
}
