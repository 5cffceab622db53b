package domain

import "time"

// Actions recorded in the auth event trail.
const (
	ActionLoginSuccess  = "login_success"
	ActionLoginFailure  = "login_failure"
	ActionAccountLocked = "account_locked"
	ActionLogout        = "logout"
	ActionRememberTheft = "remember_token_theft"
)

// Event represents one authentication event.
type Event struct {
	ID string
	// UserID is empty when the event never resolved to an account
	// (e.g. a login failure for an unknown email).
	UserID string
	// Email is the identity as presented by the client.
	Email     string
	Action    string
	IP        string
	CreatedAt time.Time
}
