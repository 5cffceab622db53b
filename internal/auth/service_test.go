package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"authcore/internal/lockout"
	"authcore/internal/security"
	"authcore/internal/user/domain"
)

type memUserRepo struct {
	mu          sync.Mutex
	byID        map[string]*domain.User
	byEmail     map[string]*domain.User
	trackingErr error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: make(map[string]*domain.User), byEmail: make(map[string]*domain.User)}
}

func (r *memUserRepo) add(u *domain.User) {
	r.byID[u.ID] = u
	r.byEmail[u.Email] = u
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id], nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byEmail[email], nil
}

func (r *memUserRepo) UpdateTracking(ctx context.Context, id string, tr domain.Tracking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.trackingErr != nil {
		return r.trackingErr
	}
	if u, ok := r.byID[id]; ok {
		u.ApplyTracking(tr)
	}
	return nil
}

func (r *memUserRepo) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return 0, errors.New("no such user")
	}
	u.FailedAttempts++
	return u.FailedAttempts, nil
}

func (r *memUserRepo) ResetFailedAttempts(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u.FailedAttempts = 0
	}
	return nil
}

func (r *memUserRepo) Lock(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok && u.LockedAt == nil {
		u.LockedAt = &at
	}
	return nil
}

type stubRememberer struct {
	createCalls     int
	invalidateCalls int
	cookie          string
	err             error
}

func (s *stubRememberer) CreateLogin(ctx context.Context, u *domain.User) (string, error) {
	s.createCalls++
	return s.cookie, s.err
}

func (s *stubRememberer) InvalidateAll(ctx context.Context, userID string) error {
	s.invalidateCalls++
	return s.err
}

var testSessionSecret = []byte("0123456789abcdef0123456789abcdef")

type fixture struct {
	repo     *memUserRepo
	remember *stubRememberer
	svc      *Service
}

func newFixture(t *testing.T, opts Options, lockCfg lockout.Config) *fixture {
	t.Helper()
	repo := newMemUserRepo()
	machine := lockout.NewMachine(repo, lockCfg, nil)
	rem := &stubRememberer{cookie: "u1 series token"}
	hasher := security.NewHasher(4)
	tokens := security.NewSessionTokenProvider(testSessionSecret, "authcore-test", time.Hour)
	return &fixture{
		repo:     repo,
		remember: rem,
		svc:      NewService(repo, machine, rem, hasher, tokens, opts, nil),
	}
}

func (f *fixture) addUser(t *testing.T, id, email, password string, confirmed bool) *domain.User {
	t.Helper()
	hash, err := security.NewHasher(4).Hash([]byte(password))
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	u := &domain.User{ID: id, Email: email, PasswordHash: hash, Confirmed: confirmed}
	f.repo.add(u)
	return u
}

func defaultOpts() Options {
	return Options{ConfirmableEnabled: true, TrackableEnabled: true, RememberableEnabled: true}
}

func TestLogin_UnknownUser(t *testing.T) {
	f := newFixture(t, defaultOpts(), lockout.Config{Enabled: true, Threshold: 5})
	_, err := f.svc.Login(context.Background(), "nobody@example.com", "whatever", false, "1.2.3.4")
	if err != ErrInvalidCredentials {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestDummyPasswordHashIsWellFormed(t *testing.T) {
	// The unknown-identity path must run a real bcrypt comparison, so the
	// hash it compares against has to parse.
	err := bcrypt.CompareHashAndPassword([]byte(dummyPasswordHash), []byte("not the hashed value"))
	if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		t.Fatalf("dummy hash should parse and mismatch, got %v", err)
	}
}

func TestLogin_WrongPasswordCountsFailures(t *testing.T) {
	f := newFixture(t, defaultOpts(), lockout.Config{Enabled: true, Threshold: 5})
	u := f.addUser(t, "u1", "u1@example.com", "correct horse", true)

	for i := 1; i <= 4; i++ {
		_, err := f.svc.Login(context.Background(), "u1@example.com", "wrong", false, "1.2.3.4")
		if err != ErrInvalidCredentials {
			t.Fatalf("attempt %d: err = %v, want ErrInvalidCredentials", i, err)
		}
		if u.FailedAttempts != i {
			t.Errorf("attempt %d: FailedAttempts = %d, want %d", i, u.FailedAttempts, i)
		}
	}

	// Fifth bad password reaches the threshold.
	_, err := f.svc.Login(context.Background(), "u1@example.com", "wrong", false, "1.2.3.4")
	if err != ErrAccountLocked {
		t.Fatalf("fifth attempt: err = %v, want ErrAccountLocked", err)
	}
	if u.FailedAttempts != 5 {
		t.Errorf("FailedAttempts = %d, want 5", u.FailedAttempts)
	}
	if u.LockedAt == nil {
		t.Fatal("LockedAt should be set")
	}
}

func TestLogin_LockedDominatesPassword(t *testing.T) {
	f := newFixture(t, defaultOpts(), lockout.Config{Enabled: true, Threshold: 5})
	u := f.addUser(t, "u1", "u1@example.com", "correct horse", true)
	lockedAt := time.Now().UTC()
	u.LockedAt = &lockedAt

	// Correct password, still rejected.
	if _, err := f.svc.Login(context.Background(), "u1@example.com", "correct horse", false, "1.2.3.4"); err != ErrAccountLocked {
		t.Fatalf("correct password on locked account: err = %v, want ErrAccountLocked", err)
	}
	// Wrong password on a locked account also reports the lock.
	if _, err := f.svc.Login(context.Background(), "u1@example.com", "wrong", false, "1.2.3.4"); err != ErrAccountLocked {
		t.Fatalf("wrong password on locked account: err = %v, want ErrAccountLocked", err)
	}
}

func TestLogin_LockoutDisabled(t *testing.T) {
	f := newFixture(t, defaultOpts(), lockout.Config{Enabled: false, Threshold: 1})
	u := f.addUser(t, "u1", "u1@example.com", "correct horse", true)

	for i := 0; i < 10; i++ {
		if _, err := f.svc.Login(context.Background(), "u1@example.com", "wrong", false, "1.2.3.4"); err != ErrInvalidCredentials {
			t.Fatalf("err = %v, want ErrInvalidCredentials", err)
		}
	}
	if u.LockedAt != nil {
		t.Fatal("disabled lockout should never lock")
	}
}

func TestLogin_Unconfirmed(t *testing.T) {
	f := newFixture(t, defaultOpts(), lockout.Config{Enabled: true, Threshold: 5})
	f.addUser(t, "u1", "u1@example.com", "correct horse", false)

	if _, err := f.svc.Login(context.Background(), "u1@example.com", "correct horse", false, "1.2.3.4"); err != ErrUnconfirmed {
		t.Fatalf("err = %v, want ErrUnconfirmed", err)
	}
}

func TestLogin_ConfirmableDisabled(t *testing.T) {
	opts := defaultOpts()
	opts.ConfirmableEnabled = false
	f := newFixture(t, opts, lockout.Config{Enabled: true, Threshold: 5})
	f.addUser(t, "u1", "u1@example.com", "correct horse", false)

	if _, err := f.svc.Login(context.Background(), "u1@example.com", "correct horse", false, "1.2.3.4"); err != nil {
		t.Fatalf("unconfirmed user should log in when confirmable is off: %v", err)
	}
}

func TestLogin_SuccessResetsFailures(t *testing.T) {
	f := newFixture(t, defaultOpts(), lockout.Config{Enabled: true, Threshold: 5})
	u := f.addUser(t, "u1", "u1@example.com", "correct horse", true)
	u.FailedAttempts = 3

	res, err := f.svc.Login(context.Background(), "u1@example.com", "correct horse", false, "1.2.3.4")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.FailedAttempts != 0 {
		t.Errorf("FailedAttempts = %d, want 0", u.FailedAttempts)
	}
	if res.SessionToken == "" {
		t.Error("SessionToken should be issued")
	}
	if res.RememberCookie != "" {
		t.Error("RememberCookie should be empty without opt-in")
	}
}

func TestLogin_SessionTokenValidates(t *testing.T) {
	f := newFixture(t, defaultOpts(), lockout.Config{Enabled: true, Threshold: 5})
	f.addUser(t, "u1", "u1@example.com", "correct horse", true)

	res, err := f.svc.Login(context.Background(), "u1@example.com", "correct horse", false, "1.2.3.4")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	tokens := security.NewSessionTokenProvider(testSessionSecret, "authcore-test", time.Hour)
	userID, email, err := tokens.Validate(res.SessionToken)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if userID != "u1" || email != "u1@example.com" {
		t.Errorf("claims = (%q, %q), want (u1, u1@example.com)", userID, email)
	}
}

func TestLogin_EmailNormalized(t *testing.T) {
	f := newFixture(t, defaultOpts(), lockout.Config{Enabled: true, Threshold: 5})
	f.addUser(t, "u1", "u1@example.com", "correct horse", true)

	if _, err := f.svc.Login(context.Background(), "  U1@Example.COM ", "correct horse", false, "1.2.3.4"); err != nil {
		t.Fatalf("Login with unnormalized email: %v", err)
	}
}

func TestLogin_TrackingBootstrapAndShift(t *testing.T) {
	f := newFixture(t, defaultOpts(), lockout.Config{Enabled: true, Threshold: 5})
	u := f.addUser(t, "u1", "u1@example.com", "correct horse", true)

	if _, err := f.svc.Login(context.Background(), "u1@example.com", "correct horse", false, "10.0.0.1"); err != nil {
		t.Fatalf("first Login: %v", err)
	}
	if u.SignInCount != 1 {
		t.Errorf("SignInCount = %d, want 1", u.SignInCount)
	}
	if u.CurrentSignInAt == nil || u.CurrentSignInIP != "10.0.0.1" {
		t.Fatalf("current sign-in not stamped: %v %q", u.CurrentSignInAt, u.CurrentSignInIP)
	}
	// Bootstrap: with no prior session, last_* mirrors the first sign-in.
	if u.LastSignInAt == nil || u.LastSignInIP != "10.0.0.1" {
		t.Errorf("bootstrap last sign-in: %v %q", u.LastSignInAt, u.LastSignInIP)
	}

	firstAt := *u.CurrentSignInAt
	if _, err := f.svc.Login(context.Background(), "u1@example.com", "correct horse", false, "10.0.0.2"); err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if u.SignInCount != 2 {
		t.Errorf("SignInCount = %d, want 2", u.SignInCount)
	}
	if u.CurrentSignInIP != "10.0.0.2" {
		t.Errorf("CurrentSignInIP = %q, want 10.0.0.2", u.CurrentSignInIP)
	}
	if u.LastSignInAt == nil || !u.LastSignInAt.Equal(firstAt) || u.LastSignInIP != "10.0.0.1" {
		t.Errorf("previous session should shift into last_*: %v %q", u.LastSignInAt, u.LastSignInIP)
	}
}

func TestLogin_TrackingPersistenceFailureDoesNotFailLogin(t *testing.T) {
	f := newFixture(t, defaultOpts(), lockout.Config{Enabled: true, Threshold: 5})
	f.addUser(t, "u1", "u1@example.com", "correct horse", true)
	f.repo.trackingErr = errors.New("db down")

	if _, err := f.svc.Login(context.Background(), "u1@example.com", "correct horse", false, "1.2.3.4"); err != nil {
		t.Fatalf("tracking failure must not fail the login: %v", err)
	}
}

func TestLogin_TrackableDisabled(t *testing.T) {
	opts := defaultOpts()
	opts.TrackableEnabled = false
	f := newFixture(t, opts, lockout.Config{Enabled: true, Threshold: 5})
	u := f.addUser(t, "u1", "u1@example.com", "correct horse", true)

	if _, err := f.svc.Login(context.Background(), "u1@example.com", "correct horse", false, "1.2.3.4"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.SignInCount != 0 || u.CurrentSignInAt != nil {
		t.Error("tracking fields should stay untouched when trackable is off")
	}
}

func TestLogin_RememberOptIn(t *testing.T) {
	f := newFixture(t, defaultOpts(), lockout.Config{Enabled: true, Threshold: 5})
	f.addUser(t, "u1", "u1@example.com", "correct horse", true)

	res, err := f.svc.Login(context.Background(), "u1@example.com", "correct horse", true, "1.2.3.4")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.RememberCookie == "" {
		t.Fatal("RememberCookie should be set on opt-in")
	}
	if f.remember.createCalls != 1 {
		t.Errorf("CreateLogin calls = %d, want 1", f.remember.createCalls)
	}
}

func TestLogin_RememberableDisabled(t *testing.T) {
	opts := defaultOpts()
	opts.RememberableEnabled = false
	f := newFixture(t, opts, lockout.Config{Enabled: true, Threshold: 5})
	f.addUser(t, "u1", "u1@example.com", "correct horse", true)

	res, err := f.svc.Login(context.Background(), "u1@example.com", "correct horse", true, "1.2.3.4")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.RememberCookie != "" {
		t.Error("RememberCookie should stay empty when rememberable is off")
	}
	if f.remember.createCalls != 0 {
		t.Errorf("CreateLogin calls = %d, want 0", f.remember.createCalls)
	}
}

func TestLogout_ClosesTrackingAndTearsDownLineages(t *testing.T) {
	f := newFixture(t, defaultOpts(), lockout.Config{Enabled: true, Threshold: 5})
	u := f.addUser(t, "u1", "u1@example.com", "correct horse", true)

	if _, err := f.svc.Login(context.Background(), "u1@example.com", "correct horse", false, "10.0.0.1"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	currentAt := *u.CurrentSignInAt

	if err := f.svc.Logout(context.Background(), "u1"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if u.CurrentSignInAt != nil || u.CurrentSignInIP != "" {
		t.Error("logout should clear the current session fields")
	}
	if u.LastSignInAt == nil || !u.LastSignInAt.Equal(currentAt) || u.LastSignInIP != "10.0.0.1" {
		t.Errorf("logout should shift the current session into last_*: %v %q", u.LastSignInAt, u.LastSignInIP)
	}
	if f.remember.invalidateCalls != 1 {
		t.Errorf("InvalidateAll calls = %d, want 1", f.remember.invalidateCalls)
	}
}

func TestLogout_UnknownUserIsNoOp(t *testing.T) {
	f := newFixture(t, defaultOpts(), lockout.Config{Enabled: true, Threshold: 5})
	if err := f.svc.Logout(context.Background(), "ghost"); err != nil {
		t.Fatalf("Logout for unknown user: %v", err)
	}
	if f.remember.invalidateCalls != 0 {
		t.Error("no lineage teardown for unknown users")
	}
}

func TestNextTracking_PrefersCurrentOverLast(t *testing.T) {
	now := time.Now().UTC()
	curAt := now.Add(-time.Hour)
	lastAt := now.Add(-2 * time.Hour)
	prev := domain.Tracking{
		SignInCount:     2,
		CurrentSignInAt: &curAt, CurrentSignInIP: "10.0.0.1",
		LastSignInAt: &lastAt, LastSignInIP: "10.0.0.0",
	}

	tr := NextTracking(prev, now, "10.0.0.2")
	if tr.SignInCount != 3 {
		t.Errorf("SignInCount = %d, want 3", tr.SignInCount)
	}
	if !tr.LastSignInAt.Equal(curAt) || tr.LastSignInIP != "10.0.0.1" {
		t.Errorf("last_* should take the previous current_*: %v %q", tr.LastSignInAt, tr.LastSignInIP)
	}
	if !tr.CurrentSignInAt.Equal(now) || tr.CurrentSignInIP != "10.0.0.2" {
		t.Errorf("current_* should be now/ip: %v %q", tr.CurrentSignInAt, tr.CurrentSignInIP)
	}
}

func TestNextTracking_FallsBackToLast(t *testing.T) {
	now := time.Now().UTC()
	lastAt := now.Add(-2 * time.Hour)
	prev := domain.Tracking{SignInCount: 1, LastSignInAt: &lastAt, LastSignInIP: "10.0.0.0"}

	tr := NextTracking(prev, now, "10.0.0.2")
	if !tr.LastSignInAt.Equal(lastAt) || tr.LastSignInIP != "10.0.0.0" {
		t.Errorf("last_* should be preserved when current_* is empty: %v %q", tr.LastSignInAt, tr.LastSignInIP)
	}
}

func TestCloseTracking_KeepsLastWhenNoCurrent(t *testing.T) {
	lastAt := time.Now().UTC().Add(-2 * time.Hour)
	prev := domain.Tracking{SignInCount: 1, LastSignInAt: &lastAt, LastSignInIP: "10.0.0.0"}

	tr := CloseTracking(prev)
	if tr.CurrentSignInAt != nil || tr.CurrentSignInIP != "" {
		t.Error("current_* should be cleared")
	}
	if !tr.LastSignInAt.Equal(lastAt) || tr.LastSignInIP != "10.0.0.0" {
		t.Errorf("last_* should be preserved: %v %q", tr.LastSignInAt, tr.LastSignInIP)
	}
}
