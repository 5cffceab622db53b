// Package server is the thin HTTP glue over the authentication core: route
// wiring, cookie transport, and status mapping. All decisions live in the
// auth and remember services.
package server

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"authcore/internal/audit"
	"authcore/internal/auth"
	"authcore/internal/config"
	"authcore/internal/ratelimit"
	"authcore/internal/remember"
	"authcore/internal/security"
)

// SessionCookieName carries the signed session JWT.
const SessionCookieName = "authcore_session"

// Server wires the authentication services into HTTP handlers.
type Server struct {
	auth     *auth.Service
	remember *remember.Service
	tokens   *security.SessionTokenProvider
	limiter  *ratelimit.LoginLimiter
	recorder *audit.Recorder
	cfg      *config.Config
	logger   *slog.Logger
}

// New returns a Server. remember may be nil when rememberable is disabled;
// limiter may be nil when no Redis is configured; recorder may be nil to
// skip the auth event trail.
func New(
	authService *auth.Service,
	rememberService *remember.Service,
	tokens *security.SessionTokenProvider,
	limiter *ratelimit.LoginLimiter,
	recorder *audit.Recorder,
	cfg *config.Config,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		auth:     authService,
		remember: rememberService,
		tokens:   tokens,
		limiter:  limiter,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/v1/auth")
	v1.POST("/login", s.handleLogin)
	v1.POST("/logout", s.handleLogout)
	v1.GET("/session", s.handleSession)
	v1.GET("/events", s.handleEvents)
	return r
}

// encodeCookieValue makes the plaintext space-delimited composite cookie-safe.
func encodeCookieValue(plaintext string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(plaintext))
}

func decodeCookieValue(encoded string) (string, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func (s *Server) secureCookies() bool {
	return s.cfg.Env == "production"
}

func (s *Server) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookieName, token, int(s.cfg.SessionTTL().Seconds()), "/", "", s.secureCookies(), true)
}

func (s *Server) setRememberCookie(c *gin.Context, plaintext string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(s.cfg.LoginCookieName, encodeCookieValue(plaintext), int(s.cfg.RememberMaxAge().Seconds()), "/", "", s.secureCookies(), true)
}

func (s *Server) clearSessionCookie(c *gin.Context) {
	c.SetCookie(SessionCookieName, "", -1, "/", "", s.secureCookies(), true)
}

func (s *Server) clearRememberCookie(c *gin.Context) {
	c.SetCookie(s.cfg.LoginCookieName, "", -1, "/", "", s.secureCookies(), true)
}

// rememberCookiePlaintext returns the decoded remember-cookie value from the
// request, or "" when absent or undecodable.
func (s *Server) rememberCookiePlaintext(c *gin.Context) string {
	encoded, err := c.Cookie(s.cfg.LoginCookieName)
	if err != nil || encoded == "" {
		return ""
	}
	plaintext, ok := decodeCookieValue(encoded)
	if !ok {
		return ""
	}
	return plaintext
}
