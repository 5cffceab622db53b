package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	auditdomain "authcore/internal/audit/domain"
	"authcore/internal/auth"
	"authcore/internal/ratelimit"
	"authcore/internal/remember"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Remember bool   `json:"remember"`
}

type sessionResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "email and password are required",
		})
		return
	}

	ip := c.ClientIP()
	if err := s.limiter.Enforce(c.Request.Context(), ip); err != nil {
		if errors.Is(err, ratelimit.ErrRateLimited) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    "TOO_MANY_ATTEMPTS",
				"message": "too many login attempts, try again later",
			})
			return
		}
		// The throttle backend being down must not take logins with it.
		s.logger.Error("server: login throttle", "error", err)
	}

	result, err := s.auth.Login(c.Request.Context(), req.Email, req.Password, req.Remember, ip)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			s.recorder.Record(c.Request.Context(), "", req.Email, auditdomain.ActionLoginFailure, ip)
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "INVALID_CREDENTIALS",
				"message": "invalid email or password",
			})
		case errors.Is(err, auth.ErrAccountLocked):
			s.recorder.Record(c.Request.Context(), "", req.Email, auditdomain.ActionAccountLocked, ip)
			c.JSON(http.StatusLocked, gin.H{
				"code":    "ACCOUNT_LOCKED",
				"message": "account is locked",
			})
		case errors.Is(err, auth.ErrUnconfirmed):
			c.JSON(http.StatusForbidden, gin.H{
				"code":    "ACCOUNT_UNCONFIRMED",
				"message": "account has not been confirmed",
			})
		default:
			s.logger.Error("server: login", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL",
				"message": "login failed",
			})
		}
		return
	}

	if err := s.limiter.Reset(c.Request.Context(), ip); err != nil {
		s.logger.Error("server: login throttle reset", "error", err)
	}

	s.recorder.Record(c.Request.Context(), result.User.ID, result.User.Email, auditdomain.ActionLoginSuccess, ip)

	s.setSessionCookie(c, result.SessionToken)
	if result.RememberCookie != "" {
		s.setRememberCookie(c, result.RememberCookie)
	}

	c.JSON(http.StatusOK, sessionResponse{UserID: result.User.ID, Email: result.User.Email})
}

func (s *Server) handleLogout(c *gin.Context) {
	userID := s.resolveForLogout(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    "UNAUTHORIZED",
			"message": "not logged in",
		})
		return
	}

	if err := s.auth.Logout(c.Request.Context(), userID); err != nil {
		s.logger.Error("server: logout", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL",
			"message": "logout failed",
		})
		return
	}

	s.recorder.Record(c.Request.Context(), userID, "", auditdomain.ActionLogout, c.ClientIP())

	s.clearSessionCookie(c)
	s.clearRememberCookie(c)
	c.Status(http.StatusNoContent)
}

// handleSession resolves the authenticated identity for the request: first
// from the session JWT cookie, then from the remember cookie (which rotates
// on use). With neither, the request is anonymous.
func (s *Server) handleSession(c *gin.Context) {
	if token, err := c.Cookie(SessionCookieName); err == nil && token != "" {
		if userID, email, err := s.tokens.Validate(token); err == nil {
			c.JSON(http.StatusOK, sessionResponse{UserID: userID, Email: email})
			return
		}
		s.clearSessionCookie(c)
	}

	plaintext := s.rememberCookiePlaintext(c)
	if plaintext == "" || s.remember == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    "UNAUTHORIZED",
			"message": "not logged in",
		})
		return
	}

	validation, err := s.remember.ValidateLogin(c.Request.Context(), plaintext)
	if err != nil {
		switch {
		case errors.Is(err, remember.ErrTokenTheft):
			// The cookie's embedded user id is the claimed (and, for a theft
			// hit, ledger-confirmed) identity.
			var claimed string
			if ck, perr := remember.ParseCookie(plaintext); perr == nil {
				claimed = ck.UserID
			}
			s.recorder.Record(c.Request.Context(), claimed, "", auditdomain.ActionRememberTheft, c.ClientIP())
			s.clearRememberCookie(c)
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "REMEMBER_TOKEN_THEFT",
				"message": "your persistent login may have been stolen; all remembered sessions have been signed out",
			})
		case errors.Is(err, remember.ErrTokenNotFound):
			s.clearRememberCookie(c)
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "not logged in",
			})
		default:
			s.logger.Error("server: remember validation", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL",
				"message": "session lookup failed",
			})
		}
		return
	}

	token, _, err := s.tokens.Issue(validation.User.ID, validation.User.Email)
	if err != nil {
		s.logger.Error("server: issuing session from remember cookie", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL",
			"message": "session lookup failed",
		})
		return
	}
	s.setSessionCookie(c, token)
	if validation.Rotated {
		s.setRememberCookie(c, validation.CookieValue)
	}

	c.JSON(http.StatusOK, sessionResponse{UserID: validation.User.ID, Email: validation.User.Email})
}

type eventResponse struct {
	Action    string `json:"action"`
	IP        string `json:"ip"`
	CreatedAt string `json:"created_at"`
}

// handleEvents lists the authenticated user's recent auth events, newest
// first. Only the session cookie authenticates here: resolving through the
// remember cookie would rotate it as a side effect of a read.
func (s *Server) handleEvents(c *gin.Context) {
	token, err := c.Cookie(SessionCookieName)
	if err != nil || token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    "UNAUTHORIZED",
			"message": "not logged in",
		})
		return
	}
	userID, _, err := s.tokens.Validate(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    "UNAUTHORIZED",
			"message": "not logged in",
		})
		return
	}

	events, err := s.recorder.RecentByUser(c.Request.Context(), userID, 50, 0)
	if err != nil {
		s.logger.Error("server: listing auth events", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL",
			"message": "event lookup failed",
		})
		return
	}

	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{
			Action:    e.Action,
			IP:        e.IP,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

// resolveForLogout resolves the requesting user from the session cookie, or
// by fully validating the remember cookie. A merely parsed (unvalidated)
// cookie is never trusted to name a user.
func (s *Server) resolveForLogout(c *gin.Context) string {
	if token, err := c.Cookie(SessionCookieName); err == nil && token != "" {
		if userID, _, err := s.tokens.Validate(token); err == nil {
			return userID
		}
	}

	if plaintext := s.rememberCookiePlaintext(c); plaintext != "" && s.remember != nil {
		if validation, err := s.remember.ValidateLogin(c.Request.Context(), plaintext); err == nil {
			return validation.User.ID
		}
	}
	return ""
}
