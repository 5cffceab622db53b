// Package ratelimit throttles login attempts per client IP using Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited indicates the IP has exceeded the login attempt budget.
	ErrRateLimited = errors.New("login rate limited")
	// ErrUnavailable indicates the throttle backend is unreachable.
	ErrUnavailable = errors.New("rate limit backend unavailable")
)

// Config holds login throttle configuration.
type Config struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
}

// LoginLimiter counts login attempts per IP in a rolling window. A nil
// limiter is a no-op, so callers need no enabled check of their own.
type LoginLimiter struct {
	redis  redis.UniversalClient
	config Config
}

// NewLoginLimiter creates a login limiter backed by the given Redis client.
func NewLoginLimiter(redisClient redis.UniversalClient, cfg Config) *LoginLimiter {
	return &LoginLimiter{redis: redisClient, config: cfg}
}

func (l *LoginLimiter) key(ip string) string {
	return "lrl:" + ip
}

// Enforce counts one attempt for ip and returns ErrRateLimited when the
// window budget is exhausted.
func (l *LoginLimiter) Enforce(ctx context.Context, ip string) error {
	if l == nil || !l.config.Enabled || ip == "" {
		return nil
	}

	count, err := l.redis.Incr(ctx, l.key(ip)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if count == 1 {
		// First attempt opens the window.
		if err := l.redis.Expire(ctx, l.key(ip), l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	if count > int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the attempt counter for ip (e.g. after a successful login).
func (l *LoginLimiter) Reset(ctx context.Context, ip string) error {
	if l == nil || !l.config.Enabled || ip == "" {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(ip)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
