// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// SessionJWTSecret signs the session cookie JWT (HS256). Must be at least 32 bytes when set.
	SessionJWTSecret string `mapstructure:"SESSION_JWT_SECRET"`
	// SessionJWTIssuer is the iss claim on session tokens.
	SessionJWTIssuer string `mapstructure:"SESSION_JWT_ISSUER"`
	// SessionTTLRaw is the session token lifetime (e.g. "12h").
	SessionTTLRaw string `mapstructure:"SESSION_TTL"`
	// BcryptCost is the bcrypt cost factor (4-31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// MaxFailedLoginAttempts is the failed-attempt threshold that locks an account.
	MaxFailedLoginAttempts int `mapstructure:"MAX_FAILED_LOGIN_ATTEMPTS"`
	// LockableEnabled enables the failed-attempt lockout state machine.
	LockableEnabled bool `mapstructure:"LOCKABLE_ENABLED"`
	// ConfirmableEnabled requires a confirmed account before login succeeds.
	ConfirmableEnabled bool `mapstructure:"CONFIRMABLE_ENABLED"`
	// TrackableEnabled records sign-in timestamps, IPs, and counts on the user.
	TrackableEnabled bool `mapstructure:"TRACKABLE_ENABLED"`

	// RememberableEnabled enables the persistent "remember me" login cookie.
	RememberableEnabled bool `mapstructure:"REMEMBERABLE_ENABLED"`
	// LoginCookieName is the name of the remember-me cookie.
	LoginCookieName string `mapstructure:"LOGIN_COOKIE_NAME"`
	// RememberCookieExpireHours is the max age of a remember token before the sweep deletes it.
	RememberCookieExpireHours int `mapstructure:"REMEMBER_COOKIE_EXPIRE_HOURS"`

	// RedisAddr enables the per-IP login throttle when set (e.g. localhost:6379).
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// LoginRateMax is the max login attempts per IP per window.
	LoginRateMax int `mapstructure:"LOGIN_RATE_MAX"`
	// LoginRateWindowRaw is the throttle window (e.g. "15m").
	LoginRateWindowRaw string `mapstructure:"LOGIN_RATE_WINDOW"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SESSION_JWT_SECRET", "")
	v.SetDefault("SESSION_JWT_ISSUER", "authcore")
	v.SetDefault("SESSION_TTL", "12h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("MAX_FAILED_LOGIN_ATTEMPTS", 5)
	v.SetDefault("LOCKABLE_ENABLED", true)
	v.SetDefault("CONFIRMABLE_ENABLED", true)
	v.SetDefault("TRACKABLE_ENABLED", true)
	v.SetDefault("REMEMBERABLE_ENABLED", true)
	v.SetDefault("LOGIN_COOKIE_NAME", "remember_token")
	v.SetDefault("REMEMBER_COOKIE_EXPIRE_HOURS", 336) // 14d
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LOGIN_RATE_MAX", 20)
	v.SetDefault("LOGIN_RATE_WINDOW", "15m")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.MaxFailedLoginAttempts < 1 {
		return nil, errors.New("config: MAX_FAILED_LOGIN_ATTEMPTS must be at least 1")
	}

	if cfg.SessionJWTSecret != "" && len(cfg.SessionJWTSecret) < 32 {
		return nil, errors.New("config: SESSION_JWT_SECRET must be at least 32 bytes")
	}

	if cfg.RememberCookieExpireHours < 1 {
		return nil, errors.New("config: REMEMBER_COOKIE_EXPIRE_HOURS must be at least 1")
	}

	return &cfg, nil
}

// SessionTTL parses SessionTTLRaw as a time.Duration. Returns 12h if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.SessionTTLRaw)
	if err != nil || d <= 0 {
		return 12 * time.Hour
	}
	return d
}

// RememberMaxAge is the remember-token max age derived from RememberCookieExpireHours.
func (c *Config) RememberMaxAge() time.Duration {
	return time.Duration(c.RememberCookieExpireHours) * time.Hour
}

// LoginRateWindow parses LoginRateWindowRaw as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) LoginRateWindow() time.Duration {
	d, err := time.ParseDuration(c.LoginRateWindowRaw)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}
