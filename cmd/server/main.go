package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"authcore/internal/audit"
	auditrepo "authcore/internal/audit/repository"
	"authcore/internal/auth"
	"authcore/internal/config"
	"authcore/internal/credcache"
	"authcore/internal/db"
	healthhandler "authcore/internal/health/handler"
	"authcore/internal/lockout"
	"authcore/internal/ratelimit"
	"authcore/internal/remember"
	rememberrepo "authcore/internal/remember/repository"
	"authcore/internal/security"
	"authcore/internal/server"
	userrepo "authcore/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Env)
	slog.SetDefault(logger)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is not set")
		os.Exit(1)
	}
	if cfg.SessionJWTSecret == "" {
		logger.Error("SESSION_JWT_SECRET is not set")
		os.Exit(1)
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	users := userrepo.NewPostgresRepository(database)
	hasher := security.NewHasher(cfg.BcryptCost)
	tokens := security.NewSessionTokenProvider([]byte(cfg.SessionJWTSecret), cfg.SessionJWTIssuer, cfg.SessionTTL())
	machine := lockout.NewMachine(users, lockout.Config{
		Enabled:   cfg.LockableEnabled,
		Threshold: cfg.MaxFailedLoginAttempts,
	}, logger)

	var rememberSvc *remember.Service
	if cfg.RememberableEnabled {
		ledger := rememberrepo.NewPostgresRepository(database)
		cache := credcache.NewMemoryStore()
		rememberSvc = remember.NewService(ledger, users, cache, cfg.RememberMaxAge(), logger)
	}

	var limiter *ratelimit.LoginLimiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		limiter = ratelimit.NewLoginLimiter(rdb, ratelimit.Config{
			Enabled:     true,
			MaxAttempts: cfg.LoginRateMax,
			Window:      cfg.LoginRateWindow(),
		})
	}

	authSvc := auth.NewService(users, machine, rememberSvc, hasher, tokens, auth.Options{
		ConfirmableEnabled:  cfg.ConfirmableEnabled,
		TrackableEnabled:    cfg.TrackableEnabled,
		RememberableEnabled: cfg.RememberableEnabled,
	}, logger)

	recorder := audit.NewRecorder(auditrepo.NewPostgresRepository(database), logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.New(authSvc, rememberSvc, tokens, limiter, recorder, cfg, logger)

	router := srv.Router()
	healthhandler.NewHandler(database).Register(router)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if rememberSvc != nil {
		go sweepLoop(ctx, rememberSvc, logger)
	}

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("HTTP server stopped")
}

func newLogger(env string) *slog.Logger {
	if env == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// sweepLoop periodically removes expired remember tokens. The validation path
// sweeps inline too; this keeps the ledger bounded on quiet deployments.
func sweepLoop(ctx context.Context, svc *remember.Service, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.SweepExpired(ctx)
			if err != nil {
				logger.Error("remember sweep", "error", err)
			} else if n > 0 {
				logger.Info("remember sweep removed tokens", "count", n)
			}
		}
	}
}
