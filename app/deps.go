package app

import (
	"bitwise74/auth-api/config"
	"bitwise74/auth-api/db"
	"bitwise74/auth-api/internal"
	"bitwise74/auth-api/internal/service"
	"bitwise74/auth-api/internal/store"
	"bitwise74/auth-api/pkg/security"
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewDeps connects to the database and builds the auth service with the
// providers selected in c.
func NewDeps(ctx context.Context, c *config.Config) (*internal.Deps, error) {
	gdb, err := db.New(c.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}

	d := &internal.Deps{
		Config: c,
		DB:     gdb,
		Store:  store.New(gdb, c.DB.Timeout),
	}

	previous, err := c.JWT.Previous()
	if err != nil {
		d.Close()
		return nil, err
	}

	issuer, err := security.NewTokenIssuer(c.JWT.KeyID, []byte(c.JWT.Secret), previous)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to create token issuer, %w", err)
	}

	mailer, err := service.NewMailer(c.Mail)
	if err != nil {
		d.Close()
		return nil, err
	}

	var attempts service.AttemptLimiter
	if c.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			zap.L().Warn("Redis not reachable, lockouts fail open until it is", zap.Error(err))
		}

		attempts = service.NewRedisAttempts(rdb, c.Security.MaxAttempts, c.Security.LockoutWindow)
		d.Closers = append(d.Closers, rdb)
	} else {
		mem := service.NewMemoryAttempts(c.Security.MaxAttempts, c.Security.LockoutWindow)
		attempts = mem
		d.Closers = append(d.Closers, mem)
	}

	deps := service.AuthDeps{
		Store:    d.Store,
		Argon:    security.NewArgon(),
		Issuer:   issuer,
		TOTP:     security.NewTOTP(c.TOTP.Issuer),
		Mailer:   mailer,
		Attempts: attempts,
	}
	if c.OAuth.GoogleEnabled() {
		deps.OAuth = service.NewGoogleOAuth(c.OAuth)
	}

	d.Auth = service.NewAuthService(deps, service.AuthConfigFrom(c))
	return d, nil
}
