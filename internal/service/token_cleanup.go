package service

import (
	"bitwise74/auth-api/internal/store"
	"context"
	"time"

	"go.uber.org/zap"
)

// TokenCleanup periodically deletes confirmation and refresh tokens that
// expired. It returns when ctx is done.
func TokenCleanup(ctx context.Context, t time.Duration, s *store.Store) {
	ticker := time.NewTicker(t)
	defer ticker.Stop()

	zap.L().Debug("Token cleanup attached", zap.Duration("tick_every", t))

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			CleanupTokens(ctx, s, now)
		}
	}
}

func CleanupTokens(ctx context.Context, s *store.Store, now time.Time) {
	n, err := s.DeleteExpiredTokens(ctx, now)
	if err != nil {
		zap.L().Error("Failed to cleanup expired tokens", zap.Error(err))
		return
	}

	if n > 0 {
		zap.L().Debug("Cleaned up expired tokens", zap.Int64("count", n))
	}
}
