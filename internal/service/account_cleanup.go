package service

import (
	"bitwise74/auth-api/internal/store"
	"context"
	"time"

	"go.uber.org/zap"
)

// AccountCleanup deletes accounts that registered but never verified their
// email within maxAge. Their tokens go with them.
func AccountCleanup(ctx context.Context, t, maxAge time.Duration, s *store.Store) {
	ticker := time.NewTicker(t)
	defer ticker.Stop()

	zap.L().Debug("Account cleanup attached", zap.Duration("tick_every", t), zap.Duration("max_age", maxAge))

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			CleanupAccounts(ctx, s, now.Add(-maxAge))
		}
	}
}

func CleanupAccounts(ctx context.Context, s *store.Store, cutoff time.Time) {
	n, err := s.DeletePendingUsersBefore(ctx, cutoff)
	if err != nil {
		zap.L().Error("Failed to delete unverified accounts", zap.Error(err))
		return
	}

	zap.L().Debug("Account cleanup finished", zap.Int64("deleted", n))
}
