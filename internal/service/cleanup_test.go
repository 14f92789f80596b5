package service

import (
	"bitwise74/auth-api/internal/model"
	"bitwise74/auth-api/internal/store"
	"bitwise74/auth-api/internal/testdb"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupTokensAndAccounts(t *testing.T) {
	gdb := testdb.New(t)
	s := store.New(gdb, time.Second)
	ctx := context.Background()
	now := time.Now()

	pending := &model.User{ID: "p1", Name: "P", Email: "p@example.com", Status: model.StatusPending, CreatedAt: now.Add(-8 * 24 * time.Hour)}
	active := &model.User{ID: "a1", Name: "A", Email: "a@example.com", Status: model.StatusActive}
	require.NoError(t, s.CreateUser(ctx, pending))
	require.NoError(t, s.CreateUser(ctx, active))

	require.NoError(t, s.CreateToken(ctx, &model.Token{UserID: "a1", Token: "expired", Type: model.TokenRefresh, ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, s.CreateToken(ctx, &model.Token{UserID: "a1", Token: "live", Type: model.TokenRefresh, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.CreateToken(ctx, &model.Token{UserID: "p1", Token: "confirm", Type: model.TokenConfirmation, ExpiresAt: now.Add(time.Hour)}))

	CleanupTokens(ctx, s, now)
	CleanupAccounts(ctx, s, now.Add(-7*24*time.Hour))

	var tokens []model.Token
	require.NoError(t, gdb.Find(&tokens).Error)
	require.Len(t, tokens, 1)
	assert.Equal(t, "live", tokens[0].Token)

	var users []model.User
	require.NoError(t, gdb.Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, "a1", users[0].ID)
}

func TestTokenCleanupStopsWithContext(t *testing.T) {
	s := store.New(testdb.New(t), time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		TokenCleanup(ctx, time.Millisecond, s)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("token cleanup did not stop")
	}
}
