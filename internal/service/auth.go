package service

import (
	"bitwise74/auth-api/config"
	"bitwise74/auth-api/internal/apperr"
	"bitwise74/auth-api/internal/model"
	"bitwise74/auth-api/internal/store"
	"bitwise74/auth-api/pkg/security"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const idCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

type AuthConfig struct {
	PublicURL       string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	ResetTTL        time.Duration
	ChallengeTTL    time.Duration
	ConfirmationTTL time.Duration
	ResendCooldown  time.Duration
	MailTimeout     time.Duration
	OAuthTimeout    time.Duration
}

func AuthConfigFrom(c *config.Config) AuthConfig {
	return AuthConfig{
		PublicURL:       c.App.PublicURL,
		AccessTTL:       c.JWT.AccessTTL,
		RefreshTTL:      c.JWT.RefreshTTL,
		ResetTTL:        c.JWT.ResetTTL,
		ChallengeTTL:    c.JWT.ChallengeTTL,
		ConfirmationTTL: c.Token.ConfirmationTTL,
		ResendCooldown:  c.Token.ResendCooldown,
		MailTimeout:     c.Mail.Timeout,
		OAuthTimeout:    c.OAuth.Timeout,
	}
}

type AuthDeps struct {
	Store    *store.Store
	Argon    *security.ArgonHash
	Issuer   *security.TokenIssuer
	TOTP     *security.TOTP
	Mailer   Mailer
	Attempts AttemptLimiter
	// Nil when Google sign-in isn't configured
	OAuth OAuthProvider
}

// AuthService composes the store, token issuer, mailer and providers into
// the account and session lifecycle. It holds no per-request state.
type AuthService struct {
	store    *store.Store
	argon    *security.ArgonHash
	issuer   *security.TokenIssuer
	totp     *security.TOTP
	mailer   Mailer
	attempts AttemptLimiter
	oauth    OAuthProvider
	cfg      AuthConfig
	now      func() time.Time

	mails sync.WaitGroup
}

func NewAuthService(d AuthDeps, cfg AuthConfig) *AuthService {
	return &AuthService{
		store:    d.Store,
		argon:    d.Argon,
		issuer:   d.Issuer,
		totp:     d.TOTP,
		mailer:   d.Mailer,
		attempts: d.Attempts,
		oauth:    d.OAuth,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetClock replaces the time source for the service and its token issuer.
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
	s.issuer.SetClock(now)
}

// Wait blocks until mails sent in the background are done.
func (s *AuthService) Wait() {
	s.mails.Wait()
}

type Session struct {
	User             *model.User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// LoginResult holds either a session or, for two-factor accounts, the
// challenge that has to be answered first.
type LoginResult struct {
	Session            *Session
	ChallengeToken     string
	ChallengeExpiresAt time.Time
}

func (r *LoginResult) TwoFactorRequired() bool {
	return r.ChallengeToken != ""
}

func (s *AuthService) completeLogin(ctx context.Context, u *model.User) (*LoginResult, error) {
	if u.TwoFactorEnabled {
		challenge, exp, err := s.issuer.Issue(security.TypeChallenge, u.ID, s.cfg.ChallengeTTL)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		return &LoginResult{ChallengeToken: challenge, ChallengeExpiresAt: exp}, nil
	}

	sess, err := s.issueSession(ctx, u)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Session: sess}, nil
}

// issueSession mints an access/refresh pair and persists the refresh token
// so it can be revoked.
func (s *AuthService) issueSession(ctx context.Context, u *model.User) (*Session, error) {
	access, accessExp, err := s.issuer.Issue(security.TypeAccess, u.ID, s.cfg.AccessTTL)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	refresh, refreshExp, err := s.issuer.Issue(security.TypeRefresh, u.ID, s.cfg.RefreshTTL)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	err = s.store.CreateToken(ctx, &model.Token{
		UserID:    u.ID,
		Token:     security.Digest(refresh),
		Type:      model.TokenRefresh,
		CreatedAt: s.now(),
		ExpiresAt: refreshExp,
	})
	if err != nil {
		return nil, err
	}

	return &Session{
		User:             u,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// sendAsync delivers m off the request path. Used where the response must
// not depend on whether a mail went out.
func (s *AuthService) sendAsync(m *Mail) {
	s.mails.Add(1)
	go func() {
		defer s.mails.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.MailTimeout)
		defer cancel()

		if err := s.mailer.Send(ctx, m); err != nil {
			zap.L().Error("Failed to send mail", zap.Error(err), zap.String("subject", m.Subject))
		}
	}()
}

// The limiter fails open: an unreachable backend must not lock everyone out.
func (s *AuthService) blocked(ctx context.Context, key string) bool {
	b, err := s.attempts.Blocked(ctx, key)
	if err != nil {
		zap.L().Warn("Attempt limiter unavailable", zap.Error(err))
		return false
	}
	return b
}

func (s *AuthService) recordFailure(ctx context.Context, key string) {
	if err := s.attempts.Fail(ctx, key); err != nil {
		zap.L().Warn("Failed to record attempt", zap.Error(err))
	}
}

func (s *AuthService) clearFailures(ctx context.Context, key string) {
	if err := s.attempts.Reset(ctx, key); err != nil {
		zap.L().Warn("Failed to reset attempts", zap.Error(err))
	}
}

// Me returns the account behind an authenticated request.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	return s.store.UserByID(ctx, userID)
}
