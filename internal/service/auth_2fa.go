package service

import (
	"bitwise74/auth-api/internal/apperr"
	"bitwise74/auth-api/internal/model"
	"bitwise74/auth-api/pkg/security"
	"context"
	"errors"
	"strings"
)

// EnableTwoFactor generates a TOTP secret for the user. Two-factor stays off
// until ConfirmTwoFactor sees a valid code for it, so a lost QR code can't
// lock anyone out.
func (s *AuthService) EnableTwoFactor(ctx context.Context, userID string) (*security.TOTPKey, error) {
	u, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if u.TwoFactorEnabled {
		return nil, apperr.New(apperr.KindConflict, "two_factor_enabled", "Two-factor authentication is already enabled")
	}

	key, err := s.totp.Generate(u.Email)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	err = s.store.UpdateUser(ctx, u.ID, map[string]any{
		"two_factor_secret":    key.Secret,
		"two_factor_enabled":   false,
		"two_factor_last_step": 0,
	})
	if err != nil {
		return nil, err
	}

	return key, nil
}

// ConfirmTwoFactor turns two-factor on once the user proves their
// authenticator produces matching codes.
func (s *AuthService) ConfirmTwoFactor(ctx context.Context, userID, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return apperr.Validation("missing_code", "No two-factor code provided")
	}

	u, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return err
	}

	if u.TwoFactorEnabled {
		return apperr.New(apperr.KindConflict, "two_factor_enabled", "Two-factor authentication is already enabled")
	}
	if u.TwoFactorSecret == nil || *u.TwoFactorSecret == "" {
		return apperr.Validation("two_factor_not_pending", "Two-factor setup has not been started")
	}

	if err := s.checkCode(ctx, u, code); err != nil {
		return err
	}

	return s.store.UpdateUser(ctx, u.ID, map[string]any{"two_factor_enabled": true})
}

// CompleteTwoFactorLogin answers a login challenge with a TOTP code.
func (s *AuthService) CompleteTwoFactorLogin(ctx context.Context, challenge, code string) (*Session, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.Validation("missing_code", "No two-factor code provided")
	}

	claims, err := s.issuer.Parse(challenge, security.TypeChallenge)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, apperr.TokenExpired()
		}
		return nil, apperr.New(apperr.KindUnauthorized, "invalid_challenge", "Two-factor challenge invalid")
	}

	u, err := s.store.UserByID(ctx, claims.Subject)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.New(apperr.KindUnauthorized, "invalid_challenge", "Two-factor challenge invalid")
		}
		return nil, err
	}

	if !u.Active() || !u.TwoFactorEnabled || u.TwoFactorSecret == nil {
		return nil, apperr.New(apperr.KindUnauthorized, "invalid_challenge", "Two-factor challenge invalid")
	}

	if err := s.checkCode(ctx, u, code); err != nil {
		return nil, err
	}

	return s.issueSession(ctx, u)
}

func (s *AuthService) checkCode(ctx context.Context, u *model.User, code string) error {
	key := "2fa:" + u.ID
	if s.blocked(ctx, key) {
		return apperr.TooManyAttempts()
	}

	step, ok := s.totp.Match(code, *u.TwoFactorSecret, s.now())
	if !ok {
		s.recordFailure(ctx, key)
		return apperr.Invalid2FACode()
	}

	// A code is good for one use, whichever challenge it arrives with
	if err := s.store.ClaimTwoFactorStep(ctx, u.ID, step); err != nil {
		if apperr.Is(err, "invalid_2fa_code") {
			s.recordFailure(ctx, key)
		}
		return err
	}

	s.clearFailures(ctx, key)
	return nil
}
