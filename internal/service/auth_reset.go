package service

import (
	"bitwise74/auth-api/internal/apperr"
	"bitwise74/auth-api/internal/model"
	"bitwise74/auth-api/internal/store"
	"bitwise74/auth-api/pkg/security"
	"bitwise74/auth-api/pkg/validators"
	"context"
	"errors"
	"strings"
)

// RequestPasswordReset mails a reset link when the address belongs to an
// account. The result is the same whether it does or not.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	if err := validators.EmailValidator(strings.TrimSpace(email)); err != nil {
		return apperr.Validation("invalid_email", err.Error())
	}

	u, err := s.store.UserByEmail(ctx, validators.NormalizeEmail(email))
	if apperr.KindOf(err) == apperr.KindNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	token, _, err := s.issuer.Issue(security.TypeReset, u.ID, s.cfg.ResetTTL,
		security.WithPasswordVersion(security.PasswordVersion(u.PasswordHash)))
	if err != nil {
		return apperr.Internal(err)
	}

	mail, err := resetMail(u.Email, u.Name, s.cfg.PublicURL, token, s.cfg.ResetTTL)
	if err != nil {
		return apperr.Internal(err)
	}

	s.sendAsync(mail)
	return nil
}

// ResetPassword sets a new password from a reset link. The link carries a
// fingerprint of the hash it was issued against, so it stops working as soon
// as the password changes. All refresh tokens of the account are revoked.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return apperr.InvalidResetToken()
	}
	if err := validators.PasswordValidator(password); err != nil {
		return apperr.Validation("invalid_password", err.Error())
	}

	claims, err := s.issuer.Parse(token, security.TypeReset)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return apperr.TokenExpired()
		}
		return apperr.InvalidResetToken()
	}

	u, err := s.store.UserByID(ctx, claims.Subject)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.InvalidResetToken()
		}
		return err
	}

	if claims.PasswordVersion != security.PasswordVersion(u.PasswordHash) {
		return apperr.InvalidResetToken()
	}

	hash, err := s.argon.GenerateFromPassword(password)
	if err != nil {
		return apperr.Internal(err)
	}

	return s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.ReplacePasswordHash(ctx, u.ID, u.PasswordHash, hash); err != nil {
			return err
		}
		return tx.DeleteUserTokens(ctx, u.ID, model.TokenRefresh)
	})
}
