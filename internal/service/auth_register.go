package service

import (
	"bitwise74/auth-api/internal/apperr"
	"bitwise74/auth-api/internal/model"
	"bitwise74/auth-api/internal/store"
	"bitwise74/auth-api/pkg/security"
	"bitwise74/auth-api/pkg/validators"
	"context"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

func (in *RegisterInput) validate() error {
	if err := validators.NameValidator(in.Name); err != nil {
		return apperr.Validation("invalid_name", err.Error())
	}
	if err := validators.EmailValidator(strings.TrimSpace(in.Email)); err != nil {
		return apperr.Validation("invalid_email", err.Error())
	}
	if err := validators.PasswordValidator(in.Password); err != nil {
		return apperr.Validation("invalid_password", err.Error())
	}
	return nil
}

// Register creates a PENDING account and mails its confirmation link. When
// the mail can't be delivered the account is removed again so the address
// can register later.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	email := validators.NormalizeEmail(in.Email)

	_, err := s.store.UserByEmail(ctx, email)
	if err == nil {
		return nil, apperr.EmailTaken()
	}
	if apperr.KindOf(err) != apperr.KindNotFound {
		return nil, err
	}

	hash, err := s.argon.GenerateFromPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	userID, err := gonanoid.Generate(idCharset, 16)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	raw, digest, err := security.NewOpaqueToken()
	if err != nil {
		return nil, apperr.Internal(err)
	}

	now := s.now()
	user := &model.User{
		ID:           userID,
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Status:       model.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The unique index decides between concurrent registrations
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		return tx.CreateToken(ctx, &model.Token{
			UserID:    userID,
			Token:     digest,
			Type:      model.TokenConfirmation,
			CreatedAt: now,
			ExpiresAt: now.Add(s.cfg.ConfirmationTTL),
		})
	})
	if err != nil {
		return nil, err
	}

	mail, err := verificationMail(email, user.Name, s.cfg.PublicURL, raw, s.cfg.ConfirmationTTL)
	if err != nil {
		s.discardUser(ctx, userID)
		return nil, apperr.Internal(err)
	}

	mailCtx, cancel := context.WithTimeout(ctx, s.cfg.MailTimeout)
	defer cancel()

	if err := s.mailer.Send(mailCtx, mail); err != nil {
		s.discardUser(ctx, userID)
		return nil, apperr.MailUnavailable(err)
	}

	return user, nil
}

func (s *AuthService) discardUser(ctx context.Context, id string) {
	if err := s.store.DeleteUser(context.WithoutCancel(ctx), id); err != nil {
		zap.L().Error("Failed to remove user after aborted registration", zap.Error(err), zap.String("userID", id))
	}
}

// VerifyEmail consumes a confirmation token and activates its owner.
func (s *AuthService) VerifyEmail(ctx context.Context, raw string) error {
	if raw == "" {
		return apperr.Validation("missing_token", "No verification token provided")
	}

	tok, err := s.store.TokenByDigest(ctx, security.Digest(raw), model.TokenConfirmation)
	if err != nil {
		return err
	}

	if !tok.ValidAt(s.now()) {
		return apperr.TokenExpired()
	}

	return s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.ConsumeToken(ctx, tok.ID); err != nil {
			return err
		}
		return tx.UpdateUser(ctx, tok.UserID, map[string]any{"status": model.StatusActive})
	})
}

// ResendVerification mails a fresh confirmation link to a pending account.
// It reports nothing about the address, unknown or already verified
// accounts get the same nil.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
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

	if u.Active() {
		return nil
	}

	now := s.now()
	last, err := s.store.LatestToken(ctx, u.ID, model.TokenConfirmation)
	if err == nil && now.Sub(last.CreatedAt) < s.cfg.ResendCooldown {
		return nil
	}
	if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
		return err
	}

	raw, digest, err := security.NewOpaqueToken()
	if err != nil {
		return apperr.Internal(err)
	}

	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.DeleteUserTokens(ctx, u.ID, model.TokenConfirmation); err != nil {
			return err
		}
		return tx.CreateToken(ctx, &model.Token{
			UserID:    u.ID,
			Token:     digest,
			Type:      model.TokenConfirmation,
			CreatedAt: now,
			ExpiresAt: now.Add(s.cfg.ConfirmationTTL),
		})
	})
	if err != nil {
		return err
	}

	mail, err := verificationMail(u.Email, u.Name, s.cfg.PublicURL, raw, s.cfg.ConfirmationTTL)
	if err != nil {
		return apperr.Internal(err)
	}

	s.sendAsync(mail)
	return nil
}
