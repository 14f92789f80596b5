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

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

// Login checks email and password. Every way of failing returns the same
// invalid_credentials error so callers can't enumerate accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = validators.NormalizeEmail(email)
	if email == "" {
		return nil, apperr.Validation("invalid_email", validators.ErrEmailEmpty.Error())
	}
	if password == "" {
		return nil, apperr.Validation("invalid_password", validators.ErrPasswordEmpty.Error())
	}

	key := "login:" + email
	if s.blocked(ctx, key) {
		return nil, apperr.TooManyAttempts()
	}

	u, err := s.store.UserByEmail(ctx, email)
	if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
		return nil, err
	}

	if u == nil || u.PasswordHash == "" {
		s.argon.BurnVerify(password)
		s.recordFailure(ctx, key)
		return nil, apperr.InvalidCredentials()
	}

	ok, err := s.argon.VerifyPasswd(password, u.PasswordHash)
	if err != nil {
		zap.L().Error("Stored password hash is unreadable", zap.Error(err), zap.String("userID", u.ID))
	}

	if !ok || !u.Active() {
		s.recordFailure(ctx, key)
		return nil, apperr.InvalidCredentials()
	}

	s.clearFailures(ctx, key)
	return s.completeLogin(ctx, u)
}

// Refresh trades a refresh token for a new session. The presented token is
// consumed, so each refresh token works exactly once.
func (s *AuthService) Refresh(ctx context.Context, raw string) (*Session, error) {
	if raw == "" {
		return nil, apperr.InvalidRefreshToken()
	}

	claims, err := s.issuer.Parse(raw, security.TypeRefresh)
	if err != nil {
		return nil, apperr.InvalidRefreshToken()
	}

	tok, err := s.store.TokenByDigest(ctx, security.Digest(raw), model.TokenRefresh)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.InvalidRefreshToken()
		}
		return nil, err
	}

	if tok.UserID != claims.Subject || !tok.ValidAt(s.now()) {
		return nil, apperr.InvalidRefreshToken()
	}

	u, err := s.store.UserByID(ctx, tok.UserID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.InvalidRefreshToken()
		}
		return nil, err
	}

	if !u.Active() {
		return nil, apperr.InvalidRefreshToken()
	}

	if err := s.store.ConsumeToken(ctx, tok.ID); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.InvalidRefreshToken()
		}
		return nil, err
	}

	return s.issueSession(ctx, u)
}

// Logout revokes the refresh token if it is still stored. Unknown tokens
// are fine, the cookie gets cleared either way.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}

	_, err := s.store.DeleteTokenByDigest(ctx, security.Digest(raw), model.TokenRefresh)
	return err
}

// Authenticate resolves an access token to an active user.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*model.User, error) {
	if raw == "" {
		return nil, apperr.Unauthenticated()
	}

	claims, err := s.issuer.Parse(raw, security.TypeAccess)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, apperr.TokenExpired()
		}
		return nil, apperr.Unauthenticated()
	}

	u, err := s.store.UserByID(ctx, claims.Subject)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.Unauthenticated()
		}
		return nil, err
	}

	if !u.Active() {
		return nil, apperr.Unauthenticated()
	}

	return u, nil
}

// GoogleLogin exchanges an authorization code and signs the matching local
// account in. Accounts are matched by Google subject first and by email
// second, and created when neither matches. A Google-verified email is proof
// enough to activate a pending account.
func (s *AuthService) GoogleLogin(ctx context.Context, code string) (*LoginResult, error) {
	if s.oauth == nil {
		return nil, apperr.New(apperr.KindUnavailable, "oauth_disabled", "Google sign-in is not configured")
	}

	if code == "" {
		return nil, apperr.Validation("missing_code", "No authorization code provided")
	}

	exCtx, cancel := context.WithTimeout(ctx, s.cfg.OAuthTimeout)
	defer cancel()

	id, err := s.oauth.Exchange(exCtx, code)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			return nil, apperr.OAuthUnavailable(err)
		}
		return nil, err
	}

	if !id.EmailVerified {
		return nil, apperr.New(apperr.KindUnauthorized, "oauth_rejected", "Google account email is not verified")
	}

	email := validators.NormalizeEmail(id.Email)

	u, err := s.resolveOAuthUser(ctx, id, email)
	if apperr.KindOf(err) == apperr.KindNotFound {
		u, err = s.createOAuthUser(ctx, id, email)
	}
	if err != nil {
		return nil, err
	}

	return s.completeLogin(ctx, u)
}

// resolveOAuthUser finds the local account for a Google identity and links
// it. The address on the Google side may have changed since the account was
// linked, so the subject wins over the email.
func (s *AuthService) resolveOAuthUser(ctx context.Context, id *Identity, email string) (*model.User, error) {
	u, err := s.store.UserByGoogleID(ctx, id.Subject)
	if err == nil {
		return u, s.linkOAuthUser(ctx, u, id)
	}
	if apperr.KindOf(err) != apperr.KindNotFound {
		return nil, err
	}

	u, err = s.store.UserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u.GoogleID != nil && *u.GoogleID != id.Subject {
		return nil, apperr.New(apperr.KindConflict, "oauth_account_mismatch", "This email is linked to a different Google account")
	}
	return u, s.linkOAuthUser(ctx, u, id)
}

func (s *AuthService) createOAuthUser(ctx context.Context, id *Identity, email string) (*model.User, error) {
	userID, err := gonanoid.Generate(idCharset, 16)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	name := strings.TrimSpace(id.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	sub := id.Subject
	now := s.now()
	u := &model.User{
		ID:        userID,
		Name:      name,
		Email:     email,
		Status:    model.StatusActive,
		GoogleID:  &sub,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.store.CreateUser(ctx, u)
	if apperr.KindOf(err) == apperr.KindConflict {
		// Lost a race with another sign-in for the same subject or address
		return s.resolveOAuthUser(ctx, id, email)
	}
	if err != nil {
		return nil, err
	}

	return u, nil
}

// linkOAuthUser records the Google subject and activates a pending account.
// Whoever registered a pending account never proved they own the address, so
// the password and 2FA secret they chose are dropped on activation.
func (s *AuthService) linkOAuthUser(ctx context.Context, u *model.User, id *Identity) error {
	updates := map[string]any{}

	if !u.Active() {
		updates["status"] = model.StatusActive
		updates["password_hash"] = ""
		updates["two_factor_secret"] = nil
		updates["two_factor_enabled"] = false
	}
	if u.GoogleID == nil {
		updates["google_id"] = id.Subject
	}

	if len(updates) == 0 {
		return nil
	}

	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.UpdateUser(ctx, u.ID, updates); err != nil {
			return err
		}
		if u.Active() {
			return nil
		}
		if err := tx.DeleteUserTokens(ctx, u.ID, model.TokenConfirmation); err != nil {
			return err
		}
		return tx.DeleteUserTokens(ctx, u.ID, model.TokenRefresh)
	})
	if err != nil {
		return err
	}

	if !u.Active() {
		u.Status = model.StatusActive
		u.PasswordHash = ""
		u.TwoFactorSecret = nil
		u.TwoFactorEnabled = false
	}
	if u.GoogleID == nil {
		sub := id.Subject
		u.GoogleID = &sub
	}
	return nil
}
