package store

import (
	"bitwise74/auth-api/internal/apperr"
	"bitwise74/auth-api/internal/model"
	"context"
	"time"
)

func (s *Store) CreateToken(ctx context.Context, t *model.Token) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	return translate(s.db.WithContext(ctx).Create(t).Error, nil)
}

// TokenByDigest finds a token of the given type. Expiry is left to the
// caller so it can tell "expired" from "unknown".
func (s *Store) TokenByDigest(ctx context.Context, digest string, typ model.TokenType) (*model.Token, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var t model.Token
	err := s.db.WithContext(ctx).
		Where("token = ? AND type = ?", digest, typ).
		First(&t).
		Error
	if err != nil {
		return nil, translate(err, apperr.TokenNotFound())
	}
	return &t, nil
}

// LatestToken returns the most recently created token of typ for a user.
func (s *Store) LatestToken(ctx context.Context, userID string, typ model.TokenType) (*model.Token, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var t model.Token
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, typ).
		Order("created_at desc").
		First(&t).
		Error
	if err != nil {
		return nil, translate(err, apperr.TokenNotFound())
	}
	return &t, nil
}

// ConsumeToken deletes a token by id. Only one caller can consume a token:
// whoever sees zero affected rows lost the race and gets TokenNotFound.
func (s *Store) ConsumeToken(ctx context.Context, id uint) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	r := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Token{})
	if r.Error != nil {
		return translate(r.Error, nil)
	}
	if r.RowsAffected != 1 {
		return apperr.TokenNotFound()
	}
	return nil
}

func (s *Store) DeleteTokenByDigest(ctx context.Context, digest string, typ model.TokenType) (int64, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	r := s.db.WithContext(ctx).Where("token = ? AND type = ?", digest, typ).Delete(&model.Token{})
	return r.RowsAffected, translate(r.Error, nil)
}

func (s *Store) DeleteUserTokens(ctx context.Context, userID string, typ model.TokenType) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	return translate(s.db.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, typ).
		Delete(&model.Token{}).
		Error, nil)
}

func (s *Store) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	r := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&model.Token{})
	return r.RowsAffected, translate(r.Error, nil)
}
