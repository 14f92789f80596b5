// Package store is the gorm-backed credential store. Every call runs under
// the configured timeout and returns apperr errors.
package store

import (
	"bitwise74/auth-api/internal/apperr"
	"bitwise74/auth-api/internal/model"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Store struct {
	db      *gorm.DB
	timeout time.Duration
}

func New(db *gorm.DB, timeout time.Duration) *Store {
	return &Store{db: db, timeout: timeout}
}

func (s *Store) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Transaction runs fn against a Store bound to a single transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, timeout: s.timeout})
	})
	return translate(err, nil)
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	sqlDB, err := s.db.DB()
	if err != nil {
		return apperr.DBUnavailable(err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return apperr.DBUnavailable(err)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Omit("Tokens").Create(u).Error
	// Without a Google subject the email is the only unique column a caller
	// controls. Linked accounts can collide on either, so they get the
	// generic conflict and the caller re-resolves.
	if errors.Is(err, gorm.ErrDuplicatedKey) && u.GoogleID == nil {
		return apperr.EmailTaken()
	}
	return translate(err, nil)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var u model.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if err != nil {
		return nil, translate(err, apperr.UserNotFound())
	}
	return &u, nil
}

// UserByGoogleID finds the account linked to a Google subject.
func (s *Store) UserByGoogleID(ctx context.Context, sub string) (*model.User, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var u model.User
	err := s.db.WithContext(ctx).Where("google_id = ?", sub).First(&u).Error
	if err != nil {
		return nil, translate(err, apperr.UserNotFound())
	}
	return &u, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var u model.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		return nil, translate(err, apperr.UserNotFound())
	}
	return &u, nil
}

// UpdateUser applies column updates to one user. Zero affected rows means
// the user is gone.
func (s *Store) UpdateUser(ctx context.Context, id string, updates map[string]any) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	r := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(updates)
	if r.Error != nil {
		return translate(r.Error, nil)
	}
	if r.RowsAffected == 0 {
		return apperr.UserNotFound()
	}
	return nil
}

// DeleteUser removes a user and its tokens. The foreign key cascades too,
// the explicit delete keeps that true on databases with constraints off.
// ClaimTwoFactorStep records step as the user's last accepted TOTP step. A
// step at or before the recorded one is a replay and yields invalid_2fa_code.
func (s *Store) ClaimTwoFactorStep(ctx context.Context, id string, step int64) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	r := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND two_factor_last_step < ?", id, step).
		Update("two_factor_last_step", step)
	if r.Error != nil {
		return translate(r.Error, nil)
	}
	if r.RowsAffected == 0 {
		return apperr.Invalid2FACode()
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&model.Token{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.User{}).Error
	})
	return translate(err, nil)
}

// DeletePendingUsersBefore removes accounts that never verified their email.
func (s *Store) DeletePendingUsersBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var n int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Model(&model.User{}).
			Select("id").
			Where("status = ? AND created_at < ?", model.StatusPending, cutoff)

		if err := tx.Where("user_id IN (?)", stale).Delete(&model.Token{}).Error; err != nil {
			return err
		}

		r := tx.Where("status = ? AND created_at < ?", model.StatusPending, cutoff).Delete(&model.User{})
		n = r.RowsAffected
		return r.Error
	})
	return n, translate(err, nil)
}

// ReplacePasswordHash swaps the hash only if it still equals old, so two
// resets racing on the same link can't both win.
func (s *Store) ReplacePasswordHash(ctx context.Context, id, old, next string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	r := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND password_hash = ?", id, old).
		Update("password_hash", next)
	if r.Error != nil {
		return translate(r.Error, nil)
	}
	if r.RowsAffected == 0 {
		return apperr.InvalidResetToken()
	}
	return nil
}
