package model

import "time"

type TokenType string

const (
	TokenConfirmation TokenType = "CONFIRMATION"
	TokenRefresh      TokenType = "REFRESH"
)

type Token struct {
	ID     uint   `gorm:"primaryKey;autoIncrement"`
	UserID string `gorm:"index;size:16;not null"`
	// SHA-256 hex digest, the raw value only ever leaves in a mail or cookie
	Token     string    `gorm:"uniqueIndex;size:64;not null"`
	Type      TokenType `gorm:"size:16;index;not null"`
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"index;not null"`
}

// ValidAt reports whether the token can still be used at t.
func (t *Token) ValidAt(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}
