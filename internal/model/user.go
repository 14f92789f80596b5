// Package model defines database models
package model

import "time"

type UserStatus string

const (
	StatusPending UserStatus = "PENDING"
	StatusActive  UserStatus = "ACTIVE"
)

type User struct {
	ID    string `gorm:"primaryKey;size:16" json:"id"`
	Name  string `gorm:"size:100;not null" json:"name"`
	Email string `gorm:"uniqueIndex;size:320;not null" json:"email"`
	// Empty for accounts created through Google that never set a password
	PasswordHash string     `gorm:"not null;default:''" json:"-"`
	Status       UserStatus `gorm:"size:16;not null;default:PENDING;index" json:"status"`
	GoogleID     *string    `gorm:"uniqueIndex" json:"-"`

	// The secret is written on enable and only trusted once TwoFactorEnabled flips
	TwoFactorSecret  *string `json:"-"`
	TwoFactorEnabled bool    `gorm:"not null;default:false" json:"twoFactorEnabled"`

	// TOTP time step of the last accepted code
	TwoFactorLastStep int64 `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Tokens []Token `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (u *User) Active() bool {
	return u.Status == StatusActive
}
