package auth

import (
	"time"
)

// User is the single row per account. Short-lived secrets are nullable and
// cleared on consumption; the verification token is kept after use with the
// verified flag flipped instead.
type User struct {
	ID                   uint   `gorm:"primaryKey"`
	Username             string `gorm:"uniqueIndex;not null"`
	Email                string `gorm:"uniqueIndex;not null"`
	PasswordHash         string `gorm:"not null"`
	VerificationToken    string `gorm:"index;not null;default:''"`
	Verified             bool   `gorm:"default:false"`
	VerificationAttempts int    `gorm:"default:0"`
	TokenExpiry          *time.Time
	ResetPasswordToken   *string
	ResetTokenExpiry     *time.Time
	HasTwoFA             bool       `gorm:"column:has_2fa;default:false"`
	TwoFACode            *string    `gorm:"column:two_fa_code;size:6"`
	TwoFAExpiry          *time.Time `gorm:"column:two_fa_expiry"`
	TempTwoFACode        *string    `gorm:"column:temp_2fa_code;size:6"`
	TempToken            *string    `gorm:"index;size:36"`
	TempTokenExpiry      *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (User) TableName() string {
	return "users"
}
