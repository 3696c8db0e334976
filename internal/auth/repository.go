package auth

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Repository is the credential store contract consumed by the auth service.
// Reads and their follow-up writes are not wrapped in a transaction; two
// concurrent requests for the same account can interleave between them.
type Repository interface {
	CreateUser(user *User) error
	GetUserByUsername(username string) (*User, error)
	GetUserByEmail(email string) (*User, error)
	GetUserByVerificationToken(token string) (*User, error)
	GetUserByTempToken(tempToken string) (*User, error)

	MarkVerified(token string) error
	IncrementVerificationAttempts(token string) error

	SetLoginChallenge(username, code string, codeExpiry time.Time, tempToken string, tokenExpiry time.Time) error
	ClearLoginChallenge(tempToken string) error
	SetActivationChallenge(username, code, tempToken string) error
	EnableTwoFA(username string) error
	DisableTwoFA(username string) error

	SetResetToken(email, token string, expiry time.Time) error
	UpdatePassword(email, passwordHash string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateUser(user *User) error {
	if err := r.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		return err
	}
	return nil
}

func (r *repository) GetUserByUsername(username string) (*User, error) {
	return r.first("username = ?", username)
}

func (r *repository) GetUserByEmail(email string) (*User, error) {
	return r.first("email = ?", email)
}

func (r *repository) GetUserByVerificationToken(token string) (*User, error) {
	return r.first("verification_token = ?", token)
}

func (r *repository) GetUserByTempToken(tempToken string) (*User, error) {
	return r.first("temp_token = ?", tempToken)
}

func (r *repository) first(query string, arg any) (*User, error) {
	var user User
	if err := r.db.Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// MarkVerified flips the verified flag and counts the attempt in one write.
// The consumed token is kept on the row; the flag is what blocks reuse.
func (r *repository) MarkVerified(token string) error {
	return r.db.Model(&User{}).
		Where("verification_token = ?", token).
		Updates(map[string]any{
			"verified":              true,
			"verification_attempts": gorm.Expr("verification_attempts + 1"),
		}).Error
}

func (r *repository) IncrementVerificationAttempts(token string) error {
	return r.db.Model(&User{}).
		Where("verification_token = ?", token).
		Update("verification_attempts", gorm.Expr("verification_attempts + 1")).Error
}

func (r *repository) SetLoginChallenge(username, code string, codeExpiry time.Time, tempToken string, tokenExpiry time.Time) error {
	return r.db.Model(&User{}).
		Where("username = ?", username).
		Updates(map[string]any{
			"two_fa_code":       code,
			"two_fa_expiry":     codeExpiry,
			"temp_token":        tempToken,
			"temp_token_expiry": tokenExpiry,
		}).Error
}

func (r *repository) ClearLoginChallenge(tempToken string) error {
	return r.db.Model(&User{}).
		Where("temp_token = ?", tempToken).
		Updates(map[string]any{
			"temp_token":        nil,
			"temp_token_expiry": nil,
		}).Error
}

// SetActivationChallenge stores the combined code/token pair used by the
// activation and deactivation flows. This pair carries no expiry column.
func (r *repository) SetActivationChallenge(username, code, tempToken string) error {
	return r.db.Model(&User{}).
		Where("username = ?", username).
		Updates(map[string]any{
			"temp_2fa_code": code,
			"temp_token":    tempToken,
		}).Error
}

func (r *repository) EnableTwoFA(username string) error {
	return r.db.Model(&User{}).
		Where("username = ?", username).
		Updates(map[string]any{
			"has_2fa":       true,
			"temp_2fa_code": nil,
			"temp_token":    nil,
		}).Error
}

func (r *repository) DisableTwoFA(username string) error {
	return r.db.Model(&User{}).
		Where("username = ?", username).
		Updates(map[string]any{
			"has_2fa":       false,
			"two_fa_code":   nil,
			"two_fa_expiry": nil,
			"temp_2fa_code": nil,
			"temp_token":    nil,
		}).Error
}

// SetResetToken writes the reset secret keyed by email. An unknown email
// updates zero rows and is still a success, masking account enumeration.
func (r *repository) SetResetToken(email, token string, expiry time.Time) error {
	return r.db.Model(&User{}).
		Where("email = ?", email).
		Updates(map[string]any{
			"reset_password_token": token,
			"reset_token_expiry":   expiry,
		}).Error
}

func (r *repository) UpdatePassword(email, passwordHash string) error {
	return r.db.Model(&User{}).
		Where("email = ?", email).
		Updates(map[string]any{
			"password_hash":        passwordHash,
			"reset_password_token": nil,
			"reset_token_expiry":   nil,
		}).Error
}
