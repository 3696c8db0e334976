package auth

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")

	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrInvalidVerification = errors.New("invalid verification token")
	ErrAlreadyVerified     = errors.New("email already verified")
	ErrTooManyAttempts     = errors.New("too many verification attempts")
	ErrVerificationExpired = errors.New("verification token expired")
	ErrResendNotAllowed    = errors.New("email already verified or not found")

	ErrInvalidTempToken   = errors.New("invalid temporary token")
	ErrInvalidTwoFACode   = errors.New("invalid 2fa code")
	ErrTwoFACodeExpired   = errors.New("2fa code expired")
	ErrNoPendingChallenge = errors.New("no pending 2fa challenge")
	ErrInvalidCodeOrToken = errors.New("invalid code or token")

	ErrEmailNotFound     = errors.New("email not found")
	ErrInvalidResetToken = errors.New("invalid reset token")
	ErrResetTokenExpired = errors.New("reset token expired")
)
