package auth

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mgrankin/accountd/internal/config"
	"github.com/mgrankin/accountd/internal/mailer"
	"github.com/mgrankin/accountd/internal/secret"
)

const (
	verificationTokenLength = 30
	resetTokenLength        = 30
	twoFACodeLength         = 6

	maxVerificationAttempts = 5

	verificationTokenTTL = 24 * time.Hour
	resetTokenTTL        = 24 * time.Hour
	twoFACodeTTL         = 3 * time.Minute
	tempTokenTTL         = 10 * time.Minute
)

// Service is the auth state machine. It mints and consumes short-lived
// secrets against the credential store and composes them into session tokens.
type Service struct {
	config     *config.AppConfig
	log        *zap.Logger
	repository Repository
	sender     mailer.Sender
}

// LoginResult is either a session token or a pending 2FA challenge, never both.
type LoginResult struct {
	Token         string
	TwoFARequired bool
	TempToken     string
}

func NewService(config *config.AppConfig, log *zap.Logger, repo Repository, sender mailer.Sender) *Service {
	return &Service{
		config:     config,
		log:        log,
		repository: repo,
		sender:     sender,
	}
}

func (s *Service) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func (s *Service) CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Register creates the account and returns a session token for it. With
// verification enabled the account starts unverified and the token is issued
// anyway; login stays blocked until the emailed link is used.
func (s *Service) Register(username, email, password string) (string, error) {
	verificationToken := ""
	verified := true

	if s.config.Auth.VerificationEnabled {
		token, err := secret.Alphanumeric(verificationTokenLength)
		if err != nil {
			return "", err
		}
		verificationToken = token
		verified = false

		link := fmt.Sprintf("%s/verify?token=%s", s.config.Links.VerificationBaseURL, verificationToken)
		body := fmt.Sprintf("Click on the link to verify your email: %s", link)
		if err := s.sender.Send(email, "Please verify your email", body); err != nil {
			return "", err
		}
	}

	hashedPassword, err := s.HashPassword(password)
	if err != nil {
		s.log.Error("failed to hash password", zap.Error(err))
		return "", err
	}

	tokenExpiry := time.Now().Add(verificationTokenTTL)
	user := &User{
		Username:          username,
		Email:             email,
		PasswordHash:      hashedPassword,
		VerificationToken: verificationToken,
		TokenExpiry:       &tokenExpiry,
		Verified:          verified,
	}

	if err := s.repository.CreateUser(user); err != nil {
		return "", err
	}

	s.log.Info("account created",
		zap.String("username", username),
		zap.Bool("verified", verified))

	return s.GenerateSessionToken(username, false)
}

// VerifyEmail consumes a verification link token. Rejections increment the
// attempt counter except when the account is already verified or the fixed
// cap has been reached; the cap is permanent for that token.
func (s *Service) VerifyEmail(token string) error {
	user, err := s.repository.GetUserByVerificationToken(token)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidVerification
		}
		return err
	}

	if user.Verified {
		return ErrAlreadyVerified
	}
	if user.VerificationAttempts >= maxVerificationAttempts {
		return ErrTooManyAttempts
	}
	if user.TokenExpiry == nil || time.Now().After(*user.TokenExpiry) {
		if err := s.repository.IncrementVerificationAttempts(token); err != nil {
			return err
		}
		return ErrVerificationExpired
	}

	if err := s.repository.MarkVerified(token); err != nil {
		return err
	}

	s.log.Info("email verified", zap.String("username", user.Username))
	return nil
}

// ResendVerification re-sends the stored token as-is; it is not rotated and
// its expiry is not re-checked here.
func (s *Service) ResendVerification(email string) error {
	user, err := s.repository.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrResendNotAllowed
		}
		return err
	}
	if user.Verified {
		return ErrResendNotAllowed
	}

	link := fmt.Sprintf("%s/verify?token=%s", s.config.Links.VerificationBaseURL, user.VerificationToken)
	body := fmt.Sprintf("Click on the link to verify your email: %s", link)
	return s.sender.Send(email, "Please verify your email", body)
}

// Login checks credentials. Not-found, wrong password and unverified all
// collapse into the same rejection so callers cannot tell which failed.
// An enrolled account gets a 2FA challenge instead of a session token.
func (s *Service) Login(username, password string) (*LoginResult, error) {
	user, err := s.repository.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.HashPassword("dummy") // Prevent timing attacks
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.Verified {
		return nil, ErrInvalidCredentials
	}

	if user.HasTwoFA {
		tempToken, err := s.issueLoginChallenge(user)
		if err != nil {
			return nil, err
		}
		return &LoginResult{TwoFARequired: true, TempToken: tempToken}, nil
	}

	token, err := s.GenerateSessionToken(user.Username, false)
	if err != nil {
		s.log.Error("failed to sign session token", zap.Error(err))
		return nil, err
	}

	return &LoginResult{Token: token}, nil
}

// issueLoginChallenge emails a fresh 6-character code and hands back a
// temp token. The email goes out before anything is persisted; a crash in
// between leaves a sent-but-unusable code the user can simply re-request.
func (s *Service) issueLoginChallenge(user *User) (string, error) {
	code, err := secret.Alphanumeric(twoFACodeLength)
	if err != nil {
		return "", err
	}

	body := fmt.Sprintf("Here is your 2FA code: %s", code)
	if err := s.sender.Send(user.Email, "Your 2FA code", body); err != nil {
		return "", err
	}

	tempToken := secret.TempToken()
	now := time.Now()
	err = s.repository.SetLoginChallenge(user.Username, code, now.Add(twoFACodeTTL), tempToken, now.Add(tempTokenTTL))
	if err != nil {
		return "", err
	}

	s.log.Info("2fa challenge issued", zap.String("username", user.Username))
	return tempToken, nil
}

// VerifyLoginTwoFA completes a 2FA login. A wrong or expired code does not
// consume the temp token, so the holder may retry with the correct code.
// On success the temp token is cleared; the code slot is left in place, it
// cannot be replayed without a live temp token.
func (s *Service) VerifyLoginTwoFA(tempToken, code string) (string, error) {
	user, err := s.repository.GetUserByTempToken(tempToken)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrInvalidTempToken
		}
		return "", err
	}

	if user.TwoFACode == nil || *user.TwoFACode != code {
		return "", ErrInvalidTwoFACode
	}
	if user.TwoFAExpiry == nil || time.Now().After(*user.TwoFAExpiry) {
		return "", ErrTwoFACodeExpired
	}

	token, err := s.GenerateSessionToken(user.Username, true)
	if err != nil {
		s.log.Error("failed to sign session token", zap.Error(err))
		return "", err
	}

	if err := s.repository.ClearLoginChallenge(tempToken); err != nil {
		return "", err
	}

	s.log.Info("2fa login completed", zap.String("username", user.Username))
	return token, nil
}

// RequestTwoFAActivation starts enrollment for the authenticated caller.
// The code/token pair it stores carries no expiry of its own.
func (s *Service) RequestTwoFAActivation(username string) (string, error) {
	return s.issueTempChallenge(username, "Your 2FA activation code", "Here is your 2FA activation code: %s")
}

// RequestTwoFADeactivation starts un-enrollment, symmetric to activation.
func (s *Service) RequestTwoFADeactivation(username string) (string, error) {
	return s.issueTempChallenge(username, "Your 2FA deactivation code", "Here is your 2FA deactivation code: %s")
}

func (s *Service) issueTempChallenge(username, subject, bodyFormat string) (string, error) {
	user, err := s.repository.GetUserByUsername(username)
	if err != nil {
		return "", err
	}

	code, err := secret.Alphanumeric(twoFACodeLength)
	if err != nil {
		return "", err
	}
	tempToken := secret.TempToken()

	if err := s.sender.Send(user.Email, subject, fmt.Sprintf(bodyFormat, code)); err != nil {
		return "", err
	}

	if err := s.repository.SetActivationChallenge(username, code, tempToken); err != nil {
		return "", err
	}

	s.log.Info("2fa enrollment challenge issued", zap.String("username", username))
	return tempToken, nil
}

// VerifyTwoFAActivation enables 2FA when username, code and token all match
// the stored pair. Both secrets are cleared on success and kept on mismatch.
func (s *Service) VerifyTwoFAActivation(username, code, token string) error {
	if err := s.checkTempChallenge(username, code, token); err != nil {
		return err
	}
	if err := s.repository.EnableTwoFA(username); err != nil {
		return err
	}
	s.log.Info("2fa activated", zap.String("username", username))
	return nil
}

// VerifyTwoFADeactivation disables 2FA; the login-challenge code and expiry
// are wiped along with the temp secrets.
func (s *Service) VerifyTwoFADeactivation(username, code, token string) error {
	if err := s.checkTempChallenge(username, code, token); err != nil {
		return err
	}
	if err := s.repository.DisableTwoFA(username); err != nil {
		return err
	}
	s.log.Info("2fa deactivated", zap.String("username", username))
	return nil
}

func (s *Service) checkTempChallenge(username, code, token string) error {
	user, err := s.repository.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrNoPendingChallenge
		}
		return err
	}
	if user.TempTwoFACode == nil || user.TempToken == nil {
		return ErrNoPendingChallenge
	}
	if *user.TempTwoFACode != code || *user.TempToken != token {
		return ErrInvalidCodeOrToken
	}
	return nil
}

// ForgotPassword always reports success; the keyed write for an unknown
// email touches zero rows, which masks account enumeration here.
func (s *Service) ForgotPassword(email string) error {
	token, err := secret.Alphanumeric(resetTokenLength)
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/reset_password?token=%s", s.config.Links.ResetPasswordBaseURL, token)
	body := fmt.Sprintf("Click on the link to reset your password: %s", link)
	if err := s.sender.Send(email, "Reset Your Password", body); err != nil {
		return err
	}

	return s.repository.SetResetToken(email, token, time.Now().Add(resetTokenTTL))
}

func (s *Service) ResetPassword(email, token, newPassword string) error {
	user, err := s.repository.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrEmailNotFound
		}
		return err
	}

	if user.ResetPasswordToken == nil || *user.ResetPasswordToken != token {
		return ErrInvalidResetToken
	}
	if user.ResetTokenExpiry == nil || time.Now().After(*user.ResetTokenExpiry) {
		return ErrResetTokenExpired
	}

	hashedPassword, err := s.HashPassword(newPassword)
	if err != nil {
		s.log.Error("failed to hash password", zap.Error(err))
		return err
	}

	if err := s.repository.UpdatePassword(email, hashedPassword); err != nil {
		return err
	}

	s.log.Info("password reset", zap.String("username", user.Username))
	return nil
}
