package auth

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handler struct {
	service  *Service
	log      *zap.Logger
	validate *validator.Validate
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	return &Handler{
		service:  service,
		log:      log,
		validate: validator.New(),
	}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type resendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

type verifyTwoFARequest struct {
	TempToken string `json:"temp_token" validate:"required"`
	Code      string `json:"code" validate:"required"`
}

type twoFAVerificationRequest struct {
	Username string `json:"username" validate:"required"`
	Code     string `json:"code" validate:"required"`
	Token    string `json:"token" validate:"required"`
}

func (h *Handler) CreateAccount(c *fiber.Ctx) error {
	var req registerRequest
	if err := h.parseBody(c, &req); err != nil {
		return err
	}

	token, err := h.service.Register(req.Username, req.Email, req.Password)
	if err != nil {
		return h.serviceError(c, err)
	}

	return c.JSON(fiber.Map{"status": "success", "token": token})
}

func (h *Handler) VerifyEmail(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return badRequest(c, "token is required")
	}

	if err := h.service.VerifyEmail(token); err != nil {
		return h.serviceError(c, err)
	}

	return c.JSON(fiber.Map{"status": "Email verified successfully"})
}

func (h *Handler) ResendVerification(c *fiber.Ctx) error {
	var req resendVerificationRequest
	if err := h.parseBody(c, &req); err != nil {
		return err
	}

	if err := h.service.ResendVerification(req.Email); err != nil {
		return h.serviceError(c, err)
	}

	return c.JSON(fiber.Map{"status": "success"})
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := h.parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.service.Login(req.Username, req.Password)
	if err != nil {
		return h.serviceError(c, err)
	}

	if result.TwoFARequired {
		return c.JSON(fiber.Map{"status": "2fa_required", "temp_token": result.TempToken})
	}

	return c.JSON(fiber.Map{"status": "success", "token": result.Token})
}

func (h *Handler) VerifyTwoFA(c *fiber.Ctx) error {
	var req verifyTwoFARequest
	if err := h.parseBody(c, &req); err != nil {
		return err
	}

	token, err := h.service.VerifyLoginTwoFA(req.TempToken, req.Code)
	if err != nil {
		return h.serviceError(c, err)
	}

	return c.JSON(fiber.Map{"status": "success", "token": token})
}

func (h *Handler) ActivateTwoFA(c *fiber.Ctx) error {
	username, err := UsernameFromContext(c)
	if err != nil {
		return unauthorized(c, "Invalid token")
	}

	tempToken, err := h.service.RequestTwoFAActivation(username)
	if err != nil {
		return h.serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":     "success",
		"message":    "2FA activation code sent. Check your email and submit the code to finalize activation.",
		"temp_token": tempToken,
	})
}

func (h *Handler) VerifyTwoFAActivation(c *fiber.Ctx) error {
	var req twoFAVerificationRequest
	if err := h.parseBody(c, &req); err != nil {
		return err
	}

	if err := h.service.VerifyTwoFAActivation(req.Username, req.Code, req.Token); err != nil {
		return h.serviceError(c, err)
	}

	return c.JSON(fiber.Map{"status": "success", "message": "2FA activated."})
}

func (h *Handler) RequestDeactivateTwoFA(c *fiber.Ctx) error {
	username, err := UsernameFromContext(c)
	if err != nil {
		return unauthorized(c, "Invalid token")
	}

	tempToken, err := h.service.RequestTwoFADeactivation(username)
	if err != nil {
		return h.serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":     "success",
		"message":    "2FA deactivation code sent. Check your email and submit the code to finalize deactivation.",
		"temp_token": tempToken,
	})
}

func (h *Handler) VerifyTwoFADeactivation(c *fiber.Ctx) error {
	var req twoFAVerificationRequest
	if err := h.parseBody(c, &req); err != nil {
		return err
	}

	if err := h.service.VerifyTwoFADeactivation(req.Username, req.Code, req.Token); err != nil {
		return h.serviceError(c, err)
	}

	return c.JSON(fiber.Map{"status": "success", "message": "2FA deactivated."})
}

func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := h.parseBody(c, &req); err != nil {
		return err
	}

	if err := h.service.ForgotPassword(req.Email); err != nil {
		return h.serviceError(c, err)
	}

	return c.JSON(fiber.Map{"status": "success"})
}

func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := h.parseBody(c, &req); err != nil {
		return err
	}

	if err := h.service.ResetPassword(req.Email, req.Token, req.NewPassword); err != nil {
		return h.serviceError(c, err)
	}

	return c.JSON(fiber.Map{"status": "success"})
}

func (h *Handler) parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		h.log.Warn("malformed request body", zap.Error(err))
		return badRequest(c, "Invalid input data.")
	}
	if err := h.validate.Struct(req); err != nil {
		h.log.Warn("invalid request",
			zap.String("path", c.Path()),
			zap.Error(err))
		return badRequest(c, "Invalid input data.")
	}
	return nil
}

// serviceError maps business rejections to 400 with their client-facing
// message; anything else is a store/mailer/signing failure and becomes an
// opaque 500.
func (h *Handler) serviceError(c *fiber.Ctx, err error) error {
	for sentinel, message := range clientMessages {
		if errors.Is(err, sentinel) {
			return badRequest(c, message)
		}
	}

	h.log.Error("internal error",
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error"})
}

var clientMessages = map[error]string{
	ErrUserExists:          "Username or email already taken",
	ErrUserNotFound:        "User not found",
	ErrInvalidCredentials:  "Invalid username or password. If you haven't verified your email, please do so.",
	ErrInvalidVerification: "Invalid verification token",
	ErrAlreadyVerified:     "Email already verified",
	ErrTooManyAttempts:     "Too many verification attempts",
	ErrVerificationExpired: "Verification token has expired",
	ErrResendNotAllowed:    "Email already verified or not found",
	ErrInvalidTempToken:    "Invalid temporary token.",
	ErrInvalidTwoFACode:    "Invalid 2FA code.",
	ErrTwoFACodeExpired:    "2FA code has expired.",
	ErrNoPendingChallenge:  "User not found or no pending 2FA activation",
	ErrInvalidCodeOrToken:  "Invalid code or token",
	ErrEmailNotFound:       "Email not found.",
	ErrInvalidResetToken:   "Invalid reset token.",
	ErrResetTokenExpired:   "Reset token has expired.",
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": message})
}
