package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgrankin/accountd/internal/api"
)

func newTestApp(t *testing.T) (*fiber.App, *testEnv) {
	t.Helper()

	env := newTestEnv(t)
	handler := NewHandler(env.svc, newTestLogger(t))
	middleware := NewMiddleware(&env.cfg.Auth)

	app := fiber.New()
	app.Post(api.CreateAccount, handler.CreateAccount)
	app.Get(api.Verify, handler.VerifyEmail)
	app.Post(api.ResendVerification, handler.ResendVerification)
	app.Post(api.Login, handler.Login)
	app.Post(api.ForgotPassword, handler.ForgotPassword)
	app.Post(api.ResetPassword, handler.ResetPassword)
	app.Post(api.ActivateTwoFA, middleware.RequireSession(), handler.ActivateTwoFA)
	app.Post(api.VerifyTwoFAActivation, handler.VerifyTwoFAActivation)
	app.Post(api.RequestDeactivateTwoFA, middleware.RequireSession(), handler.RequestDeactivateTwoFA)
	app.Post(api.VerifyTwoFADeactivate, handler.VerifyTwoFADeactivation)
	app.Post(api.VerifyTwoFA, handler.VerifyTwoFA)

	return app, env
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &decoded))

	return resp.StatusCode, decoded
}

func TestHandler_CreateAccount(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantError  string
	}{
		{
			name:       "valid registration",
			body:       fiber.Map{"username": "alice", "email": "alice@example.com", "password": "secret1"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "username too short",
			body:       fiber.Map{"username": "al", "email": "alice@example.com", "password": "secret1"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid input data.",
		},
		{
			name:       "malformed email",
			body:       fiber.Map{"username": "alice", "email": "not-an-email", "password": "secret1"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid input data.",
		},
		{
			name:       "password too short",
			body:       fiber.Map{"username": "alice", "email": "alice@example.com", "password": "short"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid input data.",
		},
		{
			name:       "missing fields",
			body:       fiber.Map{"username": "alice"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid input data.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := newTestApp(t)

			status, body := doJSON(t, app, http.MethodPost, api.CreateAccount, tt.body, nil)
			assert.Equal(t, tt.wantStatus, status)

			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
				return
			}
			assert.Equal(t, "success", body["status"])
			assert.NotEmpty(t, body["token"])
		})
	}
}

func TestHandler_CreateAccount_Duplicate(t *testing.T) {
	app, _ := newTestApp(t)
	payload := fiber.Map{"username": "alice", "email": "alice@example.com", "password": "secret1"}

	status, _ := doJSON(t, app, http.MethodPost, api.CreateAccount, payload, nil)
	require.Equal(t, http.StatusOK, status)

	status, body := doJSON(t, app, http.MethodPost, api.CreateAccount, payload, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Username or email already taken", body["error"])
}

func TestHandler_VerifyEmail(t *testing.T) {
	app, env := newTestApp(t)
	user := registerUser(t, env, "alice", "alice@example.com", "secret1")

	t.Run("missing token query param", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodGet, api.Verify, nil, nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "token is required", body["error"])
	})

	t.Run("unknown token", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodGet, api.Verify+"?token=bogus", nil, nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Invalid verification token", body["error"])
	})

	t.Run("valid token", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodGet, api.Verify+"?token="+user.VerificationToken, nil, nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Email verified successfully", body["status"])
	})

	t.Run("second use is rejected", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodGet, api.Verify+"?token="+user.VerificationToken, nil, nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Email already verified", body["error"])
	})
}

func TestHandler_Login(t *testing.T) {
	app, env := newTestApp(t)
	user := registerUser(t, env, "alice", "alice@example.com", "secret1")
	require.NoError(t, env.svc.VerifyEmail(user.VerificationToken))

	t.Run("wrong password gets the generic message", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodPost, api.Login,
			fiber.Map{"username": "alice", "password": "wrong"}, nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Invalid username or password. If you haven't verified your email, please do so.", body["error"])
	})

	t.Run("unknown user gets the same message", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodPost, api.Login,
			fiber.Map{"username": "nobody", "password": "secret1"}, nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Invalid username or password. If you haven't verified your email, please do so.", body["error"])
	})

	t.Run("success returns a session token", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodPost, api.Login,
			fiber.Map{"username": "alice", "password": "secret1"}, nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "success", body["status"])
		assert.NotEmpty(t, body["token"])
	})
}

func TestHandler_ProtectedEndpoints(t *testing.T) {
	app, env := newTestApp(t)
	user := registerUser(t, env, "alice", "alice@example.com", "secret1")
	require.NoError(t, env.svc.VerifyEmail(user.VerificationToken))

	for _, path := range []string{api.ActivateTwoFA, api.RequestDeactivateTwoFA} {
		t.Run(path+" without header", func(t *testing.T) {
			status, body := doJSON(t, app, http.MethodPost, path, nil, nil)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, "No authorization header", body["error"])
		})

		t.Run(path+" with a garbage token", func(t *testing.T) {
			status, body := doJSON(t, app, http.MethodPost, path, nil,
				map[string]string{fiber.HeaderAuthorization: "Bearer not.a.jwt"})
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, "Invalid token", body["error"])
		})
	}

	t.Run("valid bearer token passes through", func(t *testing.T) {
		sessionToken, err := env.svc.GenerateSessionToken("alice", false)
		require.NoError(t, err)

		status, body := doJSON(t, app, http.MethodPost, api.ActivateTwoFA, nil,
			map[string]string{fiber.HeaderAuthorization: "Bearer " + sessionToken})
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "success", body["status"])
		assert.NotEmpty(t, body["temp_token"])
		assert.Contains(t, body["message"], "2FA activation code sent")
	})
}

// Drives the full 2FA login over the HTTP surface: enroll, challenge, complete.
func TestHandler_TwoFALoginFlow(t *testing.T) {
	app, env := newTestApp(t)
	user := registerUser(t, env, "alice", "alice@example.com", "secret1")
	require.NoError(t, env.svc.VerifyEmail(user.VerificationToken))

	sessionToken, err := env.svc.GenerateSessionToken("alice", false)
	require.NoError(t, err)

	status, body := doJSON(t, app, http.MethodPost, api.ActivateTwoFA, nil,
		map[string]string{fiber.HeaderAuthorization: "Bearer " + sessionToken})
	require.Equal(t, http.StatusOK, status)
	activationToken := body["temp_token"].(string)

	user, err = env.repo.GetUserByUsername("alice")
	require.NoError(t, err)
	require.NotNil(t, user.TempTwoFACode)

	status, body = doJSON(t, app, http.MethodPost, api.VerifyTwoFAActivation,
		fiber.Map{"username": "alice", "code": *user.TempTwoFACode, "token": activationToken}, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2FA activated.", body["message"])

	status, body = doJSON(t, app, http.MethodPost, api.Login,
		fiber.Map{"username": "alice", "password": "secret1"}, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2fa_required", body["status"])
	tempToken := body["temp_token"].(string)
	require.NotEmpty(t, tempToken)

	user, err = env.repo.GetUserByUsername("alice")
	require.NoError(t, err)
	require.NotNil(t, user.TwoFACode)

	status, body = doJSON(t, app, http.MethodPost, api.VerifyTwoFA,
		fiber.Map{"temp_token": tempToken, "code": "WRONG1"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid 2FA code.", body["error"])

	status, body = doJSON(t, app, http.MethodPost, api.VerifyTwoFA,
		fiber.Map{"temp_token": tempToken, "code": *user.TwoFACode}, nil)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, body["token"])

	claims, err := env.svc.ValidateSessionToken(body["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.True(t, claims.HasTwoFA)
}

func TestHandler_PasswordResetFlow(t *testing.T) {
	app, env := newTestApp(t)
	user := registerUser(t, env, "alice", "alice@example.com", "secret1")
	require.NoError(t, env.svc.VerifyEmail(user.VerificationToken))

	status, body := doJSON(t, app, http.MethodPost, api.ForgotPassword,
		fiber.Map{"email": "alice@example.com"}, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", body["status"])

	user, err := env.repo.GetUserByUsername("alice")
	require.NoError(t, err)
	require.NotNil(t, user.ResetPasswordToken)

	status, body = doJSON(t, app, http.MethodPost, api.ResetPassword,
		fiber.Map{"email": "alice@example.com", "token": "wrong", "new_password": "newsecret"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid reset token.", body["error"])

	status, _ = doJSON(t, app, http.MethodPost, api.ResetPassword,
		fiber.Map{"email": "alice@example.com", "token": *user.ResetPasswordToken, "new_password": "newsecret"}, nil)
	require.Equal(t, http.StatusOK, status)

	status, body = doJSON(t, app, http.MethodPost, api.Login,
		fiber.Map{"username": "alice", "password": "newsecret"}, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", body["status"])
}

func TestHandler_ResendVerification(t *testing.T) {
	app, env := newTestApp(t)
	registerUser(t, env, "alice", "alice@example.com", "secret1")

	status, body := doJSON(t, app, http.MethodPost, api.ResendVerification,
		fiber.Map{"email": "alice@example.com"}, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", body["status"])

	status, body = doJSON(t, app, http.MethodPost, api.ResendVerification,
		fiber.Map{"email": "nobody@example.com"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Email already verified or not found", body["error"])
}
