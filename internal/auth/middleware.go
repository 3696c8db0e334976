package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/mgrankin/accountd/internal/config"
)

// userLocalKey is the request-locals key holding the authenticated username
const userLocalKey = "user"

type Middleware struct {
	config *config.AuthConfig
}

func NewMiddleware(config *config.AuthConfig) *Middleware {
	return &Middleware{
		config: config,
	}
}

// RequireSession validates the bearer session token and stores the subject
// username in the request locals.
func (m *Middleware) RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return unauthorized(c, "No authorization header")
		}

		token := strings.TrimPrefix(header, "Bearer ")

		claims, err := parseSessionToken(token, m.config.JWTSecret)
		if err != nil {
			return unauthorized(c, "Invalid token")
		}

		c.Locals(userLocalKey, claims.Subject)
		return c.Next()
	}
}

// UsernameFromContext returns the username stored by RequireSession.
func UsernameFromContext(c *fiber.Ctx) (string, error) {
	username, ok := c.Locals(userLocalKey).(string)
	if !ok || username == "" {
		return "", errors.New("user not found in context")
	}
	return username, nil
}
