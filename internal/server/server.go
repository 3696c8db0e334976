package server

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mgrankin/accountd/internal/api"
	"github.com/mgrankin/accountd/internal/auth"
	"github.com/mgrankin/accountd/internal/config"
)

type Server struct {
	config *config.AppConfig
	log    *zap.Logger
	app    *fiber.App
}

type Params struct {
	fx.In

	Config         *config.AppConfig
	Logger         *zap.Logger
	AuthHandler    *auth.Handler
	AuthMiddleware *auth.Middleware
}

func NewServer(p Params) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:           p.Config.Server.ReadTimeout,
		WriteTimeout:          p.Config.Server.WriteTimeout,
		IdleTimeout:           p.Config.Server.IdleTimeout,
		DisableStartupMessage: true,
	})

	app.Use(cors.New())
	app.Use(requestLogger(p.Logger))

	registerRoutes(app, p.AuthHandler, p.AuthMiddleware)

	return &Server{
		config: p.Config,
		log:    p.Logger,
		app:    app,
	}
}

func registerRoutes(app *fiber.App, h *auth.Handler, m *auth.Middleware) {
	routes := []struct {
		method  string
		path    string
		handler fiber.Handler
	}{
		{fiber.MethodPost, api.CreateAccount, h.CreateAccount},
		{fiber.MethodGet, api.Verify, h.VerifyEmail},
		{fiber.MethodPost, api.ResendVerification, h.ResendVerification},
		{fiber.MethodPost, api.Login, h.Login},
		{fiber.MethodPost, api.ForgotPassword, h.ForgotPassword},
		{fiber.MethodPost, api.ResetPassword, h.ResetPassword},
		{fiber.MethodPost, api.ActivateTwoFA, h.ActivateTwoFA},
		{fiber.MethodPost, api.VerifyTwoFAActivation, h.VerifyTwoFAActivation},
		{fiber.MethodPost, api.RequestDeactivateTwoFA, h.RequestDeactivateTwoFA},
		{fiber.MethodPost, api.VerifyTwoFADeactivate, h.VerifyTwoFADeactivation},
		{fiber.MethodPost, api.VerifyTwoFA, h.VerifyTwoFA},
	}

	for _, r := range routes {
		if api.ProtectedEndpoints[r.path] {
			app.Add(r.method, r.path, m.RequireSession(), r.handler)
			continue
		}
		app.Add(r.method, r.path, r.handler)
	}
}

// requestLogger logs each request with method, path, status and latency.
func requestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)
		status := c.Response().StatusCode()

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
			zap.Int("status", status),
			zap.Duration("latency", latency),
		}

		if err != nil {
			log.Error("http request error", append(fields, zap.Error(err))...)
			return err
		}

		log.Info("http request", fields...)
		return nil
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port)

	s.log.Info("Starting HTTP server", zap.String("address", addr))

	if err := s.app.Listen(addr); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}

	return nil
}

func (s *Server) Stop() {
	s.log.Info("shutting down HTTP server")
	if err := s.app.Shutdown(); err != nil {
		s.log.Error("failed to shut down cleanly", zap.Error(err))
	}
}
