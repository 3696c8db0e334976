package auth

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mgrankin/accountd/internal/config"
	"github.com/mgrankin/accountd/internal/database"
	"github.com/mgrankin/accountd/internal/mailer"
)

// NewModule returns the auth module options
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			// Provide repository
			fx.Annotate(
				func(manager *database.Manager) Repository {
					return NewRepository(manager.DB())
				},
			),
			// Provide service
			fx.Annotate(
				func(config *config.AppConfig, log *zap.Logger, repo Repository, sender mailer.Sender) *Service {
					return NewService(config, log, repo, sender)
				},
			),
			// Provide handler
			fx.Annotate(
				func(svc *Service, log *zap.Logger) *Handler {
					return NewHandler(svc, log)
				},
			),
			// Provide middleware
			fx.Annotate(
				func(config *config.AppConfig) *Middleware {
					return NewMiddleware(&config.Auth)
				},
			),
		),
	)
}
