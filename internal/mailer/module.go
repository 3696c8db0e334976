package mailer

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mgrankin/accountd/internal/config"
)

// Module provides the outbound mail sender
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(config *config.AppConfig, log *zap.Logger) Sender {
					return NewSMTPSender(&config.Mail, log)
				},
			),
		),
	)
}
