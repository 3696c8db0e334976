package server

import (
	"go.uber.org/zap"
)

// NewLogger builds the process-wide logger for the given environment.
func NewLogger(env string) (*zap.Logger, error) {
	if env == EnvProduction {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
