// Package app holds the start-up steps every binary under cmd/ shares.
package app

import (
	"context"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/angkor-storefront/pkg/config"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
)

// Boot reads an optional .env file, loads config and returns the service
// logger built from it. Config errors are logged with a bootstrap logger.
func Boot(ctx context.Context, service string) (*config.Config, *logger.Logger, error) {
	boot := logger.New(logger.Options{ServiceName: service})
	if err := godotenv.Load(); err != nil {
		boot.Debug(ctx, "no .env file, using process environment")
	}
	cfg, err := config.Load()
	if err != nil {
		boot.Error(ctx, "failed to load config", err)
		return nil, nil, err
	}
	return cfg, logger.FromConfig(service, cfg.App), nil
}

// CloseLogged runs closeFn and logs a failure. Meant for defers.
func CloseLogged(ctx context.Context, logg *logger.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.WithoutCancel(ctx), "error closing "+what, err)
	}
}
