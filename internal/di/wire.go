//go:build wireinject
// +build wireinject

package di

import (
	"context"
	"log/slog"

	"github.com/google/wire"
	"gorm.io/gorm"

	"github.com/sandeepkv93/refresh-session-auth/internal/app"
	"github.com/sandeepkv93/refresh-session-auth/internal/config"
	"github.com/sandeepkv93/refresh-session-auth/internal/service"
)

func InitializeApp(ctx context.Context, cfg *config.Config) (*app.App, func(), error) {
	wire.Build(
		provideTelemetry,
		provideLogger,
		provideRuntime,
		StorageSet,
		SecuritySet,
		ServiceSet,
		HTTPSet,
		provideApp,
	)
	return nil, nil, nil
}

func InitializeDatabase(cfg *config.Config, logger *slog.Logger) (*gorm.DB, func(), error) {
	wire.Build(provideDB)
	return nil, nil, nil
}

func InitializeSessionService(cfg *config.Config, logger *slog.Logger) (*service.SessionService, func(), error) {
	wire.Build(
		StorageSet,
		provideSessionService,
	)
	return nil, nil, nil
}
