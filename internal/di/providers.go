package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sandeepkv93/refresh-session-auth/internal/app"
	"github.com/sandeepkv93/refresh-session-auth/internal/config"
	"github.com/sandeepkv93/refresh-session-auth/internal/http/handler"
	"github.com/sandeepkv93/refresh-session-auth/internal/http/router"
	"github.com/sandeepkv93/refresh-session-auth/internal/observability"
	"github.com/sandeepkv93/refresh-session-auth/internal/repository"
	"github.com/sandeepkv93/refresh-session-auth/internal/security"
	"github.com/sandeepkv93/refresh-session-auth/internal/service"
)

var StorageSet = wire.NewSet(
	provideDB,
	repository.NewUserRepository,
	repository.NewSessionRepository,
)

var SecuritySet = wire.NewSet(
	provideJWTManager,
	providePasswordHasher,
	provideTokenHasher,
	security.NewExpiryCalculator,
)

var ServiceSet = wire.NewSet(
	provideRedis,
	provideRotationLocker,
	provideAuthService,
	provideSessionService,
	wire.Bind(new(service.AuthServiceInterface), new(*service.AuthService)),
	wire.Bind(new(service.SessionServiceInterface), new(*service.SessionService)),
)

var HTTPSet = wire.NewSet(
	provideAuthHandler,
	provideUserHandler,
	provideRouter,
	provideHTTPServer,
)

type telemetry struct {
	logger  *slog.Logger
	runtime *observability.Runtime
}

func provideTelemetry(ctx context.Context, cfg *config.Config) (*telemetry, func(), error) {
	logger, lp, err := observability.NewLogger(ctx, cfg, os.Stdout)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	rt, err := observability.InitRuntime(ctx, cfg, logger, lp)
	if err != nil {
		if lp != nil {
			_ = lp.Shutdown(ctx)
		}
		return nil, nil, err
	}
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rt.Shutdown(shutdownCtx)
	}
	return &telemetry{logger: logger, runtime: rt}, cleanup, nil
}

func provideLogger(t *telemetry) *slog.Logger { return t.logger }

func provideRuntime(t *telemetry) *observability.Runtime { return t.runtime }

func provideDB(cfg *config.Config, logger *slog.Logger) (*gorm.DB, func(), error) {
	db, err := repository.Open(cfg.DatabaseDriver, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("database handle: %w", err)
	}
	cleanup := func() {
		if err := sqlDB.Close(); err != nil {
			logger.Warn("close database", "error", err)
		}
	}
	return db, cleanup, nil
}

// provideRedis returns a nil client when REDIS_ADDR is unset.
func provideRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, func(), error) {
	if cfg.RedisAddr == "" {
		return nil, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info("rotation locks backed by redis", "addr", cfg.RedisAddr)
	return client, func() { _ = client.Close() }, nil
}

func provideRotationLocker(client *redis.Client) service.RotationLocker {
	if client == nil {
		return service.NewInMemoryRotationLocker()
	}
	return service.NewRedisRotationLocker(client, "")
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTOptions())
}

func providePasswordHasher(cfg *config.Config) *security.PasswordHasher {
	return security.NewPasswordHasher(cfg.BcryptCost)
}

func provideTokenHasher(cfg *config.Config) *security.TokenHasher {
	return security.NewTokenHasher(cfg.BcryptCost)
}

func provideAuthService(
	cfg *config.Config,
	logger *slog.Logger,
	users repository.UserRepository,
	sessions repository.SessionRepository,
	jwtMgr *security.JWTManager,
	passwords *security.PasswordHasher,
	tokenHasher *security.TokenHasher,
	expiry *security.ExpiryCalculator,
	locker service.RotationLocker,
) *service.AuthService {
	return service.NewAuthService(service.AuthDependencies{
		Users:             users,
		Sessions:          sessions,
		Codec:             jwtMgr,
		Credentials:       passwords,
		Passwords:         passwords,
		TokenHasher:       tokenHasher,
		Expiry:            expiry,
		Locker:            locker,
		RefreshExpirySpec: cfg.JWTRefreshExpiresIn,
		RotationLockTTL:   cfg.RotationLockTTL,
		Logger:            logger,
	})
}

func provideSessionService(sessions repository.SessionRepository) *service.SessionService {
	return service.NewSessionService(sessions)
}

func provideAuthHandler(cfg *config.Config, authSvc service.AuthServiceInterface) *handler.AuthHandler {
	return handler.NewAuthHandler(authSvc, cfg.RefreshCookie())
}

func provideUserHandler(users repository.UserRepository, sessions service.SessionServiceInterface) *handler.UserHandler {
	return handler.NewUserHandler(users, sessions)
}

func provideRouter(cfg *config.Config, authHandler *handler.AuthHandler, userHandler *handler.UserHandler, jwtMgr *security.JWTManager) http.Handler {
	return router.NewRouter(router.Dependencies{
		AuthHandler:       authHandler,
		UserHandler:       userHandler,
		AccessTokens:      jwtMgr,
		AuthRateLimitRPM:  cfg.AuthRateLimitRPM,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		EnableOTelHTTP:    cfg.OTELEnableHTTP,
	})
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func provideApp(cfg *config.Config, logger *slog.Logger, server *http.Server, rt *observability.Runtime) *app.App {
	return app.New(cfg, logger, server, rt)
}
