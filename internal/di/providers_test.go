package di

import (
	"context"
	"io"
	"log/slog"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/sandeepkv93/refresh-session-auth/internal/config"
	"github.com/sandeepkv93/refresh-session-auth/internal/repository"
	"github.com/sandeepkv93/refresh-session-auth/internal/service"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestProvideRotationLockerFallsBackToMemory(t *testing.T) {
	client, cleanup, err := provideRedis(context.Background(), &config.Config{}, discardLogger())
	if err != nil {
		t.Fatalf("provide redis: %v", err)
	}
	defer cleanup()
	if client != nil {
		t.Fatal("expected nil client without REDIS_ADDR")
	}
	if _, ok := provideRotationLocker(client).(*service.InMemoryRotationLocker); !ok {
		t.Fatal("expected in-memory locker")
	}
}

func TestProvideRotationLockerUsesRedis(t *testing.T) {
	server := miniredis.RunT(t)
	client, cleanup, err := provideRedis(context.Background(), &config.Config{RedisAddr: server.Addr()}, discardLogger())
	if err != nil {
		t.Fatalf("provide redis: %v", err)
	}
	defer cleanup()
	if _, ok := provideRotationLocker(client).(*service.RedisRotationLocker); !ok {
		t.Fatal("expected redis locker")
	}
}

func TestProvideRedisFailsWhenUnreachable(t *testing.T) {
	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()
	if _, _, err := provideRedis(context.Background(), &config.Config{RedisAddr: addr}, discardLogger()); err == nil {
		t.Fatal("expected ping failure")
	}
}

func TestInitializeSessionServiceAgainstSQLite(t *testing.T) {
	cfg := &config.Config{
		DatabaseDriver: "sqlite",
		DatabaseURL:    "file:di_sessions?mode=memory&cache=shared",
		BcryptCost:     4,
	}
	db, cleanupDB, err := InitializeDatabase(cfg, discardLogger())
	if err != nil {
		t.Fatalf("initialize database: %v", err)
	}
	defer cleanupDB()
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc, cleanup, err := InitializeSessionService(cfg, discardLogger())
	if err != nil {
		t.Fatalf("initialize session service: %v", err)
	}
	defer cleanup()
	views, err := svc.ListActiveSessions(context.Background(), 1, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 0 {
		t.Fatalf("expected no sessions, got %d", len(views))
	}
}
