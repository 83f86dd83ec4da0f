package service

import (
	"context"

	"github.com/sandeepkv93/refresh-session-auth/internal/domain"
)

type AuthServiceInterface interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string, meta RequestMetadata) (*TokenPair, error)
	RefreshTokens(ctx context.Context, presented string, meta RequestMetadata) (*TokenPair, error)
	Logout(ctx context.Context, presented string) error
}

type SessionServiceInterface interface {
	ListActiveSessions(ctx context.Context, userID uint, currentTokenID string) ([]SessionView, error)
	RevokeSession(ctx context.Context, userID, sessionID uint) (bool, error)
	RevokeOtherSessions(ctx context.Context, userID uint, currentTokenID string) (int64, error)
	RevokeAll(ctx context.Context, userID uint) (int64, error)
}

var (
	_ AuthServiceInterface    = (*AuthService)(nil)
	_ SessionServiceInterface = (*SessionService)(nil)
)
