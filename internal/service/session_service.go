package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sandeepkv93/refresh-session-auth/internal/repository"
)

type SessionView struct {
	ID        uint      `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	UserAgent string    `json:"user_agent,omitempty"`
	IP        string    `json:"ip,omitempty"`
	IsCurrent bool      `json:"is_current"`
}

// SessionService serves a user's view of their own sessions. The caller's
// current session is identified by the jti of its access token, which mint
// stores on the session as TokenID.
type SessionService struct {
	sessionRepo repository.SessionRepository
}

func NewSessionService(sessionRepo repository.SessionRepository) *SessionService {
	return &SessionService{sessionRepo: sessionRepo}
}

// ListActiveSessions lists the user's unrevoked sessions. The one whose
// TokenID equals currentTokenID is flagged IsCurrent.
func (s *SessionService) ListActiveSessions(ctx context.Context, userID uint, currentTokenID string) ([]SessionView, error) {
	sessions, err := s.sessionRepo.ListActiveForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, SessionView{
			ID:        session.ID,
			CreatedAt: session.CreatedAt,
			ExpiresAt: session.ExpiresAt,
			UserAgent: deref(session.UserAgent),
			IP:        deref(session.IP),
			IsCurrent: currentTokenID != "" && session.TokenID == currentTokenID,
		})
	}
	return views, nil
}

// RevokeSession revokes one of the user's sessions. It reports false when the
// session was already revoked, and ErrSessionNotFound when it does not exist
// or belongs to another user.
func (s *SessionService) RevokeSession(ctx context.Context, userID, sessionID uint) (bool, error) {
	changed, err := s.sessionRepo.RevokeByIDForUser(ctx, userID, sessionID)
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	if changed {
		return true, nil
	}
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return false, ErrSessionNotFound
		}
		return false, err
	}
	if session.UserID != userID {
		return false, ErrSessionNotFound
	}
	return false, nil
}

// RevokeOtherSessions revokes every active session of the user except the
// one currentTokenID belongs to. It fails with ErrSessionNotFound when that
// session is no longer active, rather than revoking everything.
func (s *SessionService) RevokeOtherSessions(ctx context.Context, userID uint, currentTokenID string) (int64, error) {
	if currentTokenID == "" {
		return 0, ErrSessionNotFound
	}
	sessions, err := s.sessionRepo.ListActiveForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, session := range sessions {
		if session.TokenID == currentTokenID {
			return s.sessionRepo.RevokeOthersForUser(ctx, userID, session.ID)
		}
	}
	return 0, ErrSessionNotFound
}

func (s *SessionService) RevokeAll(ctx context.Context, userID uint) (int64, error) {
	return s.sessionRepo.RevokeAllForUser(ctx, userID)
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
