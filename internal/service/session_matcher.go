package service

import (
	"github.com/sandeepkv93/refresh-session-auth/internal/domain"
)

type TokenVerifier interface {
	Verify(token, storedHash string) bool
}

// SessionMatcher finds the session whose salted hash matches a presented
// refresh token. Each comparison is a full bcrypt evaluation, so cost grows
// linearly with the number of active sessions per user; that number is
// expected to stay small.
type SessionMatcher struct {
	verifier TokenVerifier
}

func NewSessionMatcher(verifier TokenVerifier) *SessionMatcher {
	return &SessionMatcher{verifier: verifier}
}

// FindMatch returns the first candidate, in the given order, whose hash
// matches plaintext.
func (m *SessionMatcher) FindMatch(plaintext string, candidates []domain.Session) (*domain.Session, error) {
	for i := range candidates {
		if m.verifier.Verify(plaintext, candidates[i].TokenHash) {
			matched := candidates[i]
			return &matched, nil
		}
	}
	return nil, ErrSessionNotFound
}
