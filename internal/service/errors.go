package service

import (
	"errors"
	"fmt"

	"github.com/sandeepkv93/refresh-session-auth/internal/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDuplicateAccount   = errors.New("email already in use")
	ErrInvalidToken       = security.ErrInvalidToken
	ErrSessionNotFound    = errors.New("refresh session not found")
	ErrSessionExpired     = errors.New("refresh session expired")
	ErrRotationInProgress = errors.New("refresh session rotation in progress")

	// ErrUnauthorized wraps every refresh-path failure. Transport code should
	// only test for this; the specific cause stays reachable via errors.Is.
	ErrUnauthorized = errors.New("unauthorized")
)

func unauthorized(cause error) error {
	return fmt.Errorf("%w: %w", ErrUnauthorized, cause)
}
