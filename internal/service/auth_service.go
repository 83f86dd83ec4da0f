package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sandeepkv93/refresh-session-auth/internal/domain"
	"github.com/sandeepkv93/refresh-session-auth/internal/observability"
	"github.com/sandeepkv93/refresh-session-auth/internal/repository"
	"github.com/sandeepkv93/refresh-session-auth/internal/security"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 72
)

var ErrInvalidRegistration = errors.New("invalid registration input")

type TokenCodec interface {
	SignAccessToken(userID uint, email, tokenID string) (string, error)
	SignRefreshToken(userID uint, email string) (string, error)
	VerifyRefreshToken(raw string) (*security.Claims, error)
	DecodeExpiry(raw string) (time.Time, bool)
}

type CredentialVerifier interface {
	Verify(plaintext, storedHash string) bool
}

type SecretHasher interface {
	Hash(plaintext string) (string, error)
}

type TokenHasher interface {
	SecretHasher
	TokenVerifier
}

type ExpiryCalculator interface {
	ComputeExpiry(spec string) time.Time
}

// RequestMetadata is advisory provenance recorded on a session. It never
// takes part in authorization.
type RequestMetadata struct {
	UserAgent string
	IP        string
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type RegisterInput struct {
	Email    string
	Password string
	Username string
}

type AuthDependencies struct {
	Users             repository.UserRepository
	Sessions          repository.SessionRepository
	Codec             TokenCodec
	Credentials       CredentialVerifier
	Passwords         SecretHasher
	TokenHasher       TokenHasher
	Expiry            ExpiryCalculator
	Locker            RotationLocker
	RefreshExpirySpec string
	RotationLockTTL   time.Duration
	Logger            *slog.Logger
}

// AuthService owns the refresh-session lifecycle: login issues a session,
// refresh rotates it, logout revokes it. A session moves Active -> Revoked once.
type AuthService struct {
	users       repository.UserRepository
	sessions    repository.SessionRepository
	codec       TokenCodec
	credentials CredentialVerifier
	passwords   SecretHasher
	tokenHasher TokenHasher
	matcher     *SessionMatcher
	expiry      ExpiryCalculator
	locker      RotationLocker
	refreshSpec string
	lockTTL     time.Duration
	logger      *slog.Logger
	now         func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(dep AuthDependencies) *AuthService {
	logger := dep.Logger
	if logger == nil {
		logger = slog.Default()
	}
	locker := dep.Locker
	if locker == nil {
		locker = NewInMemoryRotationLocker()
	}
	lockTTL := dep.RotationLockTTL
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &AuthService{
		users:       dep.Users,
		sessions:    dep.Sessions,
		codec:       dep.Codec,
		credentials: dep.Credentials,
		passwords:   dep.Passwords,
		tokenHasher: dep.TokenHasher,
		matcher:     NewSessionMatcher(dep.TokenHasher),
		expiry:      dep.Expiry,
		locker:      locker,
		refreshSpec: dep.RefreshExpirySpec,
		lockTTL:     lockTTL,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	ctx, span := observability.Tracer().Start(ctx, "auth.register")
	defer span.End()

	email := repository.NormalizeEmail(in.Email)
	if err := validateRegistration(email, in.Password, in.Username); err != nil {
		observability.RecordAuthRegister(ctx, "invalid")
		return nil, err
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		observability.RecordAuthRegister(ctx, "duplicate")
		return nil, ErrDuplicateAccount
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, failSpan(span, err)
	}
	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, failSpan(span, fmt.Errorf("hash password: %w", err))
	}
	user := &domain.User{Email: email, Username: strings.TrimSpace(in.Username), PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			observability.RecordAuthRegister(ctx, "duplicate")
			return nil, ErrDuplicateAccount
		}
		return nil, failSpan(span, err)
	}
	observability.RecordAuthRegister(ctx, "success")
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// ValidateUser collapses unknown email and wrong password into
// ErrInvalidCredentials. Unknown emails still pay for one bcrypt comparison.
func (s *AuthService) ValidateUser(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.FindByEmail(ctx, repository.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.credentials.Verify(password, s.placeholderHash())
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.credentials.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string, meta RequestMetadata) (*TokenPair, error) {
	ctx, span := observability.Tracer().Start(ctx, "auth.login")
	defer span.End()

	user, err := s.ValidateUser(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			observability.RecordAuthLogin(ctx, "invalid_credentials")
			return nil, err
		}
		observability.RecordAuthLogin(ctx, "error")
		return nil, failSpan(span, err)
	}
	pair, err := s.IssueTokens(ctx, user, meta)
	if err != nil {
		observability.RecordAuthLogin(ctx, "error")
		return nil, failSpan(span, err)
	}
	observability.RecordAuthLogin(ctx, "success")
	return pair, nil
}

// IssueTokens mints a token pair and records a new active session for the
// refresh token. Existing sessions are untouched.
func (s *AuthService) IssueTokens(ctx context.Context, user *domain.User, meta RequestMetadata) (*TokenPair, error) {
	pair, session, err := s.mint(user, meta)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Insert(ctx, session); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	s.logger.InfoContext(ctx, "session issued", "user_id", user.ID, "session_id", session.ID)
	return pair, nil
}

// RefreshTokens consumes presented and returns a fresh pair. The presented
// token's session is revoked in the same transaction that stores the new one,
// so a token can be exchanged at most once.
func (s *AuthService) RefreshTokens(ctx context.Context, presented string, meta RequestMetadata) (*TokenPair, error) {
	ctx, span := observability.Tracer().Start(ctx, "auth.refresh")
	defer span.End()

	pair, err := s.refresh(ctx, span, presented, meta)
	switch {
	case err == nil:
		observability.RecordAuthRefresh(ctx, "success")
	case errors.Is(err, ErrUnauthorized):
		observability.RecordAuthRefresh(ctx, refreshFailureStatus(err))
		s.logger.WarnContext(ctx, "refresh rejected", "reason", refreshFailureStatus(err))
	default:
		observability.RecordAuthRefresh(ctx, "error")
		failSpan(span, err)
	}
	return pair, err
}

func (s *AuthService) refresh(ctx context.Context, span trace.Span, presented string, meta RequestMetadata) (*TokenPair, error) {
	matched, err := s.matchPresented(ctx, presented)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("session.id", int64(matched.ID)))
	if matched.ExpiredAt(s.now()) {
		return nil, unauthorized(ErrSessionExpired)
	}

	release, err := s.locker.Acquire(ctx, sessionLockKey(matched.ID), s.lockTTL)
	if err != nil {
		if errors.Is(err, ErrRotationInProgress) {
			return nil, unauthorized(err)
		}
		return nil, fmt.Errorf("acquire rotation lock: %w", err)
	}
	defer release(context.WithoutCancel(ctx))

	user, err := s.users.FindByID(ctx, matched.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, unauthorized(ErrSessionNotFound)
		}
		return nil, err
	}
	pair, next, err := s.mint(user, meta)
	if err != nil {
		return nil, err
	}
	rotated, err := s.sessions.Rotate(ctx, matched.ID, next)
	if err != nil {
		return nil, fmt.Errorf("rotate session: %w", err)
	}
	if !rotated {
		// another request revoked this session between match and rotate
		return nil, unauthorized(ErrSessionNotFound)
	}
	s.logger.InfoContext(ctx, "session rotated", "user_id", user.ID, "old_session_id", matched.ID, "session_id", next.ID)
	return pair, nil
}

// Logout revokes the session behind presented. An unknown or already revoked
// token is not an error, so logout reveals nothing about session state.
// Only a token that fails verification is reported, as ErrUnauthorized.
func (s *AuthService) Logout(ctx context.Context, presented string) error {
	ctx, span := observability.Tracer().Start(ctx, "auth.logout")
	defer span.End()

	matched, err := s.matchPresented(ctx, presented)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			observability.RecordAuthLogout(ctx, "no_session")
			return nil
		}
		if errors.Is(err, ErrUnauthorized) {
			observability.RecordAuthLogout(ctx, "invalid_token")
			return err
		}
		observability.RecordAuthLogout(ctx, "error")
		return failSpan(span, err)
	}
	changed, err := s.sessions.RevokeIfActive(ctx, matched.ID)
	if err != nil {
		observability.RecordAuthLogout(ctx, "error")
		return failSpan(span, fmt.Errorf("revoke session: %w", err))
	}
	if changed {
		s.logger.InfoContext(ctx, "session revoked", "user_id", matched.UserID, "session_id", matched.ID)
	}
	observability.RecordAuthLogout(ctx, "success")
	return nil
}

func (s *AuthService) matchPresented(ctx context.Context, presented string) (*domain.Session, error) {
	claims, err := s.codec.VerifyRefreshToken(presented)
	if err != nil {
		return nil, unauthorized(ErrInvalidToken)
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, unauthorized(ErrInvalidToken)
	}
	candidates, err := s.sessions.ListActiveForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	matched, err := s.matcher.FindMatch(presented, candidates)
	if err != nil {
		return nil, unauthorized(err)
	}
	return matched, nil
}

func (s *AuthService) mint(user *domain.User, meta RequestMetadata) (*TokenPair, *domain.Session, error) {
	tokenID := uuid.NewString()
	access, err := s.codec.SignAccessToken(user.ID, user.Email, tokenID)
	if err != nil {
		return nil, nil, err
	}
	refresh, err := s.codec.SignRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, nil, err
	}
	hash, err := s.tokenHasher.Hash(refresh)
	if err != nil {
		return nil, nil, fmt.Errorf("hash refresh token: %w", err)
	}
	expiresAt, ok := s.codec.DecodeExpiry(refresh)
	if !ok {
		expiresAt = s.expiry.ComputeExpiry(s.refreshSpec)
	}
	session := &domain.Session{
		UserID:    user.ID,
		TokenID:   tokenID,
		TokenHash: hash,
		ExpiresAt: expiresAt.UTC(),
		UserAgent: optional(meta.UserAgent, domain.MaxUserAgentLen),
		IP:        optional(meta.IP, domain.MaxIPLen),
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, session, nil
}

func (s *AuthService) placeholderHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.passwords.Hash("placeholder-password-for-timing")
	})
	return s.dummyHash
}

func validateRegistration(email, password, username string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: email is not valid", ErrInvalidRegistration)
	}
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return fmt.Errorf("%w: password must be %d to %d bytes", ErrInvalidRegistration, minPasswordLen, maxPasswordLen)
	}
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidRegistration)
	}
	return nil
}

func refreshFailureStatus(err error) string {
	switch {
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrRotationInProgress):
		return "rotation_in_progress"
	default:
		return "session_not_found"
	}
}

func failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// optional trims v to at most maxBytes without splitting a UTF-8 sequence.
// Provenance is advisory, so an oversized header must not fail the insert.
func optional(v string, maxBytes int) *string {
	v = strings.TrimSpace(v)
	if len(v) > maxBytes {
		cut := maxBytes
		for cut > 0 && !utf8.RuneStart(v[cut]) {
			cut--
		}
		v = v[:cut]
	}
	if v == "" {
		return nil
	}
	return &v
}
