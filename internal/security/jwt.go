package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// ErrInvalidToken covers every verification failure: bad signature, malformed,
// expired, wrong issuer or audience, wrong token type.
var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	TokenType string `json:"token_type"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

type JWTOptions struct {
	Issuer        string
	Audience      string
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// JWTManager signs and verifies access and refresh tokens. Each kind has its
// own secret and lifetime.
type JWTManager struct {
	issuer        string
	audience      string
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewJWTManager(opts JWTOptions) *JWTManager {
	return &JWTManager{
		issuer:        opts.Issuer,
		audience:      opts.Audience,
		accessSecret:  []byte(opts.AccessSecret),
		refreshSecret: []byte(opts.RefreshSecret),
		accessTTL:     opts.AccessTTL,
		refreshTTL:    opts.RefreshTTL,
		now:           time.Now,
	}
}

// SignAccessToken uses tokenID as the jti so the token can be traced back to
// the session it was issued with. An empty tokenID gets a random one.
func (m *JWTManager) SignAccessToken(userID uint, email, tokenID string) (string, error) {
	return m.sign(tokenTypeAccess, userID, email, tokenID, m.accessTTL, m.accessSecret)
}

// SignRefreshToken carries only the subject; email is accepted for symmetry with
// SignAccessToken but not embedded.
func (m *JWTManager) SignRefreshToken(userID uint, _ string) (string, error) {
	return m.sign(tokenTypeRefresh, userID, "", "", m.refreshTTL, m.refreshSecret)
}

func (m *JWTManager) sign(tokenType string, userID uint, email, tokenID string, ttl time.Duration, secret []byte) (string, error) {
	if tokenID == "" {
		tokenID = uuid.NewString()
	}
	now := m.now()
	claims := Claims{
		TokenType: tokenType,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Audience:  []string{m.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        tokenID,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

func (m *JWTManager) ParseAccessToken(raw string) (*Claims, error) {
	return m.parse(raw, m.accessSecret, tokenTypeAccess)
}

// VerifyRefreshToken never reports which check failed.
func (m *JWTManager) VerifyRefreshToken(raw string) (*Claims, error) {
	return m.parse(raw, m.refreshSecret, tokenTypeRefresh)
}

// DecodeExpiry reads the exp claim without checking the signature. Only use it
// for metadata on tokens this process just minted.
func (m *JWTManager) DecodeExpiry(raw string) (time.Time, bool) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (m *JWTManager) parse(raw string, secret []byte, tokenType string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return secret, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenType {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
