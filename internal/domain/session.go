package domain

import "time"

// Column widths for advisory provenance. Longer values are truncated before insert.
const (
	MaxUserAgentLen = 512
	MaxIPLen        = 64
)

// Session binds the salted hash of one refresh token to its owner and validity window.
// RevokedAt is set exactly once; rows are never deleted. TokenID is the jti of
// the access token minted alongside the refresh token, so a bearer request can
// name its own session without presenting the refresh token.
type Session struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	TokenID   string     `gorm:"column:token_id;size:64;uniqueIndex;not null" json:"-"`
	TokenHash string     `gorm:"column:token_hash;size:128;not null" json:"-"`
	UserAgent *string    `gorm:"size:512" json:"user_agent,omitempty"`
	IP        *string    `gorm:"size:64" json:"ip,omitempty"`
	ExpiresAt time.Time  `gorm:"index;not null" json:"expires_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (Session) TableName() string { return "refresh_sessions" }

func (s *Session) Active() bool { return s.RevokedAt == nil }

func (s *Session) ExpiredAt(now time.Time) bool { return !s.ExpiresAt.After(now) }
