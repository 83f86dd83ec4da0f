package security

import (
	"crypto/sha256"
	"encoding/base64"
)

// TokenHasher stores refresh tokens as salted bcrypt hashes. Tokens are longer
// than bcrypt's 72 byte input limit, so the SHA-256 digest is hashed instead.
// Salting makes the hash non-deterministic: lookups must compare candidates.
type TokenHasher struct {
	hasher *PasswordHasher
}

func NewTokenHasher(cost int) *TokenHasher {
	return &TokenHasher{hasher: NewPasswordHasher(cost)}
}

func (h *TokenHasher) Hash(token string) (string, error) {
	return h.hasher.Hash(digest(token))
}

func (h *TokenHasher) Verify(token, storedHash string) bool {
	return h.hasher.Verify(digest(token), storedHash)
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawStdEncoding.EncodeToString(sum[:])
}
