package security

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasherVerify(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	hash, err := h.Hash("abc12345!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "abc12345!" {
		t.Fatal("hash must not equal plaintext")
	}
	if !h.Verify("abc12345!", hash) {
		t.Fatal("expected match")
	}
	if h.Verify("abc12345?", hash) {
		t.Fatal("expected mismatch")
	}
}

func TestPasswordHasherFailsClosed(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	for _, stored := range []string{"", "not-a-bcrypt-hash", "$2a$10$short"} {
		if h.Verify("anything", stored) {
			t.Fatalf("expected false for malformed hash %q", stored)
		}
	}
}

func TestPasswordHasherRejectsLongInput(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	if _, err := h.Hash(strings.Repeat("a", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestPasswordHasherClampsCost(t *testing.T) {
	if got := NewPasswordHasher(0).cost; got != DefaultBcryptCost {
		t.Fatalf("expected default cost, got %d", got)
	}
	if got := NewPasswordHasher(1).cost; got != bcrypt.MinCost {
		t.Fatalf("expected min cost, got %d", got)
	}
	if got := NewPasswordHasher(99).cost; got != bcrypt.MaxCost {
		t.Fatalf("expected max cost, got %d", got)
	}
}

func TestTokenHasherIsSaltedAndHandlesLongTokens(t *testing.T) {
	h := NewTokenHasher(bcrypt.MinCost)
	token := strings.Repeat("x", 200) + "tail-1"
	a, err := h.Hash(token)
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	b, err := h.Hash(token)
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}
	if a == b {
		t.Fatal("expected salted hashes to differ")
	}
	if !h.Verify(token, a) || !h.Verify(token, b) {
		t.Fatal("expected both hashes to verify")
	}
	if h.Verify(strings.Repeat("x", 200)+"tail-2", a) {
		t.Fatal("tokens sharing a long prefix must not match")
	}
}
