package service

import (
	"context"
	"errors"
	"testing"
)

// accessTokenID returns the jti the access token of pair was minted with.
func (f *authFixture) accessTokenID(t *testing.T, pair *TokenPair) string {
	t.Helper()
	claims, err := f.jwt.ParseAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	return claims.ID
}

func TestSessionServiceListsAndFlagsCurrent(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	user, first := f.registerAndLogin(t)
	if _, err := f.svc.Login(ctx, "user@test.com", "abc12345!", RequestMetadata{UserAgent: "phone"}); err != nil {
		t.Fatalf("second login: %v", err)
	}

	svc := NewSessionService(f.sessions)
	views, err := svc.ListActiveSessions(ctx, user.ID, f.accessTokenID(t, first))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(views))
	}
	if !views[0].IsCurrent || views[1].IsCurrent {
		t.Fatalf("expected only the first session flagged current, got %+v", views)
	}
	if views[0].UserAgent != "ua" || views[1].UserAgent != "phone" {
		t.Fatalf("unexpected user agents: %+v", views)
	}

	views, err = svc.ListActiveSessions(ctx, user.ID, "")
	if err != nil {
		t.Fatalf("list without current: %v", err)
	}
	for _, v := range views {
		if v.IsCurrent {
			t.Fatalf("no session should be current, got %+v", v)
		}
	}
}

func TestSessionServiceCurrentFollowsRotation(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	user, pair := f.registerAndLogin(t)

	rotated, err := f.svc.RefreshTokens(ctx, pair.RefreshToken, RequestMetadata{})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	svc := NewSessionService(f.sessions)
	views, err := svc.ListActiveSessions(ctx, user.ID, f.accessTokenID(t, rotated))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 1 || !views[0].IsCurrent {
		t.Fatalf("expected the rotated session flagged current, got %+v", views)
	}

	stale, err := svc.ListActiveSessions(ctx, user.ID, f.accessTokenID(t, pair))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if stale[0].IsCurrent {
		t.Fatal("pre-rotation access token must not match the new session")
	}
}

func TestSessionServiceRevokeSession(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	user, pair := f.registerAndLogin(t)
	other, err := f.svc.Register(ctx, RegisterInput{Email: "other@test.com", Password: "abc12345!", Username: "other"})
	if err != nil {
		t.Fatalf("register other: %v", err)
	}
	if _, err := f.svc.Login(ctx, "other@test.com", "abc12345!", RequestMetadata{}); err != nil {
		t.Fatalf("login other: %v", err)
	}

	svc := NewSessionService(f.sessions)
	mine, _ := svc.ListActiveSessions(ctx, user.ID, "")
	theirs, _ := svc.ListActiveSessions(ctx, other.ID, "")

	if _, err := svc.RevokeSession(ctx, user.ID, theirs[0].ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("revoking another user's session: expected ErrSessionNotFound, got %v", err)
	}
	if f.sessions.countActive(other.ID) != 1 {
		t.Fatal("another user's session must stay active")
	}
	if _, err := svc.RevokeSession(ctx, user.ID, 9999); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("unknown session: expected ErrSessionNotFound, got %v", err)
	}

	changed, err := svc.RevokeSession(ctx, user.ID, mine[0].ID)
	if err != nil || !changed {
		t.Fatalf("revoke own: changed=%v err=%v", changed, err)
	}
	changed, err = svc.RevokeSession(ctx, user.ID, mine[0].ID)
	if err != nil || changed {
		t.Fatalf("repeat revoke: changed=%v err=%v", changed, err)
	}
	if _, err := f.svc.RefreshTokens(ctx, pair.RefreshToken, RequestMetadata{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("refresh of a revoked session: expected unauthorized, got %v", err)
	}
}

func TestSessionServiceRevokeOtherSessions(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	user, current := f.registerAndLogin(t)
	var others []*TokenPair
	for range 2 {
		p, err := f.svc.Login(ctx, "user@test.com", "abc12345!", RequestMetadata{})
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		others = append(others, p)
	}

	svc := NewSessionService(f.sessions)
	n, err := svc.RevokeOtherSessions(ctx, user.ID, f.accessTokenID(t, current))
	if err != nil {
		t.Fatalf("revoke others: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 revoked, got %d", n)
	}
	if _, err := f.svc.RefreshTokens(ctx, current.RefreshToken, RequestMetadata{}); err != nil {
		t.Fatalf("current session should survive: %v", err)
	}
	for _, p := range others {
		if _, err := f.svc.RefreshTokens(ctx, p.RefreshToken, RequestMetadata{}); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("other session should be revoked, got %v", err)
		}
	}
}

func TestSessionServiceRevokeOthersRequiresLiveCurrent(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	user, pair := f.registerAndLogin(t)
	if _, err := f.svc.Login(ctx, "user@test.com", "abc12345!", RequestMetadata{}); err != nil {
		t.Fatalf("second login: %v", err)
	}
	if err := f.svc.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}

	svc := NewSessionService(f.sessions)
	for _, tokenID := range []string{"", f.accessTokenID(t, pair)} {
		if _, err := svc.RevokeOtherSessions(ctx, user.ID, tokenID); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("tokenID %q: expected ErrSessionNotFound, got %v", tokenID, err)
		}
	}
	if f.sessions.countActive(user.ID) != 1 {
		t.Fatal("no session may be revoked when the current one cannot be resolved")
	}
}

func TestSessionServiceRevokeAll(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	user, pair := f.registerAndLogin(t)
	if _, err := f.svc.Login(ctx, "user@test.com", "abc12345!", RequestMetadata{}); err != nil {
		t.Fatalf("second login: %v", err)
	}

	svc := NewSessionService(f.sessions)
	n, err := svc.RevokeAll(ctx, user.ID)
	if err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 revoked, got %d", n)
	}
	if _, err := f.svc.RefreshTokens(ctx, pair.RefreshToken, RequestMetadata{}); err == nil {
		t.Fatal("refresh after revoke-all should fail")
	}
	n, err = svc.RevokeAll(ctx, user.ID)
	if err != nil || n != 0 {
		t.Fatalf("second revoke-all expected 0, got %d err=%v", n, err)
	}
}
