package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/refresh-session-auth/internal/domain"
	"github.com/sandeepkv93/refresh-session-auth/internal/http/middleware"
	"github.com/sandeepkv93/refresh-session-auth/internal/http/response"
	"github.com/sandeepkv93/refresh-session-auth/internal/observability"
	"github.com/sandeepkv93/refresh-session-auth/internal/repository"
	"github.com/sandeepkv93/refresh-session-auth/internal/security"
	"github.com/sandeepkv93/refresh-session-auth/internal/service"
)

type UserLookup interface {
	FindByID(ctx context.Context, id uint) (*domain.User, error)
}

type UserHandler struct {
	users    UserLookup
	sessions service.SessionServiceInterface
}

func NewUserHandler(users UserLookup, sessions service.SessionServiceInterface) *UserHandler {
	return &UserHandler{users: users, sessions: sessions}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := subject(r)
	if !ok {
		response.Error(w, r, response.CodeUnauthorized, "invalid access token")
		return
	}
	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.Error(w, r, response.CodeNotFound, "user not found")
			return
		}
		slog.ErrorContext(r.Context(), "load user failed", "error", err)
		response.Internal(w, r)
		return
	}
	response.JSON(w, r, http.StatusOK, user)
}

// Sessions lists the caller's active sessions, flagging the one the bearer
// token was issued with.
func (h *UserHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	claims, userID, ok := subject(r)
	if !ok {
		response.Error(w, r, response.CodeUnauthorized, "invalid access token")
		return
	}
	views, err := h.sessions.ListActiveSessions(r.Context(), userID, claims.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "list sessions failed", "error", err)
		response.Internal(w, r)
		return
	}
	response.JSON(w, r, http.StatusOK, views)
}

func (h *UserHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := subject(r)
	if !ok {
		response.Error(w, r, response.CodeUnauthorized, "invalid access token")
		return
	}
	sessionID, err := strconv.ParseUint(chi.URLParam(r, "session_id"), 10, 64)
	if err != nil || sessionID == 0 {
		response.Error(w, r, response.CodeBadRequest, "invalid session id")
		return
	}
	changed, err := h.sessions.RevokeSession(r.Context(), userID, uint(sessionID))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.Error(w, r, response.CodeNotFound, "session not found")
			return
		}
		slog.ErrorContext(r.Context(), "revoke session failed", "error", err)
		response.Internal(w, r)
		return
	}
	status := "already_revoked"
	if changed {
		status = "revoked"
	}
	observability.Audit(r, "session.revoke", "outcome", status, "user_id", userID, "session_id", sessionID)
	response.JSON(w, r, http.StatusOK, map[string]any{"session_id": sessionID, "status": status})
}

func (h *UserHandler) RevokeOtherSessions(w http.ResponseWriter, r *http.Request) {
	claims, userID, ok := subject(r)
	if !ok {
		response.Error(w, r, response.CodeUnauthorized, "invalid access token")
		return
	}
	n, err := h.sessions.RevokeOtherSessions(r.Context(), userID, claims.ID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			// The bearer token outlived its session; refresh first.
			response.Error(w, r, response.CodeUnauthorized, "current session is no longer active")
			return
		}
		slog.ErrorContext(r.Context(), "revoke other sessions failed", "error", err)
		response.Internal(w, r)
		return
	}
	observability.Audit(r, "session.revoke_others", "outcome", "success", "user_id", userID, "revoked", n)
	response.JSON(w, r, http.StatusOK, map[string]int64{"revoked": n})
}

func subject(r *http.Request) (*security.Claims, uint, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return nil, 0, false
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, 0, false
	}
	return claims, id, true
}
