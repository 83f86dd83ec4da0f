package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/sandeepkv93/refresh-session-auth/internal/http/response"
	"github.com/sandeepkv93/refresh-session-auth/internal/observability"
	"github.com/sandeepkv93/refresh-session-auth/internal/security"
	"github.com/sandeepkv93/refresh-session-auth/internal/service"
)

type AuthHandler struct {
	authSvc service.AuthServiceInterface
	cookie  security.CookieOptions
}

func NewAuthHandler(authSvc service.AuthServiceInterface, cookie security.CookieOptions) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, cookie: cookie}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, response.CodeBadRequest, "invalid request body")
		return
	}
	user, err := h.authSvc.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
	})
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidRegistration):
		observability.Audit(r, "auth.register", "outcome", "rejected", "reason", "invalid_input")
		response.Error(w, r, response.CodeValidation, err.Error())
		return
	case errors.Is(err, service.ErrDuplicateAccount):
		observability.Audit(r, "auth.register", "outcome", "rejected", "reason", "duplicate")
		response.Error(w, r, response.CodeConflict, "email already in use")
		return
	default:
		slog.ErrorContext(r.Context(), "register failed", "error", err)
		response.Internal(w, r)
		return
	}
	observability.Audit(r, "auth.register", "outcome", "success", "user_id", user.ID)
	response.JSON(w, r, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, response.CodeBadRequest, "invalid request body")
		return
	}
	pair, err := h.authSvc.Login(r.Context(), req.Email, req.Password, requestMetadata(r))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			observability.Audit(r, "auth.login", "outcome", "rejected")
			response.Error(w, r, response.CodeUnauthorized, "invalid email or password")
			return
		}
		slog.ErrorContext(r.Context(), "login failed", "error", err)
		response.Internal(w, r)
		return
	}
	observability.Audit(r, "auth.login", "outcome", "success")
	h.writeTokens(w, r, pair)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	presented := h.presentedRefreshToken(r)
	if presented == "" {
		response.Error(w, r, response.CodeUnauthorized, "missing refresh token")
		return
	}
	pair, err := h.authSvc.RefreshTokens(r.Context(), presented, requestMetadata(r))
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			observability.Audit(r, "auth.refresh", "outcome", "rejected")
			security.ClearTokenCookie(w, h.cookie)
			response.Error(w, r, response.CodeUnauthorized, "invalid refresh token")
			return
		}
		slog.ErrorContext(r.Context(), "refresh failed", "error", err)
		response.Internal(w, r)
		return
	}
	observability.Audit(r, "auth.refresh", "outcome", "success")
	h.writeTokens(w, r, pair)
}

// Logout always succeeds from the caller's point of view.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if presented := h.presentedRefreshToken(r); presented != "" {
		if err := h.authSvc.Logout(r.Context(), presented); err != nil && !errors.Is(err, service.ErrUnauthorized) {
			slog.ErrorContext(r.Context(), "logout failed", "error", err)
		}
	}
	observability.Audit(r, "auth.logout", "outcome", "success")
	security.ClearTokenCookie(w, h.cookie)
	response.JSON(w, r, http.StatusOK, map[string]bool{"ok": true})
}

func (h *AuthHandler) writeTokens(w http.ResponseWriter, r *http.Request, pair *service.TokenPair) {
	security.SetTokenCookie(w, h.cookie, pair.RefreshToken)
	out := tokenResponse{AccessToken: pair.AccessToken}
	if r.URL.Query().Get("delivery") == "body" {
		out.RefreshToken = pair.RefreshToken
	}
	response.JSON(w, r, http.StatusOK, out)
}

// presentedRefreshToken prefers the cookie and falls back to a JSON body.
func (h *AuthHandler) presentedRefreshToken(r *http.Request) string {
	if v := security.GetCookie(r, h.cookie.Name); v != "" {
		return v
	}
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		return ""
	}
	return strings.TrimSpace(req.RefreshToken)
}

func requestMetadata(r *http.Request) service.RequestMetadata {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return service.RequestMetadata{UserAgent: r.UserAgent(), IP: ip}
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	return json.NewDecoder(r.Body).Decode(dst)
}
