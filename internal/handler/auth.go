package handler

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/deliverydesk/deliverydesk/internal/auth"
	"github.com/deliverydesk/deliverydesk/internal/handler/dto"
	"github.com/deliverydesk/deliverydesk/internal/model"
)

// AuthService is the login behaviour the handlers need.
type AuthService interface {
	Login(ctx context.Context, username, password, clientIP string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	SessionTTL() time.Duration
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// AuthHandler handles login, logout and the current-user lookup.
type AuthHandler struct {
	svc    AuthService
	cookie CookieConfig
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc AuthService, cookie CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, cookie: cookie, logger: logger}
}

// Login handles POST /auth/login with a JSON or form-encoded body.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if !decodeJSON(w, r, &req) {
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "invalid form body")
			return
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	}

	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "username and password are required")
		return
	}

	session, err := h.svc.Login(r.Context(), req.Username, req.Password, clientIP(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	ttl := h.svc.SessionTTL()
	http.SetCookie(w, h.sessionCookie(session.ID, int(ttl.Seconds())))
	writeJSON(w, http.StatusOK, dto.LoginResponse{
		User:      dto.ToUserResponse(session),
		ExpiresAt: time.Now().Add(ttl).UTC(),
	})
}

// Logout handles POST /auth/logout. It always clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if id := auth.SessionIDFromRequest(r, h.cookie.Name); id != "" {
		if err := h.svc.Logout(r.Context(), id); err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
	}
	http.SetCookie(w, h.sessionCookie("", -1))
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /auth/me. It sits behind the session middleware.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, dto.ToUserResponse(session))
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// clientIP strips the port from RemoteAddr, which RealIP has already
// rewritten when the request came through a proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
