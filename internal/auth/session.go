package auth

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// NewSessionID returns a fresh random session token.
func NewSessionID() string {
	return uuid.NewString()
}

// SessionIDFromRequest reads the session token from the named cookie,
// falling back to an "Authorization: Bearer <token>" header.
func SessionIDFromRequest(r *http.Request, cookieName string) string {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
