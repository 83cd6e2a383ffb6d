package handler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/deliverydesk/deliverydesk/internal/auth"
	"github.com/deliverydesk/deliverydesk/internal/model"
)

// PageAuthenticator checks the session behind a page request.
type PageAuthenticator interface {
	Authenticate(ctx context.Context, sessionID string) (*model.Session, error)
}

// StaticHandler serves the dashboard pages and their assets from a directory.
type StaticHandler struct {
	dir        string
	auth       PageAuthenticator
	cookieName string
}

// NewStaticHandler creates a StaticHandler rooted at dir.
func NewStaticHandler(dir string, authenticator PageAuthenticator, cookieName string) *StaticHandler {
	return &StaticHandler{dir: dir, auth: authenticator, cookieName: cookieName}
}

// Assets serves /static/* from <dir>/static.
func (h *StaticHandler) Assets() http.Handler {
	return http.StripPrefix("/static/", http.FileServer(http.Dir(filepath.Join(h.dir, "static"))))
}

// Page serves <dir>/<file>. Signed-out visitors are sent to /login.
func (h *StaticHandler) Page(file string) http.HandlerFunc {
	path := filepath.Join(h.dir, file)
	return func(w http.ResponseWriter, r *http.Request) {
		if h.auth != nil && !h.signedIn(r) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		h.serveFile(w, r, path)
	}
}

// Login serves the sign-in page, which needs no session.
func (h *StaticHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, filepath.Join(h.dir, "login.html"))
}

func (h *StaticHandler) signedIn(r *http.Request) bool {
	id := auth.SessionIDFromRequest(r, h.cookieName)
	if id == "" {
		return false
	}
	_, err := h.auth.Authenticate(r.Context(), id)
	return err == nil
}

func (h *StaticHandler) serveFile(w http.ResponseWriter, r *http.Request, path string) {
	if _, err := os.Stat(path); err != nil {
		NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}
