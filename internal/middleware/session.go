package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/deliverydesk/deliverydesk/internal/auth"
	"github.com/deliverydesk/deliverydesk/internal/model"
)

// SessionAuthenticator resolves a session token to its session.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, sessionID string) (*model.Session, error)
}

// SessionConfig holds configuration for the session middleware.
type SessionConfig struct {
	Logger        *slog.Logger
	Authenticator SessionAuthenticator
	CookieName    string
}

// RequireSession rejects requests without a live session. The token comes
// from the session cookie or an "Authorization: Bearer" header; on success
// the session is injected into the request context.
func RequireSession(cfg SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := auth.SessionIDFromRequest(r, cfg.CookieName)
			if sessionID == "" {
				cfg.Logger.Debug("authentication failed",
					slog.String("reason", "missing_session"),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			session, err := cfg.Authenticator.Authenticate(r.Context(), sessionID)
			if err != nil {
				cfg.Logger.Info("authentication failed",
					slog.String("reason", err.Error()),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			setActor(r, session.Username)
			ctx := auth.ContextWithSession(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthError writes a 401 in the shape the dashboard pages read.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Authentication required","code":"UNAUTHORIZED"}`))
}
