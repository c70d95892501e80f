package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/devilmonastery/pocketid-dashboard/server/internal/session"
)

// ValidateSession rejects requests carrying a structurally broken session
// (a user object with no ID) before any handler trusts it. Routes involved
// in establishing a session, and static assets, are exempt.
type ValidateSession struct {
	manager *session.Manager
	log     *slog.Logger
}

// NewValidateSession creates the session-validation middleware
func NewValidateSession(manager *session.Manager, log *slog.Logger) *ValidateSession {
	return &ValidateSession{
		manager: manager,
		log:     log.With(slog.String("component", "middleware")),
	}
}

// Check runs the validation
func (m *ValidateSession) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exemptPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		sess := SessionFrom(r.Context())
		if sess != nil && sess.IsMalformed() {
			m.log.Warn("destroying malformed session", slog.String("path", r.URL.Path))
			m.manager.Destroy(w, r, sess, "invalid_session")
			respondAuthError(w, http.StatusUnauthorized, "invalid_session",
				"Your session is invalid. Please log in again.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// exemptPath lists the routes a broken session must still be able to reach,
// since they are how the user gets a working one
func exemptPath(path string) bool {
	if path == "/" || path == "/healthz" || path == "/metrics" {
		return true
	}
	if strings.HasPrefix(path, "/auth/login") ||
		path == "/auth/callback" ||
		path == "/auth/status" {
		return true
	}
	// Static assets carry an extension
	return strings.Contains(path, ".")
}
