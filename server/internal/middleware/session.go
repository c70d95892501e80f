package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/devilmonastery/pocketid-dashboard/server/internal/session"
)

// SessionMiddleware loads the request's session and puts it on the context.
// Every request gets a session object, authenticated or not.
type SessionMiddleware struct {
	manager *session.Manager
}

// NewSessionMiddleware creates the session-loading middleware
func NewSessionMiddleware(manager *session.Manager) *SessionMiddleware {
	return &SessionMiddleware{manager: manager}
}

// Attach resolves the session for the request and stores it on the context
func (m *SessionMiddleware) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := m.manager.Load(r)
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// authError is the stable error shape the frontend keys its behavior on
type authError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(authError{Error: code, Message: message})
}
