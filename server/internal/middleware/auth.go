package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/devilmonastery/pocketid-dashboard/internal/auth/oidc"
	"github.com/devilmonastery/pocketid-dashboard/internal/domain/entities"
	"github.com/devilmonastery/pocketid-dashboard/internal/pkg/metrics"
	"github.com/devilmonastery/pocketid-dashboard/server/internal/session"
)

// refreshWindow is how far ahead of access-token expiry a background refresh
// kicks off
const refreshWindow = 5 * time.Minute

// AuthMiddleware guards routes that need a logged-in user. It also owns the
// proactive token refresh: requests arriving inside the refresh window spawn
// a detached refresh so the session renews without ever blocking a request.
type AuthMiddleware struct {
	manager *session.Manager
	oidc    *oidc.Client
	log     *slog.Logger
}

// NewAuthMiddleware creates the auth middleware
func NewAuthMiddleware(manager *session.Manager, oidcClient *oidc.Client, log *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		manager: manager,
		oidc:    oidcClient,
		log:     log.With(slog.String("component", "middleware")),
	}
}

// RequireAuth rejects unauthenticated or token-expired sessions with stable
// error codes the frontend keys on
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFrom(r.Context())
		if sess == nil || !sess.IsAuthenticated() {
			respondAuthError(w, http.StatusUnauthorized, "not_authenticated",
				"Authentication required.")
			return
		}

		now := time.Now()
		if sess.TokenExpired(now) {
			// The provider considers this login over; so do we
			m.log.Info("access token expired, destroying session",
				slog.String("user", sess.User.ID))
			m.manager.Destroy(w, r, sess, "expired")
			respondAuthError(w, http.StatusUnauthorized, "token_expired",
				"Your session has expired. Please log in again.")
			return
		}

		if sess.NeedsRefresh(now, refreshWindow) {
			m.refreshInBackground(sess)
		}

		next.ServeHTTP(w, r)
	})
}

// RequireAdmin layers the admin check on top of RequireAuth
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		if user == nil || !user.IsAdmin {
			respondAuthError(w, http.StatusForbidden, "forbidden",
				"Administrator access required.")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// refreshInBackground renews the token set on a detached goroutine. The
// triggering request proceeds with the still-valid current tokens; concurrent
// refreshes for the same session are harmless, last write wins.
func (m *AuthMiddleware) refreshInBackground(sess *entities.Session) {
	refreshToken := sess.TokenSet.RefreshToken
	sessCopy := *sess
	userID := sess.User.ID

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		tokens, expiry, err := m.oidc.Refresh(ctx, refreshToken)
		if err != nil {
			metrics.TokenRefreshes.WithLabelValues("error").Inc()
			m.log.Warn("background token refresh failed",
				slog.String("user", userID), slog.Any("error", err))
			return
		}

		sessCopy.TokenSet = tokens
		if !expiry.IsZero() {
			sessCopy.TokenExpiry = &expiry
		}

		if err := m.manager.Persist(ctx, &sessCopy); err != nil {
			metrics.TokenRefreshes.WithLabelValues("error").Inc()
			m.log.Error("failed to persist refreshed session",
				slog.String("user", userID), slog.Any("error", err))
			return
		}

		metrics.TokenRefreshes.WithLabelValues("ok").Inc()
		m.log.Debug("token refreshed", slog.String("user", userID))
	}()
}
