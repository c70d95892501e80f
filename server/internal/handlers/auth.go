package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/devilmonastery/pocketid-dashboard/internal/auth/oidc"
	"github.com/devilmonastery/pocketid-dashboard/internal/domain/entities"
	"github.com/devilmonastery/pocketid-dashboard/internal/pkg/metrics"
	"github.com/devilmonastery/pocketid-dashboard/server/internal/middleware"
)

// Login starts the OIDC flow with a browser redirect
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	authURL, ok := h.beginLogin(w, r)
	if !ok {
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// LoginURL returns the authorization URL as JSON, for frontends that start
// the redirect themselves
func (h *Handler) LoginURL(w http.ResponseWriter, r *http.Request) {
	authURL, ok := h.beginLogin(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"url": authURL})
}

// beginLogin generates the login state and persists it. The session must hit
// the store before the browser leaves for the provider.
func (h *Handler) beginLogin(w http.ResponseWriter, r *http.Request) (string, bool) {
	sess := middleware.SessionFrom(r.Context())

	authURL, err := h.oidc.BeginLogin(sess)
	if err != nil {
		if errors.Is(err, oidc.ErrNotInitialized) {
			h.respondError(w, http.StatusServiceUnavailable, "oidc_unavailable",
				"Single sign-on is not available yet. Try again shortly.")
			return "", false
		}
		h.log.Error("failed to begin login", slog.Any("error", err))
		h.respondError(w, http.StatusInternalServerError, "internal_error", "Failed to start login.")
		return "", false
	}

	if err := h.sessions.Save(w, r, sess); err != nil {
		h.log.Error("failed to persist login state", slog.Any("error", err))
		h.respondError(w, http.StatusInternalServerError, "internal_error", "Failed to start login.")
		return "", false
	}
	return authURL, true
}

// Callback completes the OIDC flow: code exchange, ID token validation, admin
// group evaluation, and a session ID rotation so the authenticated session
// never reuses the pre-login ID
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())

	if errCode := r.URL.Query().Get("error"); errCode != "" {
		h.log.Warn("provider returned error on callback",
			slog.String("error", errCode),
			slog.String("description", r.URL.Query().Get("error_description")))
		metrics.Logins.WithLabelValues("provider_error").Inc()
		http.Redirect(w, r, "/?error=authentication_failed", http.StatusFound)
		return
	}

	result, err := h.oidc.HandleCallback(r.Context(), sess, r.URL.Query())
	if err != nil {
		h.failedLogin(w, r, err)
		return
	}

	user := &entities.User{
		ID:      result.Claims.Subject,
		Name:    result.Claims.Name,
		Email:   result.Claims.Email,
		Groups:  result.Claims.Groups,
		Picture: result.Claims.Picture,
		IsAdmin: result.Claims.InGroup(h.cfg.OIDC.AdminGroup),
	}

	sess.User = user
	sess.TokenSet = result.TokenSet
	if !result.TokenExpiry.IsZero() {
		expiry := result.TokenExpiry
		sess.TokenExpiry = &expiry
	}

	if err := h.sessions.Regenerate(r.Context(), sess); err != nil {
		h.log.Error("failed to regenerate session after login", slog.Any("error", err))
		metrics.Logins.WithLabelValues("error").Inc()
		http.Redirect(w, r, "/?error=authentication_failed", http.StatusFound)
		return
	}
	if err := h.sessions.Save(w, r, sess); err != nil {
		h.log.Error("failed to save session after login", slog.Any("error", err))
		metrics.Logins.WithLabelValues("error").Inc()
		http.Redirect(w, r, "/?error=authentication_failed", http.StatusFound)
		return
	}

	metrics.Logins.WithLabelValues("ok").Inc()
	h.log.Info("login completed",
		slog.String("user", user.ID),
		slog.Bool("admin", user.IsAdmin))

	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handler) failedLogin(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, oidc.ErrNotInitialized):
		metrics.Logins.WithLabelValues("unavailable").Inc()
		h.respondError(w, http.StatusServiceUnavailable, "oidc_unavailable",
			"Single sign-on is not available yet. Try again shortly.")
		return
	case errors.Is(err, oidc.ErrLoginSessionLost):
		metrics.Logins.WithLabelValues("session_lost").Inc()
	case errors.Is(err, oidc.ErrStateMismatch):
		metrics.Logins.WithLabelValues("state_mismatch").Inc()
	default:
		metrics.Logins.WithLabelValues("error").Inc()
	}
	h.log.Warn("login failed", slog.Any("error", err))

	if wantsJSON(r) {
		h.respondError(w, http.StatusUnauthorized, "login_failed",
			"Login could not be completed. Please try again.")
		return
	}
	http.Redirect(w, r, "/?error=authentication_failed", http.StatusFound)
}

// Logout destroys the local session unconditionally. Browser navigations are
// redirected to the provider's end-session URL (or home when the provider
// does not advertise one); API callers get the URL back as JSON instead.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())

	var idToken string
	if sess.TokenSet != nil {
		idToken = sess.TokenSet.IDToken
	}

	h.sessions.Destroy(w, r, sess, "logout")

	logoutURL, ok := h.oidc.LogoutURL(idToken)

	if wantsJSON(r) {
		resp := map[string]interface{}{"success": true}
		if ok {
			resp["logoutUrl"] = logoutURL
		}
		h.respondJSON(w, http.StatusOK, resp)
		return
	}

	if !ok {
		logoutURL = "/"
	}
	http.Redirect(w, r, logoutURL, http.StatusFound)
}

// User returns the authenticated user's profile
func (h *Handler) User(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

// Status reports authentication state. This endpoint never fails: the SPA
// polls it before anything else, including while the provider is down.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())

	resp := map[string]interface{}{
		"authenticated":   false,
		"oidcInitialized": h.oidc.Initialized(),
	}

	if sess != nil && sess.IsAuthenticated() {
		if sess.TokenExpired(time.Now()) {
			resp["tokenStatus"] = "expired"
		} else {
			resp["authenticated"] = true
			resp["user"] = sess.User
			if sess.TokenExpiry != nil {
				resp["tokenExpiresAt"] = sess.TokenExpiry
			}
		}
	}

	h.respondJSON(w, http.StatusOK, resp)
}
