package handlers

import "net/http"

// AppConfig exposes the public frontend configuration. Unauthenticated by
// design: the login page needs it before any session exists.
func (h *Handler) AppConfig(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{
		"pocketIdBaseUrl": h.cfg.PocketID.BaseURL,
		"appTitle":        h.cfg.App.Title,
		"ssoProviderName": h.cfg.App.SSOProviderName,
	})
}
