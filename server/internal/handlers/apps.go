package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/devilmonastery/pocketid-dashboard/internal/domain/entities"
	"github.com/devilmonastery/pocketid-dashboard/server/internal/middleware"
)

// Apps returns the app catalog split into what the user can reach and what
// they could request access to
func (h *Handler) Apps(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())

	apps, err := h.pocketID.AllApps(r.Context(), user.Groups)
	if err != nil {
		h.log.Error("failed to list apps", slog.Any("error", err))
		h.respondError(w, http.StatusBadGateway, "upstream_error", "Failed to load applications.")
		return
	}

	accessible := make([]*entities.App, 0, len(apps))
	other := make([]*entities.App, 0)
	for _, app := range apps {
		if app.HasAccess {
			accessible = append(accessible, app)
		} else {
			other = append(other, app)
		}
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"accessible": accessible,
		"other":      other,
	})
}

// AppLogo proxies a client logo from the management API, so the browser never
// needs credentials for Pocket-ID itself
func (h *Handler) AppLogo(w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["id"]

	logo, contentType, err := h.pocketID.GetClientLogo(r.Context(), appID)
	if err != nil {
		h.log.Debug("logo fetch failed, serving default",
			slog.String("app", appID), slog.Any("error", err))
		http.Redirect(w, r, "/default-logo.svg", http.StatusFound)
		return
	}

	if contentType == "" {
		contentType = "image/png"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(logo)
}

type requestAccessBody struct {
	AppIDs []string `json:"appIds"`
	Notes  string   `json:"notes"`
}

// RequestAccess records access requests for one or more apps and notifies the
// admin by email when a mailer is configured. Requesting again for the same
// app resets the earlier request to pending.
func (h *Handler) RequestAccess(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())

	var body requestAccessBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.AppIDs) == 0 {
		h.respondError(w, http.StatusBadRequest, "bad_request", "appIds is required.")
		return
	}

	apps, err := h.pocketID.AllApps(r.Context(), user.Groups)
	if err != nil {
		h.log.Error("failed to resolve apps for access request", slog.Any("error", err))
		h.respondError(w, http.StatusBadGateway, "upstream_error", "Failed to load applications.")
		return
	}
	byID := make(map[string]*entities.App, len(apps))
	for _, app := range apps {
		byID[app.ID] = app
	}

	created := make([]*entities.AccessRequest, 0, len(body.AppIDs))
	requestedApps := make([]*entities.App, 0, len(body.AppIDs))
	for _, appID := range body.AppIDs {
		app, known := byID[appID]
		if !known {
			h.respondError(w, http.StatusBadRequest, "bad_request", "Unknown application: "+appID)
			return
		}

		req, err := h.requests.Create(r.Context(), &entities.AccessRequest{
			UserID:      user.ID,
			AppID:       appID,
			Notes:       body.Notes,
			RequestedAt: time.Now(),
		})
		if err != nil {
			h.log.Error("failed to store access request",
				slog.String("app", appID), slog.Any("error", err))
			h.respondError(w, http.StatusInternalServerError, "internal_error", "Failed to store request.")
			return
		}
		created = append(created, req)
		requestedApps = append(requestedApps, app)
	}

	// Notification failures never affect the response
	go h.notifier.AccessRequested(user, requestedApps)

	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success":  true,
		"requests": created,
	})
}

// MyRequests returns the caller's access requests, newest first
func (h *Handler) MyRequests(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())

	reqs, err := h.requests.ListByUser(r.Context(), user.ID)
	if err != nil {
		h.log.Error("failed to list access requests", slog.Any("error", err))
		h.respondError(w, http.StatusInternalServerError, "internal_error", "Failed to load requests.")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"requests": reqs})
}

// ClearCache drops the app-catalog cache. Group membership is re-fetched
// from the management API first, so a freshly promoted admin can use this
// without logging out and back in.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	user := sess.User

	groups, err := h.pocketID.GetUserGroups(r.Context(), user.ID)
	if err != nil {
		h.log.Error("failed to refresh user groups", slog.Any("error", err))
		h.respondError(w, http.StatusBadGateway, "upstream_error", "Failed to verify permissions.")
		return
	}

	names := make([]string, 0, len(groups))
	isAdmin := false
	for _, g := range groups {
		names = append(names, g.Name)
		if g.Name == h.cfg.OIDC.AdminGroup {
			isAdmin = true
		}
	}
	user.Groups = names
	user.IsAdmin = isAdmin

	if err := h.sessions.Persist(r.Context(), sess); err != nil {
		h.log.Error("failed to persist refreshed groups", slog.Any("error", err))
	}

	if !isAdmin {
		h.respondError(w, http.StatusForbidden, "forbidden", "Administrator access required.")
		return
	}

	h.pocketID.ClearCache()
	h.respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
