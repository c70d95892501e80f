package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/devilmonastery/pocketid-dashboard/internal/domain/entities"
	"github.com/devilmonastery/pocketid-dashboard/internal/domain/repositories"
)

// adminRequestView is an access request enriched with what the admin needs
// to decide on it
type adminRequestView struct {
	*entities.AccessRequest
	UserName  string `json:"userName,omitempty"`
	UserEmail string `json:"userEmail,omitempty"`
	AppName   string `json:"appName,omitempty"`
}

// AdminListRequests returns every access request, enriched with user and app
// names. Enrichment failures degrade to bare rows rather than failing the
// whole listing.
func (h *Handler) AdminListRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.requests.ListAll(r.Context())
	if err != nil {
		h.log.Error("failed to list access requests", slog.Any("error", err))
		h.respondError(w, http.StatusInternalServerError, "internal_error", "Failed to load requests.")
		return
	}

	appNames := make(map[string]string)
	if clients, err := h.pocketID.ListClients(r.Context()); err == nil {
		for _, c := range clients {
			appNames[c.ID] = c.Name
		}
	} else {
		h.log.Warn("failed to resolve app names", slog.Any("error", err))
	}

	userCache := make(map[string]*struct{ name, email string })
	views := make([]adminRequestView, 0, len(reqs))
	for _, req := range reqs {
		view := adminRequestView{AccessRequest: req, AppName: appNames[req.AppID]}

		info, seen := userCache[req.UserID]
		if !seen {
			if u, err := h.pocketID.GetUser(r.Context(), req.UserID); err == nil {
				info = &struct{ name, email string }{
					name:  u.FirstName + " " + u.LastName,
					email: u.Email,
				}
			}
			userCache[req.UserID] = info
		}
		if info != nil {
			view.UserName = info.name
			view.UserEmail = info.email
		}

		views = append(views, view)
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"requests": views})
}

type updateRequestBody struct {
	Status   string   `json:"status"`
	Notes    string   `json:"notes"`
	GroupIDs []string `json:"groupIds"`
}

// AdminUpdateRequest approves or rejects an access request. An approval with
// group IDs also rewrites the user's group membership; when the membership
// update fails but the status change stuck, the response is 207 so the admin
// knows to retry the assignment.
func (h *Handler) AdminUpdateRequest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body updateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "bad_request", "Invalid request body.")
		return
	}
	if !entities.IsValidStatus(body.Status) {
		h.respondError(w, http.StatusBadRequest, "bad_request", "Invalid status: "+body.Status)
		return
	}

	req, err := h.requests.Update(r.Context(), id, body.Status, body.Notes)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "not_found", "No such request.")
			return
		}
		h.log.Error("failed to update access request", slog.Any("error", err))
		h.respondError(w, http.StatusInternalServerError, "internal_error", "Failed to update request.")
		return
	}

	if req.Status == entities.RequestApproved && len(body.GroupIDs) > 0 {
		if err := h.pocketID.UpdateUserGroups(r.Context(), req.UserID, body.GroupIDs); err != nil {
			h.log.Error("group assignment failed after approval",
				slog.String("request", id), slog.String("user", req.UserID), slog.Any("error", err))
			h.respondJSON(w, http.StatusMultiStatus, map[string]interface{}{
				"request": req,
				"warning": "Request approved but group assignment failed; assign groups manually.",
			})
			return
		}
		// The cached catalog now has stale group data
		h.pocketID.ClearCache()
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"request": req})
}

// AdminListGroups returns every user group, for the approval dialog
func (h *Handler) AdminListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.pocketID.ListGroups(r.Context())
	if err != nil {
		h.log.Error("failed to list groups", slog.Any("error", err))
		h.respondError(w, http.StatusBadGateway, "upstream_error", "Failed to load groups.")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"groups": groups})
}

// AdminDeleteRequest removes an access request outright
func (h *Handler) AdminDeleteRequest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.requests.Delete(r.Context(), id); err != nil {
		h.log.Error("failed to delete access request", slog.Any("error", err))
		h.respondError(w, http.StatusInternalServerError, "internal_error", "Failed to delete request.")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
