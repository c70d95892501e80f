package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/devilmonastery/pocketid-dashboard/internal/auth/oidc"
	"github.com/devilmonastery/pocketid-dashboard/internal/config"
	"github.com/devilmonastery/pocketid-dashboard/internal/domain/repositories"
	"github.com/devilmonastery/pocketid-dashboard/internal/notify"
	"github.com/devilmonastery/pocketid-dashboard/internal/pocketid"
	"github.com/devilmonastery/pocketid-dashboard/server/internal/session"
)

// Handler carries the dependencies shared by all HTTP handlers
type Handler struct {
	cfg      *config.Config
	log      *slog.Logger
	sessions *session.Manager
	oidc     *oidc.Client
	pocketID *pocketid.Client
	requests repositories.AccessRequestRepository
	notifier *notify.Notifier
}

// New creates the handler set
func New(
	cfg *config.Config,
	log *slog.Logger,
	sessions *session.Manager,
	oidcClient *oidc.Client,
	pocketID *pocketid.Client,
	requests repositories.AccessRequestRepository,
	notifier *notify.Notifier,
) *Handler {
	return &Handler{
		cfg:      cfg,
		log:      log.With(slog.String("component", "handlers")),
		sessions: sessions,
		oidc:     oidcClient,
		pocketID: pocketID,
		requests: requests,
		notifier: notifier,
	}
}

// respondJSON writes a JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error("failed to encode response", slog.Any("error", err))
	}
}

// respondError writes a JSON error with a stable machine-readable code
func (h *Handler) respondError(w http.ResponseWriter, status int, code, message string) {
	h.respondJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}

// wantsJSON reports whether the caller is the SPA's fetch layer rather than
// a browser navigation
func wantsJSON(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
		r.Header.Get("Accept") == "application/json"
}
