package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devilmonastery/pocketid-dashboard/internal/auth/oidc"
	"github.com/devilmonastery/pocketid-dashboard/internal/config"
	"github.com/devilmonastery/pocketid-dashboard/internal/domain/entities"
	"github.com/devilmonastery/pocketid-dashboard/internal/domain/repositories"
	"github.com/devilmonastery/pocketid-dashboard/internal/infrastructure/database/memory"
	"github.com/devilmonastery/pocketid-dashboard/server/internal/session"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// fakeTokenEndpoint is a minimal provider: discovery plus a counting token
// endpoint for the refresh grant
type fakeTokenEndpoint struct {
	srv       *httptest.Server
	refreshes atomic.Int64
}

func newFakeTokenEndpoint(t *testing.T) *fakeTokenEndpoint {
	t.Helper()

	f := &fakeTokenEndpoint{}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"issuer":                 f.srv.URL,
			"authorization_endpoint": f.srv.URL + "/authorize",
			"token_endpoint":         f.srv.URL + "/token",
			"jwks_uri":               f.srv.URL + "/jwks",
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostFormValue("grant_type") != "refresh_token" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.refreshes.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "refreshed-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func newTestAuthMiddleware(t *testing.T) (*AuthMiddleware, *session.Manager, *memory.SessionRepository, *fakeTokenEndpoint) {
	t.Helper()

	repo := memory.NewSessionRepository()
	cipher, err := session.NewCipher(testSecret)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	mgr := session.NewManager(config.SessionConfig{
		Secret:     testSecret,
		CookieName: "test_session",
		MaxAge:     config.Duration(time.Hour),
	}, repo, cipher, slog.Default())

	provider := newFakeTokenEndpoint(t)
	oidcClient := oidc.NewClient(config.OIDCConfig{
		DiscoveryURL: provider.srv.URL + "/.well-known/openid-configuration",
		ClientID:     "dashboard-client",
	}, slog.Default())
	if err := oidcClient.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	return NewAuthMiddleware(mgr, oidcClient, slog.Default()), mgr, repo, provider
}

// serveWithSession runs the wrapped handler with sess preloaded on the context
func serveWithSession(mw func(http.Handler) http.Handler, sess *entities.Session) (*httptest.ResponseRecorder, bool) {
	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest("GET", "/api/apps", nil)
	r = r.WithContext(WithSession(r.Context(), sess))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w, called
}

func sessionWithExpiry(expiry time.Time, refreshToken string) *entities.Session {
	return &entities.Session{
		ID:   "sess-1",
		User: &entities.User{ID: "user-1", Name: "Test"},
		TokenSet: &entities.TokenSet{
			AccessToken:  "access-1",
			IDToken:      "id-1",
			RefreshToken: refreshToken,
		},
		TokenExpiry: &expiry,
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func TestRequireAuthUnauthenticated(t *testing.T) {
	mw, _, _, _ := newTestAuthMiddleware(t)

	tests := []struct {
		name string
		sess *entities.Session
	}{
		{"nil session", nil},
		{"empty session", &entities.Session{ID: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, called := serveWithSession(mw.RequireAuth, tt.sess)
			if called {
				t.Error("handler ran for unauthenticated request")
			}
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d", w.Code)
			}
			if code := decodeError(t, w); code != "not_authenticated" {
				t.Errorf("error code = %q", code)
			}
		})
	}
}

func TestRequireAuthExpiredToken(t *testing.T) {
	mw, mgr, repo, _ := newTestAuthMiddleware(t)

	sess := sessionWithExpiry(time.Now().Add(-time.Minute), "rt")
	if err := mgr.Persist(context.Background(), sess); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	w, called := serveWithSession(mw.RequireAuth, sess)
	if called {
		t.Error("handler ran with an expired token")
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}
	if code := decodeError(t, w); code != "token_expired" {
		t.Errorf("error code = %q", code)
	}
	if _, err := repo.Get(context.Background(), sess.ID); err != repositories.ErrNotFound {
		t.Errorf("expired session row should be destroyed, got err=%v", err)
	}
}

func TestRequireAuthProactiveRefresh(t *testing.T) {
	mw, mgr, _, provider := newTestAuthMiddleware(t)

	// Expires inside the refresh window but not yet expired
	sess := sessionWithExpiry(time.Now().Add(2*time.Minute), "rt")
	if err := mgr.Persist(context.Background(), sess); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	w, called := serveWithSession(mw.RequireAuth, sess)
	if !called {
		t.Fatal("handler should run while the token is still valid")
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}

	// The refresh runs detached; give it a moment
	deadline := time.Now().Add(2 * time.Second)
	for provider.refreshes.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := provider.refreshes.Load(); n != 1 {
		t.Errorf("refresh calls = %d, want 1", n)
	}
}

func TestRequireAuthNoRefreshWithoutRefreshToken(t *testing.T) {
	mw, _, _, provider := newTestAuthMiddleware(t)

	sess := sessionWithExpiry(time.Now().Add(2*time.Minute), "")
	_, called := serveWithSession(mw.RequireAuth, sess)
	if !called {
		t.Fatal("handler should run")
	}

	time.Sleep(100 * time.Millisecond)
	if n := provider.refreshes.Load(); n != 0 {
		t.Errorf("refresh calls = %d, want 0", n)
	}
}

func TestRequireAuthOutsideRefreshWindow(t *testing.T) {
	mw, _, _, provider := newTestAuthMiddleware(t)

	sess := sessionWithExpiry(time.Now().Add(time.Hour), "rt")
	_, called := serveWithSession(mw.RequireAuth, sess)
	if !called {
		t.Fatal("handler should run")
	}

	time.Sleep(100 * time.Millisecond)
	if n := provider.refreshes.Load(); n != 0 {
		t.Errorf("refresh calls = %d, want 0", n)
	}
}

func TestRequireAdmin(t *testing.T) {
	mw, _, _, _ := newTestAuthMiddleware(t)
	expiry := time.Now().Add(time.Hour)

	tests := []struct {
		name       string
		isAdmin    bool
		wantStatus int
	}{
		{"admin passes", true, http.StatusOK},
		{"non-admin forbidden", false, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &entities.Session{
				ID:          "s",
				User:        &entities.User{ID: "u", IsAdmin: tt.isAdmin},
				TokenSet:    &entities.TokenSet{AccessToken: "a"},
				TokenExpiry: &expiry,
			}
			w, _ := serveWithSession(mw.RequireAdmin, sess)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusForbidden {
				if code := decodeError(t, w); code != "forbidden" {
					t.Errorf("error code = %q", code)
				}
			}
		})
	}
}
