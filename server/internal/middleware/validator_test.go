package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devilmonastery/pocketid-dashboard/internal/config"
	"github.com/devilmonastery/pocketid-dashboard/internal/domain/entities"
	"github.com/devilmonastery/pocketid-dashboard/internal/domain/repositories"
	"github.com/devilmonastery/pocketid-dashboard/internal/infrastructure/database/memory"
	"github.com/devilmonastery/pocketid-dashboard/server/internal/session"
)

func newTestValidator(t *testing.T) (*ValidateSession, *memory.SessionRepository) {
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

	return NewValidateSession(mgr, slog.Default()), repo
}

func TestExemptPath(t *testing.T) {
	tests := []struct {
		path   string
		exempt bool
	}{
		{"/", true},
		{"/healthz", true},
		{"/metrics", true},
		{"/auth/login", true},
		{"/auth/login-url", true},
		{"/auth/callback", true},
		{"/auth/status", true},
		{"/assets/index-Bx2.js", true},
		{"/favicon.ico", true},
		{"/auth/user", false},
		{"/api/apps", false},
		{"/api/admin/access-requests", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := exemptPath(tt.path); got != tt.exempt {
				t.Errorf("exemptPath(%q) = %v, want %v", tt.path, got, tt.exempt)
			}
		})
	}
}

func TestValidatorDestroysMalformedSession(t *testing.T) {
	v, repo := newTestValidator(t)

	sess := &entities.Session{
		ID:   "broken",
		User: &entities.User{Name: "No ID"},
	}
	if err := repo.Put(context.Background(), sess.ID, []byte("{}"), time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	called := false
	handler := v.Check(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	r := httptest.NewRequest("GET", "/api/apps", nil)
	r = r.WithContext(WithSession(r.Context(), sess))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if called {
		t.Error("handler ran with a malformed session")
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}
	if code := decodeError(t, w); code != "invalid_session" {
		t.Errorf("error code = %q", code)
	}
	if _, err := repo.Get(context.Background(), sess.ID); err != repositories.ErrNotFound {
		t.Errorf("malformed session row should be deleted, got err=%v", err)
	}
}

func TestValidatorPassesHealthySessions(t *testing.T) {
	v, _ := newTestValidator(t)

	tests := []struct {
		name string
		sess *entities.Session
	}{
		{"anonymous", &entities.Session{ID: "anon"}},
		{"authenticated", &entities.Session{ID: "ok", User: &entities.User{ID: "u1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := v.Check(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			r := httptest.NewRequest("GET", "/api/apps", nil)
			r = r.WithContext(WithSession(r.Context(), tt.sess))
			handler.ServeHTTP(httptest.NewRecorder(), r)

			if !called {
				t.Error("handler should run")
			}
		})
	}
}

func TestValidatorSkipsExemptPathsEvenWhenMalformed(t *testing.T) {
	v, _ := newTestValidator(t)

	sess := &entities.Session{ID: "broken", User: &entities.User{}}
	called := false
	handler := v.Check(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	r := httptest.NewRequest("GET", "/auth/status", nil)
	r = r.WithContext(WithSession(r.Context(), sess))
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if !called {
		t.Error("exempt path must pass through")
	}
}
