package pocketid

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devilmonastery/pocketid-dashboard/internal/config"
)

// fakePocketID serves the subset of the management API the client uses
type fakePocketID struct {
	srv *httptest.Server

	listCalls    atomic.Int64
	failuresLeft atomic.Int64

	lastGroupUpdate []string
}

func newFakePocketID(t *testing.T) *fakePocketID {
	t.Helper()

	f := &fakePocketID{}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/oidc/clients", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if f.failuresLeft.Load() > 0 {
			f.failuresLeft.Add(-1)
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		f.listCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"id": "app-1", "name": "Grafana"},
				{"id": "app-2", "name": "Wiki"},
			},
			"pagination": map[string]int{"totalPages": 1},
		})
	})

	mux.HandleFunc("/api/oidc/clients/app-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "app-1", "name": "Grafana", "hasLogo": true,
			"callbackURLs":      []string{"https://grafana.example.com/login/callback"},
			"allowedUserGroups": []map[string]string{{"id": "g1", "name": "observability"}},
		})
	})
	mux.HandleFunc("/api/oidc/clients/app-2", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "app-2", "name": "Wiki",
			"callbackURLs":      []string{"https://wiki.example.com/oidc"},
			"allowedUserGroups": []map[string]string{},
		})
	})

	mux.HandleFunc("/api/users/user-1/groups", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{
			{"id": "g1", "name": "observability"},
		})
	})
	mux.HandleFunc("/api/users/user-1/user-groups", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			UserGroupIDs []string `json:"userGroupIds"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.lastGroupUpdate = body.UserGroupIDs
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/users/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func newTestPocketIDClient(t *testing.T, f *fakePocketID) *Client {
	t.Helper()
	return NewClient(config.PocketIDConfig{
		BaseURL:  f.srv.URL,
		APIKey:   "test-key",
		CacheTTL: config.Duration(time.Hour),
	}, slog.Default())
}

func TestListClientsCaching(t *testing.T) {
	f := newFakePocketID(t)
	c := newTestPocketIDClient(t, f)
	ctx := context.Background()

	clients, err := c.ListClients(ctx)
	if err != nil {
		t.Fatalf("ListClients: %v", err)
	}
	if len(clients) != 2 {
		t.Fatalf("got %d clients", len(clients))
	}
	if clients[0].Name != "Grafana" || len(clients[0].AllowedUserGroups) != 1 {
		t.Errorf("detail not resolved: %+v", clients[0])
	}

	// Second call is served from cache
	if _, err := c.ListClients(ctx); err != nil {
		t.Fatalf("ListClients: %v", err)
	}
	if n := f.listCalls.Load(); n != 1 {
		t.Errorf("upstream list calls = %d, want 1", n)
	}

	c.ClearCache()
	if _, err := c.ListClients(ctx); err != nil {
		t.Fatalf("ListClients: %v", err)
	}
	if n := f.listCalls.Load(); n != 2 {
		t.Errorf("upstream list calls after ClearCache = %d, want 2", n)
	}
}

func TestRetryOnServerError(t *testing.T) {
	f := newFakePocketID(t)
	c := newTestPocketIDClient(t, f)

	f.failuresLeft.Store(1)
	if _, err := c.ListClients(context.Background()); err != nil {
		t.Fatalf("expected retry to recover, got: %v", err)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	f := newFakePocketID(t)
	c := newTestPocketIDClient(t, f)

	if _, err := c.GetUser(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestUpdateUserGroups(t *testing.T) {
	f := newFakePocketID(t)
	c := newTestPocketIDClient(t, f)

	if err := c.UpdateUserGroups(context.Background(), "user-1", []string{"g1", "g2"}); err != nil {
		t.Fatalf("UpdateUserGroups: %v", err)
	}
	if len(f.lastGroupUpdate) != 2 || f.lastGroupUpdate[0] != "g1" {
		t.Errorf("payload = %v", f.lastGroupUpdate)
	}
}

func TestAllApps(t *testing.T) {
	f := newFakePocketID(t)
	c := newTestPocketIDClient(t, f)

	apps, err := c.AllApps(context.Background(), []string{"observability"})
	if err != nil {
		t.Fatalf("AllApps: %v", err)
	}
	if len(apps) != 2 {
		t.Fatalf("got %d apps", len(apps))
	}

	byID := map[string]bool{}
	for _, app := range apps {
		byID[app.ID] = app.HasAccess
	}
	if !byID["app-1"] {
		t.Error("group member should have access to app-1")
	}
	// No allowed groups means open access
	if !byID["app-2"] {
		t.Error("ungated app should be accessible")
	}

	// Without the group, app-1 is requestable only
	c.ClearCache()
	apps, err = c.AllApps(context.Background(), nil)
	if err != nil {
		t.Fatalf("AllApps: %v", err)
	}
	for _, app := range apps {
		if app.ID == "app-1" && app.HasAccess {
			t.Error("non-member should not have access to app-1")
		}
	}
}

func TestAccessibleApps(t *testing.T) {
	f := newFakePocketID(t)
	c := newTestPocketIDClient(t, f)

	apps, err := c.AccessibleApps(context.Background(), nil)
	if err != nil {
		t.Fatalf("AccessibleApps: %v", err)
	}
	if len(apps) != 1 || apps[0].ID != "app-2" {
		t.Errorf("accessible = %+v", apps)
	}
}

func TestAppBaseURL(t *testing.T) {
	tests := []struct {
		name string
		urls []string
		want string
	}{
		{"normal callback", []string{"https://grafana.example.com/login/generic_oauth"}, "https://grafana.example.com"},
		{"wildcard skipped", []string{"https://*.example.com/cb", "https://app.example.com/cb"}, "https://app.example.com"},
		{"no parseable url", []string{"not a url ::"}, ""},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := appBaseURL(tt.urls); got != tt.want {
				t.Errorf("appBaseURL(%v) = %q, want %q", tt.urls, got, tt.want)
			}
		})
	}
}
