package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := Defaults()
	cfg.Session.Secret = "a-sufficiently-long-and-random-secret-value"
	cfg.OIDC.DiscoveryURL = "https://id.example.com/.well-known/openid-configuration"
	cfg.OIDC.ClientID = "dashboard"
	cfg.PocketID.BaseURL = "https://id.example.com"
	cfg.PocketID.APIKey = "api-key"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"missing secret", func(c *Config) { c.Session.Secret = "" }, "session.secret"},
		{"short secret", func(c *Config) { c.Session.Secret = "too-short" }, "too short"},
		{"placeholder secret", func(c *Config) {
			c.Session.Secret = "your-secret-key-your-secret-key-your-secret-key"
		}, "placeholder"},
		{"missing discovery url", func(c *Config) { c.OIDC.DiscoveryURL = "" }, "discovery_url"},
		{"missing client id", func(c *Config) { c.OIDC.ClientID = "" }, "client_id"},
		{"missing base url", func(c *Config) { c.PocketID.BaseURL = "" }, "base_url"},
		{"missing api key", func(c *Config) { c.PocketID.APIKey = "" }, "api_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestManagementAPIURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  PocketIDConfig
		want string
	}{
		{"derived from base", PocketIDConfig{BaseURL: "https://id.example.com"}, "https://id.example.com/api"},
		{"base with trailing slash", PocketIDConfig{BaseURL: "https://id.example.com/"}, "https://id.example.com/api"},
		{"explicit api url", PocketIDConfig{BaseURL: "https://id.example.com", APIURL: "https://api.example.com/"}, "https://api.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.ManagementAPIURL(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadExpandsEnvAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
server:
  port: 8080
session:
  secret: ${TEST_DASHBOARD_SECRET}
  max_age: 12h
oidc:
  discovery_url: https://id.example.com/.well-known/openid-configuration
  client_id: dashboard
pocket_id:
  base_url: https://id.example.com
  api_key: file-key
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TEST_DASHBOARD_SECRET", "env-expanded-secret-that-is-long-enough!")
	t.Setenv("POCKET_ID_API_KEY", "env-key-wins")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Session.Secret != "env-expanded-secret-that-is-long-enough!" {
		t.Errorf("secret not expanded: %q", cfg.Session.Secret)
	}
	if cfg.Session.MaxAge.Std() != 12*time.Hour {
		t.Errorf("max_age = %v", cfg.Session.MaxAge)
	}
	if cfg.PocketID.APIKey != "env-key-wins" {
		t.Errorf("env override lost: %q", cfg.PocketID.APIKey)
	}
	// Defaults fill what the file omits
	if cfg.Session.CookieName == "" {
		t.Error("cookie name default missing")
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(file, []byte("server: {}\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"regular file", file, true},
		{"directory", dir, false},
		{"missing", filepath.Join(dir, "nope.yaml"), false},
		// Stat fails with ENOTDIR here, which is not an IsNotExist error
		{"path under a file", filepath.Join(file, "child.yaml"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fileExists(tt.path); got != tt.want {
				t.Errorf("fileExists(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
