package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration wraps time.Duration so yaml values like "24h" parse
type Duration time.Duration

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML parses Go duration syntax
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config represents the dashboard server configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	OIDC     OIDCConfig     `yaml:"oidc"`
	Session  SessionConfig  `yaml:"session"`
	PocketID PocketIDConfig `yaml:"pocket_id"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	App      AppConfig      `yaml:"app"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host       string `yaml:"host" default:"localhost"`
	Port       int    `yaml:"port" default:"3000"`
	StaticDir  string `yaml:"static_dir" default:"client/dist"`
	CORSOrigin string `yaml:"cors_origin"` // split dev deployment only; empty disables CORS headers
}

// DatabaseConfig holds session/access-request storage configuration.
// An empty URL selects the in-memory store (sessions are lost on restart).
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// OIDCConfig holds relying-party configuration for the upstream provider
type OIDCConfig struct {
	DiscoveryURL          string `yaml:"discovery_url"`
	ClientID              string `yaml:"client_id"`
	ClientSecret          string `yaml:"client_secret"` // optional, public-client PKCE works without it
	RedirectURI           string `yaml:"redirect_uri" default:"http://localhost:3000/auth/callback"`
	PostLogoutRedirectURI string `yaml:"post_logout_redirect_uri"`
	AdminGroup            string `yaml:"admin_group" default:"admin"`
}

// SessionConfig holds session cookie and storage configuration
type SessionConfig struct {
	Secret          string   `yaml:"secret"`
	CookieName      string   `yaml:"cookie_name" default:"pocket_id_dashboard"`
	CookieSecure    bool     `yaml:"cookie_secure"`
	MaxAge          Duration `yaml:"max_age" default:"24h"`
	CleanupInterval Duration `yaml:"cleanup_interval" default:"1h"`
}

// PocketIDConfig holds the downstream management API configuration
type PocketIDConfig struct {
	BaseURL  string   `yaml:"base_url"`
	APIURL   string   `yaml:"api_url"` // defaults to base_url + "/api"
	APIKey   string   `yaml:"api_key"`
	CacheTTL Duration `yaml:"cache_ttl" default:"1h"`
}

// SMTPConfig holds the optional access-request notification mailer
type SMTPConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	FromName   string `yaml:"from_name" default:"Pocket-ID Dashboard"`
	FromEmail  string `yaml:"from_email" default:"dashboard@example.com"`
	ReplyTo    string `yaml:"reply_to"`
	AdminEmail string `yaml:"admin_email"`
	MaxRetries int    `yaml:"max_retries" default:"3"`
}

// AppConfig holds public metadata exposed to the frontend
type AppConfig struct {
	Title           string `yaml:"title" default:"Pocket ID Dashboard"`
	SSOProviderName string `yaml:"sso_provider_name" default:"Pocket ID"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" default:"info"`  // debug, info, warn, error
	Format string `yaml:"format" default:"json"` // json, text
}

// ManagementAPIURL returns the management API base, derived from BaseURL when
// api_url is not set explicitly
func (p PocketIDConfig) ManagementAPIURL() string {
	if p.APIURL != "" {
		return strings.TrimRight(p.APIURL, "/")
	}
	return strings.TrimRight(p.BaseURL, "/") + "/api"
}

// Enabled reports whether the mailer is configured
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.Port != 0
}

// insecureSecrets are placeholder values that must never reach production
var insecureSecrets = []string{
	"your-secret-key",
	"CHANGE_ME",
	"some long secret here",
}

// Validate checks the configuration for fatal problems. The server must not
// start when this fails. Unreachable OIDC discovery is handled later as a
// degraded state, but a missing or weak session secret is not recoverable at
// runtime.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if cfg.Session.Secret == "" {
		return fmt.Errorf("session.secret is not set; generate one with 'dashctl secret generate'")
	}
	if len(cfg.Session.Secret) < 32 {
		return fmt.Errorf("session.secret is too short: need at least 32 characters, got %d", len(cfg.Session.Secret))
	}
	for _, bad := range insecureSecrets {
		if strings.Contains(cfg.Session.Secret, bad) {
			return fmt.Errorf("session.secret is a placeholder value; set a strong, unique secret")
		}
	}

	if cfg.OIDC.DiscoveryURL == "" {
		return fmt.Errorf("oidc.discovery_url is not set")
	}
	if cfg.OIDC.ClientID == "" {
		return fmt.Errorf("oidc.client_id is not set")
	}

	if cfg.PocketID.BaseURL == "" {
		return fmt.Errorf("pocket_id.base_url is not set")
	}
	if cfg.PocketID.APIKey == "" {
		return fmt.Errorf("pocket_id.api_key is not set")
	}

	return nil
}
