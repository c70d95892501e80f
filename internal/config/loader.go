package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
// Uses Go's built-in os.ExpandEnv which is the idiomatic way to handle this
func expandEnvVars(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}

// DefaultConfigPaths defines the default locations to search for configuration files
var DefaultConfigPaths = []string{
	"./config.yaml",
	"./config.yml",
	"./configs/dashboard.yaml",
	"./configs/dashboard.yml",
	"/etc/pocketid-dashboard/config.yaml",
	"/etc/pocketid-dashboard/config.yml",
}

// Load loads the configuration from the specified file or default locations
func Load(configPath string) (*Config, error) {
	config := Defaults()

	// If no config path is provided, search in default locations
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" && fileExists(configPath) {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables in the config
		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(config)

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Defaults returns a config populated with default values
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "localhost",
			Port:      3000,
			StaticDir: "client/dist",
		},
		OIDC: OIDCConfig{
			RedirectURI: "http://localhost:3000/auth/callback",
			AdminGroup:  "admin",
		},
		Session: SessionConfig{
			CookieName:      "pocket_id_dashboard",
			MaxAge:          Duration(24 * time.Hour),
			CleanupInterval: Duration(time.Hour),
		},
		PocketID: PocketIDConfig{
			CacheTTL: Duration(time.Hour),
		},
		SMTP: SMTPConfig{
			FromName:   "Pocket-ID Dashboard",
			FromEmail:  "dashboard@example.com",
			MaxRetries: 3,
		},
		App: AppConfig{
			Title:           "Pocket ID Dashboard",
			SSOProviderName: "Pocket ID",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// applyEnvOverrides lets secrets and endpoints come straight from the
// environment, taking precedence over the config file
func applyEnvOverrides(config *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"SESSION_SECRET", &config.Session.Secret},
		{"DATABASE_URL", &config.Database.URL},
		{"OIDC_DISCOVERY_URL", &config.OIDC.DiscoveryURL},
		{"OIDC_CLIENT_ID", &config.OIDC.ClientID},
		{"OIDC_CLIENT_SECRET", &config.OIDC.ClientSecret},
		{"OIDC_REDIRECT_URI", &config.OIDC.RedirectURI},
		{"OIDC_POST_LOGOUT_REDIRECT_URI", &config.OIDC.PostLogoutRedirectURI},
		{"POCKET_ID_BASE_URL", &config.PocketID.BaseURL},
		{"POCKET_ID_API_URL", &config.PocketID.APIURL},
		{"POCKET_ID_API_KEY", &config.PocketID.APIKey},
		{"ADMIN_EMAIL", &config.SMTP.AdminEmail},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// findConfigFile searches for a configuration file in default locations
func findConfigFile() string {
	for _, path := range DefaultConfigPaths {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// fileExists checks if a file exists and is not a directory. Any stat error,
// not just not-exist, counts as missing.
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}
