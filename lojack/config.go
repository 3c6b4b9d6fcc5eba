package lojack

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default Spireon endpoints and client tuning. All of these are plain
// config fields; nothing here is mutable package state.
const (
	DefaultIdentityURL = "https://identity.spireon.com"
	DefaultServicesURL = "https://services.spireon.com/v0/rest"

	DefaultTimeout       = 30 * time.Second
	DefaultRefreshMargin = 60 * time.Second
)

// Config carries credentials and endpoints for a client. Zero-value fields
// fall back to the defaults above.
type Config struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	IdentityURL string `yaml:"identity_url"`
	ServicesURL string `yaml:"services_url"`
	AppToken    string `yaml:"app_token"`

	TimeoutSeconds       int `yaml:"timeout_seconds"`
	RefreshMarginSeconds int `yaml:"refresh_margin_seconds"`

	LogLevel string `yaml:"log_level"`
}

// LoadConfig loads configuration from a yaml file (when path is non-empty)
// and environment variables, env taking effect only where the file left a
// field empty. Credentials are not required here; a caller resuming from
// exported session artifacts can run without them.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.Username == "" {
		cfg.Username = os.Getenv("LOJACK_USERNAME")
	}
	if cfg.Password == "" {
		cfg.Password = os.Getenv("LOJACK_PASSWORD")
	}
	if cfg.IdentityURL == "" {
		cfg.IdentityURL = getenvDefault("LOJACK_IDENTITY_URL", DefaultIdentityURL)
	}
	if cfg.ServicesURL == "" {
		cfg.ServicesURL = getenvDefault("LOJACK_SERVICES_URL", DefaultServicesURL)
	}
	if cfg.AppToken == "" {
		cfg.AppToken = os.Getenv("LOJACK_APP_TOKEN")
	}
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = getenvIntDefault("LOJACK_TIMEOUT_SECONDS", int(DefaultTimeout/time.Second))
	}
	if cfg.RefreshMarginSeconds == 0 {
		cfg.RefreshMarginSeconds = getenvIntDefault("LOJACK_REFRESH_MARGIN_SECONDS", int(DefaultRefreshMargin/time.Second))
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = getenvDefault("LOJACK_LOG_LEVEL", "info")
	}

	if cfg.IdentityURL == "" || cfg.ServicesURL == "" {
		return cfg, errors.New("lojack: identity and services urls required")
	}
	return cfg, nil
}

// Timeout returns the HTTP timeout as a duration.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RefreshMargin returns the token refresh safety margin as a duration.
func (c Config) RefreshMargin() time.Duration {
	if c.RefreshMarginSeconds <= 0 {
		return DefaultRefreshMargin
	}
	return time.Duration(c.RefreshMarginSeconds) * time.Second
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvIntDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
