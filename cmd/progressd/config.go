package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/progsync/auth"
)

// Config holds all progressd configuration.
type Config struct {
	Addr            string        `yaml:"addr"`
	DBPath          string        `yaml:"db_path"`
	ObservabilityDB string        `yaml:"observability_db"` // empty: events live in db_path
	BusyTimeoutMs   int           `yaml:"busy_timeout_ms"`
	FrontendOrigin  string        `yaml:"frontend_origin"`
	SessionSecret   string        `yaml:"session_secret"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	CookieDomain    string        `yaml:"cookie_domain"`
	StrictDomains   *bool         `yaml:"strict_domains"`
	EventRetention  time.Duration `yaml:"event_retention"`
	LogLevel        string        `yaml:"log_level"`

	OAuth struct {
		Google        auth.OAuthConfig `yaml:"google"`
		RedirectAfter string           `yaml:"redirect_after"`
	} `yaml:"oauth"`
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = ":3001"
	}
	if c.DBPath == "" {
		c.DBPath = "data/progress.db"
	}
	if c.BusyTimeoutMs <= 0 {
		c.BusyTimeoutMs = 10_000
	}
	if c.FrontendOrigin == "" {
		c.FrontendOrigin = "http://localhost:5173"
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 30 * 24 * time.Hour
	}
	if c.StrictDomains == nil {
		strict := true
		c.StrictDomains = &strict
	}
	if c.EventRetention <= 0 {
		c.EventRetention = 90 * 24 * time.Hour
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.OAuth.RedirectAfter == "" {
		c.OAuth.RedirectAfter = c.FrontendOrigin
	}
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv(getenv func(string) string) error {
	env := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	env("ADDR", &c.Addr)
	env("DB_PATH", &c.DBPath)
	env("OBSERVABILITY_DB", &c.ObservabilityDB)
	env("FRONTEND_ORIGIN", &c.FrontendOrigin)
	env("SESSION_SECRET", &c.SessionSecret)
	env("COOKIE_DOMAIN", &c.CookieDomain)
	env("LOG_LEVEL", &c.LogLevel)
	env("GOOGLE_CLIENT_ID", &c.OAuth.Google.ClientID)
	env("GOOGLE_CLIENT_SECRET", &c.OAuth.Google.ClientSecret)
	env("GOOGLE_REDIRECT_URL", &c.OAuth.Google.RedirectURL)
	if v := getenv("PORT"); v != "" && getenv("ADDR") == "" {
		c.Addr = ":" + v
	}
	if v := getenv("BUSY_TIMEOUT_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BUSY_TIMEOUT_MS: %w", err)
		}
		c.BusyTimeoutMs = ms
	}
	if v := getenv("STRICT_DOMAINS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("STRICT_DOMAINS: %w", err)
		}
		c.StrictDomains = &b
	}
	return nil
}

// LoadConfigFile reads a YAML config file. An empty path yields an empty
// Config.
func LoadConfigFile(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// loadConfig reads path, applies environment overrides, then defaults.
func loadConfig(path string, getenv func(string) string) (*Config, error) {
	cfg, err := LoadConfigFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	cfg.defaults()
	if cfg.SessionSecret == "" {
		return nil, errors.New("session_secret (or SESSION_SECRET) is required")
	}
	return cfg, nil
}
