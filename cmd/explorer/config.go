package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/progsync/connectivity"
	"github.com/hazyhaar/progsync/content"
)

// Config holds the terminal client configuration.
type Config struct {
	AuthBaseURL string                        `yaml:"auth_base_url"`
	Token       string                        `yaml:"token"`
	LogFile     string                        `yaml:"log_file"`
	LogLevel    string                        `yaml:"log_level"`
	CallTimeout time.Duration                 `yaml:"call_timeout"`
	Services    map[string]connectivity.Route `yaml:"services"`
}

func (c *Config) defaults() {
	if c.AuthBaseURL == "" {
		c.AuthBaseURL = "http://localhost:3001"
	}
	if c.LogFile == "" {
		c.LogFile = "explorer.log"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.Services == nil {
		c.Services = map[string]connectivity.Route{}
	}
	if _, ok := c.Services[content.ServiceDiscovery]; !ok {
		c.Services[content.ServiceDiscovery] = connectivity.Route{Strategy: "http", Endpoint: "http://localhost:8000/api/discovery/"}
	}
	if _, ok := c.Services[content.ServiceQuery]; !ok {
		c.Services[content.ServiceQuery] = connectivity.Route{Strategy: "http", Endpoint: "http://localhost:8000/api/llm/prompt"}
	}
}

func (c *Config) applyEnv(getenv func(string) string) {
	env := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	env("AUTH_BASE_URL", &c.AuthBaseURL)
	env("EXPLORER_TOKEN", &c.Token)
	env("EXPLORER_LOG", &c.LogFile)
	env("LOG_LEVEL", &c.LogLevel)
	for key, service := range map[string]string{
		"DISCOVERY_ENDPOINT": content.ServiceDiscovery,
		"QUERY_ENDPOINT":     content.ServiceQuery,
	} {
		if v := getenv(key); v != "" {
			if c.Services == nil {
				c.Services = map[string]connectivity.Route{}
			}
			rt := c.Services[service]
			rt.Endpoint = v
			if rt.Strategy == "" {
				rt.Strategy = "http"
			}
			c.Services[service] = rt
		}
	}
}

// Routes returns the service routes sorted by service name.
func (c *Config) Routes() []connectivity.Route {
	out := make([]connectivity.Route, 0, len(c.Services))
	for name, rt := range c.Services {
		rt.Service = name
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out
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

func loadConfig(path string, getenv func(string) string) (*Config, error) {
	cfg, err := LoadConfigFile(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv(getenv)
	cfg.defaults()
	return cfg, nil
}
