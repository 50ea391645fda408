package gateway

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config holds the backend connection settings
type Config struct {
	BaseURL string        `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	Timeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s"`
}

// LoadConfig loads gateway configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse gateway config: %w", err)
	}
	if _, err := cfg.ParsedBaseURL(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParsedBaseURL validates and parses BaseURL
func (c *Config) ParsedBaseURL() (*url.URL, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API_BASE_URL %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("API_BASE_URL must be http or https, got %q", c.BaseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("API_BASE_URL has no host: %q", c.BaseURL)
	}
	return u, nil
}
