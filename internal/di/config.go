package di

import (
	"fmt"

	"tenant-portal/internal/gateway"
	realtime "tenant-portal/internal/realtime/usecase"
	sessionconfig "tenant-portal/internal/session/config"
	"tenant-portal/internal/shared/logger"
	"tenant-portal/internal/tenant"

	"github.com/caarlos0/env/v6"
)

// Config gathers the configuration sections of every module
type Config struct {
	// MetricsAddr serves /metrics when set
	MetricsAddr string `env:"METRICS_ADDR"`

	Logger   logger.Config
	Tenant   tenant.Config
	Session  sessionconfig.Config
	Gateway  gateway.Config
	Realtime realtime.Config
}

// LoadConfig parses every section from the environment and validates it
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks each section
func (c *Config) Validate() error {
	if err := c.Session.Validate(); err != nil {
		return err
	}
	if _, err := c.Gateway.ParsedBaseURL(); err != nil {
		return err
	}
	if err := c.Realtime.Validate(); err != nil {
		return err
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}
