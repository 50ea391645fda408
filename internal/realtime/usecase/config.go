package usecase

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config holds realtime channel settings
type Config struct {
	ReconnectInterval    time.Duration `env:"REALTIME_RECONNECT_INTERVAL" envDefault:"3s"`
	MaxReconnectAttempts int           `env:"REALTIME_MAX_RECONNECT_ATTEMPTS" envDefault:"5"`
	HandshakeTimeout     time.Duration `env:"REALTIME_HANDSHAKE_TIMEOUT" envDefault:"10s"`
}

// LoadConfig reads the realtime settings from the environment
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse realtime config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the reconnect settings
func (c *Config) Validate() error {
	if c.ReconnectInterval <= 0 {
		return fmt.Errorf("REALTIME_RECONNECT_INTERVAL must be positive")
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("REALTIME_MAX_RECONNECT_ATTEMPTS must not be negative")
	}
	return nil
}

// Options turns the config into channel options
func (c *Config) Options() Options {
	return Options{
		ReconnectInterval:    c.ReconnectInterval,
		MaxReconnectAttempts: c.MaxReconnectAttempts,
		DialTimeout:          c.HandshakeTimeout,
	}
}
