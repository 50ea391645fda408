package devserver

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config holds the development backend settings
type Config struct {
	Addr         string        `env:"DEVSERVER_ADDR" envDefault:":8080"`
	JWTSecret    string        `env:"DEVSERVER_JWT_SECRET" envDefault:"dev-secret-change-me"`
	TokenTTL     time.Duration `env:"DEVSERVER_TOKEN_TTL" envDefault:"24h"`
	AllowOrigins string        `env:"DEVSERVER_ALLOW_ORIGINS" envDefault:"*"`
	// DashboardInterval is the period of superadmin dashboard pushes, 0 disables them
	DashboardInterval time.Duration `env:"DEVSERVER_DASHBOARD_INTERVAL" envDefault:"30s"`
	// SeedPassword is the password of the seeded development accounts
	SeedPassword string `env:"DEVSERVER_SEED_PASSWORD" envDefault:"password123"`
}

// LoadConfig reads the devserver settings from the environment
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse devserver config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("DEVSERVER_JWT_SECRET cannot be empty")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("DEVSERVER_TOKEN_TTL must be positive")
	}
	if c.DashboardInterval < 0 {
		return fmt.Errorf("DEVSERVER_DASHBOARD_INTERVAL must not be negative")
	}
	return nil
}
