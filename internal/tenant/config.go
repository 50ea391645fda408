package tenant

import (
	"fmt"

	"github.com/caarlos0/env/v6"
)

// Config holds tenant resolution settings
type Config struct {
	PublicSuffixes      []string `env:"PUBLIC_SUFFIXES" envSeparator:","`
	UsePublicSuffixList bool     `env:"USE_PUBLIC_SUFFIX_LIST" envDefault:"false"`
	// Host overrides the host used at boot, e.g. for a CLI run outside a browser
	Host string `env:"PORTAL_HOST" envDefault:"localhost"`
}

// LoadConfig loads tenant configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse tenant config: %w", err)
	}
	return cfg, nil
}
