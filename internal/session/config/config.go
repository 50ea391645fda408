package config

import (
	"fmt"
	"strings"
	"time"

	"tenant-portal/internal/session/domain/model"

	"github.com/caarlos0/env/v6"
)

// Store backends
const (
	StoreFile    = "file"
	StoreMemory  = "memory"
	StoreRedis   = "redis"
	StoreMongoDB = "mongodb"
)

// Config holds all configuration for the session module.
type Config struct {
	StorageKey    string   `env:"SESSION_STORAGE_KEY" envDefault:"tenant-portal.session"`
	PersistFields []string `env:"SESSION_PERSIST_FIELDS" envSeparator:"," envDefault:"token,user,company"`
	Store         string   `env:"SESSION_STORE" envDefault:"file"`

	// File store
	FileDir string `env:"SESSION_FILE_DIR" envDefault:".portal"`

	// Redis store
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	SnapshotTTL   time.Duration `env:"SESSION_TTL" envDefault:"720h"`

	// MongoDB store
	MongoURI        string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	MongoDBPrefix   string `env:"SESSION_DB_PREFIX" envDefault:"portal_tenant_"`
	MongoCollection string `env:"SESSION_COLLECTION" envDefault:"sessions"`
}

// LoadConfig loads configuration from environment variables and validates it.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse session config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes the whitelist and checks the store backend
func (c *Config) Validate() error {
	if strings.TrimSpace(c.StorageKey) == "" {
		return fmt.Errorf("session storage key is required")
	}
	fields := make([]string, 0, len(c.PersistFields))
	for _, f := range c.PersistFields {
		f = strings.ToLower(strings.TrimSpace(f))
		switch f {
		case "":
			continue
		case model.FieldToken, model.FieldUser, model.FieldCompany:
			fields = append(fields, f)
		default:
			return fmt.Errorf("unknown session persist field %q", f)
		}
	}
	c.PersistFields = fields

	switch c.Store {
	case StoreFile, StoreMemory, StoreRedis, StoreMongoDB:
	default:
		return fmt.Errorf("unknown session store %q", c.Store)
	}
	return nil
}

// KeyFor namespaces the storage key by application so tenants sharing a store
// never read each other's snapshot.
func (c *Config) KeyFor(application string) string {
	if application == "" {
		return c.StorageKey
	}
	return c.StorageKey + ":" + application
}
