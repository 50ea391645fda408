package database

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tenant-portal/internal/shared/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TenantManager hands out one MongoDB database per tenant, so tenants sharing a
// cluster never share collections.
type TenantManager struct {
	client    *mongo.Client
	databases map[string]*mongo.Database // tenantID -> database
	mu        sync.RWMutex
	logger    logger.Logger
	config    *TenantConfig
}

// TenantConfig holds configuration for tenant database management
type TenantConfig struct {
	DatabasePrefix    string        `env:"SESSION_DB_PREFIX" envDefault:"portal_tenant_"`
	MaxTenants        int           `env:"MAX_TENANT_DATABASES" envDefault:"100"`
	ConnectionTimeout time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
}

// DefaultTenantConfig returns the settings used when none are given
func DefaultTenantConfig() *TenantConfig {
	return &TenantConfig{
		DatabasePrefix:    "portal_tenant_",
		MaxTenants:        100,
		ConnectionTimeout: 10 * time.Second,
	}
}

// Connect dials MongoDB and verifies the connection with a ping
func Connect(ctx context.Context, uri string, cfg *TenantConfig) (*mongo.Client, error) {
	if cfg == nil {
		cfg = DefaultTenantConfig()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectionTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// NewTenantManager creates a new tenant manager
func NewTenantManager(client *mongo.Client, config *TenantConfig, log logger.Logger) *TenantManager {
	if config == nil {
		config = DefaultTenantConfig()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &TenantManager{
		client:    client,
		databases: make(map[string]*mongo.Database),
		logger:    log.WithComponent("tenant_manager"),
		config:    config,
	}
}

// DatabaseFor returns the database of a tenant, creating the handle on first use
func (tm *TenantManager) DatabaseFor(tenantID string) (*mongo.Database, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	tm.mu.RLock()
	if db, exists := tm.databases[tenantID]; exists {
		tm.mu.RUnlock()
		return db, nil
	}
	tm.mu.RUnlock()

	// Double-check locking pattern
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if db, exists := tm.databases[tenantID]; exists {
		return db, nil
	}
	if tm.config.MaxTenants > 0 && len(tm.databases) >= tm.config.MaxTenants {
		return nil, fmt.Errorf("tenant database limit of %d reached", tm.config.MaxTenants)
	}

	db := tm.client.Database(tm.DatabaseName(tenantID))
	tm.databases[tenantID] = db

	tm.logger.WithFields(map[string]interface{}{
		"tenant":        tenantID,
		"database_name": db.Name(),
	}).Info("Opened tenant database")

	return db, nil
}

// DropTenant deletes the database of a tenant
func (tm *TenantManager) DropTenant(ctx context.Context, tenantID string) error {
	tm.mu.Lock()
	delete(tm.databases, tenantID)
	tm.mu.Unlock()

	if err := tm.client.Database(tm.DatabaseName(tenantID)).Drop(ctx); err != nil {
		return fmt.Errorf("failed to drop tenant database: %w", err)
	}
	tm.logger.WithFields(map[string]interface{}{"tenant": tenantID}).Info("Dropped tenant database")
	return nil
}

// Close forgets every database handle and disconnects the client
func (tm *TenantManager) Close(ctx context.Context) error {
	tm.mu.Lock()
	tm.databases = make(map[string]*mongo.Database)
	tm.mu.Unlock()

	if tm.client == nil {
		return nil
	}
	return tm.client.Disconnect(ctx)
}

// ConnectionCount returns the number of tenant databases handed out
func (tm *TenantManager) ConnectionCount() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return len(tm.databases)
}

// DatabaseName maps a tenant onto its database name
func (tm *TenantManager) DatabaseName(tenantID string) string {
	sanitized := strings.ToLower(tenantID)
	sanitized = strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(sanitized)
	return tm.config.DatabasePrefix + sanitized
}

// ValidateTenantID validates a tenant identifier
func ValidateTenantID(tenantID string) error {
	if tenantID == "" {
		return fmt.Errorf("tenant ID cannot be empty")
	}
	if len(tenantID) > 63 {
		return fmt.Errorf("tenant ID too long (max 63 characters)")
	}
	for _, char := range tenantID {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '-' || char == '_' || char == '.') {
			return fmt.Errorf("tenant ID contains invalid characters")
		}
	}
	return nil
}
