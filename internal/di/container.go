package di

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"tenant-portal/internal/gateway"
	"tenant-portal/internal/metrics"
	"tenant-portal/internal/navigation"
	rtws "tenant-portal/internal/realtime/adapter/websocket"
	realtime "tenant-portal/internal/realtime/usecase"
	"tenant-portal/internal/session/adapter/persistence"
	"tenant-portal/internal/session/adapter/persistence/mongodb"
	sessionconfig "tenant-portal/internal/session/config"
	"tenant-portal/internal/session/domain/repository"
	sessionusecase "tenant-portal/internal/session/usecase"
	"tenant-portal/internal/shared/database"
	apperrors "tenant-portal/internal/shared/errors"
	"tenant-portal/internal/shared/eventbus"
	"tenant-portal/internal/shared/logger"
	"tenant-portal/internal/shared/utils"
	"tenant-portal/internal/tenant"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// Options replace collaborators that are built from configuration by default.
// Tests use them to avoid real stores and real time.
type Options struct {
	// Host is the host the application is loaded from. Empty uses Tenant.Host.
	Host string
	// Store overrides the snapshot store selected by SESSION_STORE
	Store repository.SnapshotStore
	// Dialer overrides the websocket dialer
	Dialer realtime.Dialer
	// BaseTransport is wrapped by the gateway transport, http.DefaultTransport when nil
	BaseTransport http.RoundTripper
	// Redirector restarts the application when the router is not ready
	Redirector gateway.Redirector
	Clock      clockwork.Clock
	// Registry receives the portal metrics, a fresh registry when nil
	Registry *prometheus.Registry
	Logger   logger.Logger
}

// Container owns every component of one running tenant application and the
// order they are wired in.
type Container struct {
	mu       sync.RWMutex
	services map[reflect.Type]interface{}

	Config      *Config
	Application tenant.Application
	// Subdomain is the tenant label resolved from the host, empty for the bare domain
	Subdomain string

	Bus       *eventbus.EventBus
	Store     repository.SnapshotStore
	Session   *sessionusecase.Session
	API       *gateway.APIClient
	Channel   *realtime.Channel
	Dashboard *realtime.DashboardCache
	Router    *navigation.Router
	Metrics   *metrics.Collector
	Registry  *prometheus.Registry
	Logger    logger.Logger

	authFailure *gateway.AuthFailureHandler
	redirector  gateway.Redirector
	storageKey  string
	reloads     atomic.Int64

	// closers release store connections in reverse order; pingers back HealthCheck
	closers []func(context.Context) error
	pingers map[string]func(context.Context) error

	watchCancel context.CancelFunc
}

// New builds the container for the application selected by the host: store,
// session, realtime channel, router with guards, then the HTTP gateway whose
// API client is attached to the session last.
func New(ctx context.Context, cfg *Config, opts Options) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("container config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = logger.New(cfg.Logger)
	}

	host := opts.Host
	if host == "" {
		host = cfg.Tenant.Host
	}
	app, sub := tenant.NewSelector(tenant.NewResolverFromConfig(&cfg.Tenant)).Select(host)
	log = log.WithFields(map[string]interface{}{
		"tenant":      sub,
		"application": string(app.Name),
	})

	c := &Container{
		services:    make(map[reflect.Type]interface{}),
		Config:      cfg,
		Application: app,
		Subdomain:   sub,
		Bus:         eventbus.NewEventBus(log),
		Logger:      log,
		redirector:  opts.Redirector,
		storageKey:  cfg.Session.KeyFor(string(app.Name)),
		pingers:     make(map[string]func(context.Context) error),
	}

	c.Registry = opts.Registry
	if c.Registry == nil {
		c.Registry = prometheus.NewRegistry()
	}
	c.Metrics = metrics.NewCollector(c.Registry)

	store := opts.Store
	if store == nil {
		var err error
		if store, err = c.buildStore(ctx); err != nil {
			c.Cleanup(ctx)
			return nil, err
		}
	}
	c.Store = store

	c.Session = sessionusecase.NewSession(store, sessionusecase.Options{
		StorageKey:    c.storageKey,
		PersistFields: cfg.Session.PersistFields,
		Publisher:     c.Bus,
		Logger:        log,
	})

	baseURL, err := cfg.Gateway.ParsedBaseURL()
	if err != nil {
		c.Cleanup(ctx)
		return nil, err
	}

	// channel stays a nil interface for applications without realtime
	var channelCloser gateway.ChannelCloser
	var guardCloser navigation.Closer
	if app.UsesRealtime() {
		dialer := opts.Dialer
		if dialer == nil {
			dialer = rtws.NewDialer(cfg.Realtime.HandshakeTimeout)
		}
		c.Dashboard = realtime.NewDashboardCache()
		chOpts := cfg.Realtime.Options()
		chOpts.Clock = opts.Clock
		chOpts.Metrics = c.Metrics
		chOpts.Logger = log
		chOpts.Observers = []realtime.Observer{c.Dashboard}
		c.Channel = realtime.NewChannel(baseURL, c.Session, dialer, chOpts)
		channelCloser = c.Channel
		guardCloser = c.Channel
	}

	c.Router, err = navigation.Setup(app, c.Session, guardCloser, nil, log)
	if err != nil {
		c.Cleanup(ctx)
		return nil, err
	}

	c.authFailure = gateway.NewAuthFailureHandler(c.Session, channelCloser, c.Router, opts.Redirector, app.LoginPath, log)
	transport := gateway.NewTransport(opts.BaseTransport, c.Session, c.authFailure, c.Metrics, log)
	c.API = gateway.NewAPIClient(baseURL, gateway.NewHTTPClient(transport, cfg.Gateway.Timeout), log)
	c.Session.AttachBackend(c.API)

	c.subscribe()

	for _, svc := range []interface{}{c.Session, c.API, c.Router, c.Bus, c.Metrics} {
		c.Register(svc)
	}
	if c.Channel != nil {
		c.Register(c.Channel)
		c.Register(c.Dashboard)
	}

	log.Infof("Application %s selected for host %s", app.Name, host)
	return c, nil
}

func (c *Container) buildStore(ctx context.Context) (repository.SnapshotStore, error) {
	cfg := c.Config.Session
	switch cfg.Store {
	case sessionconfig.StoreMemory:
		return persistence.NewMemoryStore(), nil

	case sessionconfig.StoreFile:
		return persistence.NewFileStore(cfg.FileDir, c.Logger)

	case sessionconfig.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, apperrors.NewInfrastructureError("redis is unreachable").WithCause(err).WithComponent("di")
		}
		c.closers = append(c.closers, func(context.Context) error { return client.Close() })
		c.pingers["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		return persistence.NewRedisStore(client, cfg.SnapshotTTL, c.Logger), nil

	case sessionconfig.StoreMongoDB:
		tcfg := database.DefaultTenantConfig()
		tcfg.DatabasePrefix = cfg.MongoDBPrefix
		client, err := database.Connect(ctx, cfg.MongoURI, tcfg)
		if err != nil {
			return nil, apperrors.NewInfrastructureError("mongodb is unreachable").WithCause(err).WithComponent("di")
		}
		tm := database.NewTenantManager(client, tcfg, c.Logger)
		c.closers = append(c.closers, tm.Close)
		c.pingers["mongodb"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
		return mongodb.NewSnapshotStore(tm, c.tenantID(), cfg.MongoCollection, c.Logger)
	}
	return nil, fmt.Errorf("unknown session store %q", cfg.Store)
}

// tenantID names the tenant database. The bare domain uses the application name.
func (c *Container) tenantID() string {
	if c.Subdomain != "" {
		return c.Subdomain
	}
	return string(c.Application.Name)
}

func (c *Container) subscribe() {
	c.Bus.Subscribe(eventbus.EventTypeSessionAuthenticated, func(ctx context.Context, _ eventbus.Event) error {
		return c.connectRealtime()
	})
	c.Bus.Subscribe(eventbus.EventTypeSessionCleared, func(ctx context.Context, _ eventbus.Event) error {
		if c.Dashboard != nil {
			c.Dashboard.Reset()
		}
		return nil
	})
	c.Bus.Subscribe(eventbus.EventTypeSessionReloadRequired, func(ctx context.Context, e eventbus.Event) error {
		c.Logger.Warnf("Reload required: %v", e.Data())
		return c.Reload(ctx)
	})
}

// Context returns ctx carrying the tenant and application for log correlation
func (c *Container) Context(ctx context.Context) context.Context {
	ctx = utils.WithTenantID(ctx, c.tenantID())
	return utils.WithApplication(ctx, string(c.Application.Name))
}

// Boot restores the session, refreshes the company profile, opens the realtime
// channel when authenticated and performs the initial navigation to path.
func (c *Container) Boot(ctx context.Context, path string) error {
	ctx = c.Context(ctx)
	if err := c.Session.Restore(ctx); err != nil {
		return err
	}
	if err := c.watchStore(); err != nil {
		c.Logger.Warnf("Session store watch unavailable: %v", err)
	}

	if err := c.Session.FetchCompanyProfile(ctx); err != nil {
		c.Logger.Warnf("Company profile not refreshed at boot: %v", err)
	}
	if err := c.connectRealtime(); err != nil {
		c.Logger.Warnf("Realtime channel not opened at boot: %v", err)
	}
	return c.Router.Start(ctx, path)
}

func (c *Container) connectRealtime() error {
	if c.Channel == nil || !c.Session.Authenticated() || c.Channel.Active() {
		return nil
	}
	return c.Channel.Connect(c.Application.RealtimePath)
}

func (c *Container) watchStore() error {
	watchable, ok := c.Store.(repository.WatchableStore)
	if !ok {
		return nil
	}
	c.mu.Lock()
	if c.watchCancel != nil {
		c.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.watchCancel = cancel
	c.mu.Unlock()

	return watchable.Watch(ctx, c.storageKey, func() {
		c.syncFromStore(c.Context(ctx))
	})
}

// syncFromStore applies a snapshot rewritten by another process. A logout
// there tears this application down the same way a rejected credential does.
func (c *Container) syncFromStore(ctx context.Context) {
	wasAuthenticated := c.Session.Authenticated()
	if err := c.Session.Sync(ctx); err != nil {
		c.Logger.Warnf("Failed to sync session from store: %v", err)
		return
	}
	if wasAuthenticated && !c.Session.Authenticated() {
		c.authFailure.HandleUnauthorized(ctx)
	}
}

// Login authenticates with the application's login endpoint and navigates home
func (c *Container) Login(ctx context.Context, email, password string) error {
	ctx = c.Context(ctx)
	if _, err := c.Session.Login(ctx, c.Application.LoginKind, email, password); err != nil {
		return err
	}
	if err := c.Session.FetchCompanyProfile(ctx); err != nil {
		if apperrors.IsEntitlement(err) {
			return err
		}
		c.Logger.Warnf("Company profile not loaded after login: %v", err)
	}
	if !c.Router.Ready() {
		return nil
	}
	return c.Router.Push(ctx, c.Application.HomePath)
}

// Logout revokes the token on the backend, then clears the session, closes the
// channel and returns to the login route. The backend call is best effort.
func (c *Container) Logout(ctx context.Context) error {
	ctx = c.Context(ctx)
	if c.Session.Authenticated() {
		if err := c.API.Logout(ctx); err != nil {
			c.Logger.Warnf("Backend logout failed: %v", err)
		}
	}
	c.Session.ClearAuth(ctx)
	if c.Channel != nil {
		c.Channel.Close()
	}
	if !c.Router.Ready() {
		return nil
	}
	return c.Router.Push(ctx, c.Application.LoginPath)
}

// Reload restarts the application after the backend withdrew access: the
// channel is closed, the session re-read from the store and the user sent to
// the login route.
func (c *Container) Reload(ctx context.Context) error {
	c.reloads.Add(1)
	if c.Channel != nil {
		c.Channel.Close()
	}
	if c.Dashboard != nil {
		c.Dashboard.Reset()
	}
	if err := c.Session.Restore(ctx); err != nil {
		return err
	}
	if c.Router.Ready() {
		return c.Router.Push(ctx, c.Application.LoginPath)
	}
	if c.redirector != nil {
		c.redirector.HardRedirect(c.Application.LoginPath)
	}
	return nil
}

// Reloads returns how many times the application was reloaded
func (c *Container) Reloads() int64 {
	return c.reloads.Load()
}

// Register registers a service instance under its concrete type
func (c *Container) Register(service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[reflect.TypeOf(service)] = service
}

// Resolve resolves a service by type
func (c *Container) Resolve(serviceType reflect.Type) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if service, ok := c.services[serviceType]; ok {
		return service, nil
	}
	return nil, fmt.Errorf("service of type %v not registered", serviceType)
}

// GetService is a generic helper for resolving services
func GetService[T any](c *Container) (T, error) {
	var zero T
	service, err := c.Resolve(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return zero, err
	}
	typed, ok := service.(T)
	if !ok {
		return zero, fmt.Errorf("service is not of expected type %T", zero)
	}
	return typed, nil
}

// HealthCheck pings the external stores the session depends on
func (c *Container) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for name, ping := range c.pingers {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s health check failed: %w", name, err)
		}
	}
	return nil
}

// Cleanup closes the channel, stops the store watch and releases store
// connections in reverse order of creation.
func (c *Container) Cleanup(ctx context.Context) error {
	if c.Channel != nil {
		c.Channel.Close()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watchCancel != nil {
		c.watchCancel()
		c.watchCancel = nil
	}

	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	c.services = make(map[reflect.Type]interface{})

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// Close gracefully shuts down all services in the container with timeout
func (c *Container) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return c.Cleanup(ctx)
}
