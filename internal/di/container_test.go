package di

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"tenant-portal/internal/devserver"
	"tenant-portal/internal/gateway"
	rtmodel "tenant-portal/internal/realtime/domain/model"
	realtime "tenant-portal/internal/realtime/usecase"
	"tenant-portal/internal/session/adapter/persistence"
	sessionconfig "tenant-portal/internal/session/config"
	"tenant-portal/internal/session/domain/model"
	sessionusecase "tenant-portal/internal/session/usecase"
	apperrors "tenant-portal/internal/shared/errors"
	"tenant-portal/internal/tenant"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const password = "password123"

func testConfig(baseURL string) *Config {
	return &Config{
		Tenant: tenant.Config{Host: "localhost"},
		Session: sessionconfig.Config{
			StorageKey:    "test.session",
			PersistFields: []string{model.FieldToken, model.FieldUser, model.FieldCompany},
			Store:         sessionconfig.StoreMemory,
		},
		Gateway: gateway.Config{BaseURL: baseURL, Timeout: 5 * time.Second},
		Realtime: realtime.Config{
			ReconnectInterval:    50 * time.Millisecond,
			MaxReconnectAttempts: 2,
			HandshakeTimeout:     2 * time.Second,
		},
	}
}

func startBackend(t *testing.T) (*devserver.Server, string) {
	t.Helper()
	store := devserver.NewStore(bcrypt.MinCost)
	require.NoError(t, devserver.Seed(store, password))
	srv, err := devserver.New(&devserver.Config{JWTSecret: "test-secret", TokenTTL: time.Hour, AllowOrigins: "*"}, store, nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Listener(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })
	return srv, "http://" + ln.Addr().String()
}

func newContainer(t *testing.T, baseURL, host string, opts Options) *Container {
	t.Helper()
	opts.Host = host
	c, err := New(context.Background(), testConfig(baseURL), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// persistedSession stores a snapshot for the application the way a previous run would have
func persistedSession(t *testing.T, srv *devserver.Server, app tenant.ApplicationName, email, role string) *persistence.MemoryStore {
	t.Helper()
	user, err := srv.Store().Authenticate(email, password, role)
	require.NoError(t, err)
	token, err := srv.Tokens().Issue(user)
	require.NoError(t, err)

	store := persistence.NewMemoryStore()
	key := testConfig("http://unused").Session.KeyFor(string(app))
	require.NoError(t, store.Save(context.Background(), key, &model.Snapshot{Token: token, User: &user}))
	return store
}

func currentPath(c *Container) string {
	if m := c.Router.Current(); m != nil {
		return m.Path
	}
	return ""
}

func TestNew_SelectsApplicationByHost(t *testing.T) {
	tests := []struct {
		host     string
		expected tenant.ApplicationName
		realtime bool
	}{
		{"portal.test", tenant.ApplicationMain, false},
		{"localhost", tenant.ApplicationMain, false},
		{"admin.portal.test", tenant.ApplicationAdmin, true},
		{"www.superadmin.portal.test", tenant.ApplicationSuperAdmin, true},
		{"employee.portal.test:8080", tenant.ApplicationEmployee, true},
		{"shop.portal.test", tenant.ApplicationMain, false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			c := newContainer(t, "http://127.0.0.1:1", tt.host, Options{})
			assert.Equal(t, tt.expected, c.Application.Name)
			assert.Equal(t, tt.realtime, c.Channel != nil)
			assert.Equal(t, tt.realtime, c.Dashboard != nil)
		})
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig("ftp://backend")
	_, err := New(context.Background(), cfg, Options{})
	assert.Error(t, err)

	cfg = testConfig("http://backend")
	cfg.Session.Store = "sqlite"
	_, err = New(context.Background(), cfg, Options{})
	assert.Error(t, err)

	_, err = New(context.Background(), nil, Options{})
	assert.Error(t, err)
}

func TestGetService(t *testing.T) {
	c := newContainer(t, "http://127.0.0.1:1", "admin.portal.test", Options{})

	session, err := GetService[*sessionusecase.Session](c)
	require.NoError(t, err)
	assert.Same(t, c.Session, session)

	channel, err := GetService[*realtime.Channel](c)
	require.NoError(t, err)
	assert.Same(t, c.Channel, channel)

	storefront := newContainer(t, "http://127.0.0.1:1", "portal.test", Options{})
	_, err = GetService[*realtime.Channel](storefront)
	assert.Error(t, err, "the main application has no channel")
}

func TestBoot_UnauthenticatedLandsOnLogin(t *testing.T) {
	_, base := startBackend(t)
	c := newContainer(t, base, "admin.portal.test", Options{})

	require.NoError(t, c.Boot(context.Background(), "/dashboard"))

	assert.Equal(t, "/login", currentPath(c))
	assert.Equal(t, realtime.StateDisconnected, c.Channel.State())
	assert.NoError(t, c.HealthCheck(context.Background()))
}

func TestLogin_OpensChannelAndNavigatesHome(t *testing.T) {
	srv, base := startBackend(t)
	c := newContainer(t, base, "admin.portal.test", Options{})
	ctx := context.Background()
	require.NoError(t, c.Boot(ctx, "/login"))

	require.NoError(t, c.Login(ctx, "admin@acme.test", password))

	assert.Equal(t, "/dashboard", currentPath(c))
	require.NotNil(t, c.Session.Company())
	assert.Equal(t, "Acme", c.Session.Company().Name)
	require.Eventually(t, c.Channel.Connected, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return srv.Hub().Count() == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestLogin_WrongApplicationIsRejected(t *testing.T) {
	_, base := startBackend(t)
	c := newContainer(t, base, "superadmin.portal.test", Options{})
	ctx := context.Background()
	require.NoError(t, c.Boot(ctx, "/auth"))

	err := c.Login(ctx, "admin@acme.test", password)

	assert.True(t, apperrors.IsUnauthenticated(err), "got %v", err)
	assert.False(t, c.Session.Authenticated())
	assert.Equal(t, "/auth", currentPath(c))
	assert.Equal(t, realtime.StateDisconnected, c.Channel.State())
}

func TestUnauthorizedResponseTearsDownConnectedChannel(t *testing.T) {
	srv, base := startBackend(t)
	c := newContainer(t, base, "admin.portal.test", Options{})
	ctx := context.Background()
	require.NoError(t, c.Boot(ctx, "/login"))
	require.NoError(t, c.Login(ctx, "admin@acme.test", password))
	require.Eventually(t, c.Channel.Connected, 3*time.Second, 10*time.Millisecond)

	// the open socket survives revocation, only HTTP calls see the 401
	require.NoError(t, srv.Tokens().Revoke(c.Session.Token()))
	err := c.Session.FetchCompanyProfile(ctx)

	assert.True(t, apperrors.IsUnauthenticated(err), "got %v", err)
	assert.Empty(t, c.Session.Token())
	assert.Nil(t, c.Session.Company())
	assert.Equal(t, realtime.StateClosed, c.Channel.State())
	assert.Equal(t, "/login", currentPath(c))
	assert.Eventually(t, func() bool { return srv.Hub().Count() == 0 }, 3*time.Second, 10*time.Millisecond)
	assert.Never(t, c.Channel.Active, 300*time.Millisecond, 20*time.Millisecond, "no reconnect after the token is gone")
}

func TestBoot_RestoresSessionAndReceivesBroadcasts(t *testing.T) {
	srv, base := startBackend(t)
	store := persistedSession(t, srv, tenant.ApplicationEmployee, "employee@acme.test", tenant.RoleEmployee)
	c := newContainer(t, base, "employee.portal.test", Options{Store: store})

	received := make(chan rtmodel.Message, 1)
	c.Channel.OnMessage(rtmodel.TypeBroadcastMessage, func(msg rtmodel.Message) { received <- msg })

	ctx := context.Background()
	require.NoError(t, c.Boot(ctx, "/home"))

	assert.Equal(t, "/home", currentPath(c))
	require.NotNil(t, c.Session.Company())
	assert.Equal(t, "Acme", c.Session.Company().Name)
	require.Eventually(t, func() bool { return srv.Hub().Count() == 1 }, 3*time.Second, 10*time.Millisecond)

	company := c.Session.Company().ID
	n, err := srv.Hub().PublishToCompany(company, rtmodel.TypeBroadcastMessage, map[string]interface{}{
		"id":      9,
		"message": "Office closed Friday",
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	select {
	case msg := <-received:
		notice, ok := msg.(*rtmodel.BroadcastNotice)
		require.True(t, ok, "got %T", msg)
		assert.Equal(t, int64(9), notice.ID)
		assert.Equal(t, "Office closed Friday", notice.Message)
	case <-time.After(3 * time.Second):
		t.Fatal("broadcast not delivered")
	}

	broadcasts, err := c.API.Broadcasts(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, broadcasts)
}

func TestBoot_RevokedEntitlementReloads(t *testing.T) {
	srv, base := startBackend(t)
	store := persistedSession(t, srv, tenant.ApplicationAdmin, "admin@globex.test", tenant.RoleAdmin)

	var mu sync.Mutex
	var redirects []string
	redirector := gateway.RedirectFunc(func(path string) {
		mu.Lock()
		redirects = append(redirects, path)
		mu.Unlock()
	})
	c := newContainer(t, base, "admin.portal.test", Options{Store: store, Redirector: redirector})

	require.NoError(t, c.Boot(context.Background(), "/dashboard"))

	assert.False(t, c.Session.Authenticated())
	assert.Equal(t, int64(1), c.Reloads())
	mu.Lock()
	assert.Equal(t, []string{"/login"}, redirects)
	mu.Unlock()
	assert.Equal(t, "/login", currentPath(c))
	assert.False(t, c.Channel.Active())
}

func TestSuperAdminKeepsLatestDashboard(t *testing.T) {
	_, base := startBackend(t)
	c := newContainer(t, base, "superadmin.portal.test", Options{})
	ctx := context.Background()
	require.NoError(t, c.Boot(ctx, "/"))
	assert.Equal(t, "/auth", currentPath(c))

	require.NoError(t, c.Login(ctx, "superadmin@portal.test", password))

	assert.Equal(t, "/dashboard", currentPath(c))
	require.Eventually(t, func() bool {
		_, _, ok := c.Dashboard.Latest()
		return ok
	}, 3*time.Second, 10*time.Millisecond)
	update, _, _ := c.Dashboard.Latest()
	assert.Positive(t, update.TotalCompanies)

	require.NoError(t, c.Logout(ctx))
	_, _, ok := c.Dashboard.Latest()
	assert.False(t, ok, "clearing the session drops the cached dashboard")
}

func TestLogout_RevokesTokenAndClosesChannel(t *testing.T) {
	srv, base := startBackend(t)
	c := newContainer(t, base, "employee.portal.test", Options{})
	ctx := context.Background()
	require.NoError(t, c.Boot(ctx, "/login"))
	require.NoError(t, c.Login(ctx, "employee@acme.test", password))
	require.Eventually(t, c.Channel.Connected, 3*time.Second, 10*time.Millisecond)
	token := c.Session.Token()

	require.NoError(t, c.Logout(ctx))

	assert.Empty(t, c.Session.Token())
	assert.Equal(t, realtime.StateClosed, c.Channel.State())
	assert.Equal(t, "/login", currentPath(c))
	_, err := srv.Tokens().Validate(token)
	assert.ErrorIs(t, err, devserver.ErrTokenRevoked)
}

func TestExternalLogoutTearsDown(t *testing.T) {
	_, base := startBackend(t)
	store := persistence.NewMemoryStore()
	c := newContainer(t, base, "employee.portal.test", Options{Store: store})
	ctx := context.Background()
	require.NoError(t, c.Boot(ctx, "/login"))
	require.NoError(t, c.Login(ctx, "employee@acme.test", password))
	require.Eventually(t, c.Channel.Connected, 3*time.Second, 10*time.Millisecond)

	// another process removed the snapshot
	require.NoError(t, store.Delete(ctx, c.storageKey))
	c.syncFromStore(ctx)

	assert.False(t, c.Session.Authenticated())
	assert.Equal(t, realtime.StateClosed, c.Channel.State())
	assert.Equal(t, "/login", currentPath(c))
}
