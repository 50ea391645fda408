package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	rtws "tenant-portal/internal/realtime/adapter/websocket"
	rtmodel "tenant-portal/internal/realtime/domain/model"
	"tenant-portal/internal/session/domain/model"
	apperrors "tenant-portal/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

const seedPassword = "password123"

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func testConfig() *Config {
	return &Config{JWTSecret: "test-secret", TokenTTL: time.Hour, AllowOrigins: "*"}
}

type ServerSuite struct {
	suite.Suite
	server *Server
}

func (s *ServerSuite) SetupTest() {
	store := NewStore(bcrypt.MinCost)
	s.Require().NoError(Seed(store, seedPassword))
	srv, err := New(testConfig(), store, nil)
	s.Require().NoError(err)
	s.server = srv
}

func (s *ServerSuite) do(method, path, token string, body interface{}) (int, envelope, http.Header) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, path, reader)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.server.App().Test(req, -1)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Require().NoError(json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env, resp.Header
}

func (s *ServerSuite) login(kind, email string) model.LoginResult {
	status, env, _ := s.do(http.MethodPost, "/api/login/"+kind, "", loginRequest{Email: email, Password: seedPassword})
	s.Require().Equal(http.StatusOK, status, env.Message)
	var res model.LoginResult
	s.Require().NoError(json.Unmarshal(env.Data, &res))
	return res
}

func (s *ServerSuite) TestLogin() {
	res := s.login("admin-company", "admin@acme.test")

	s.NotEmpty(res.Token)
	s.Equal("admin", res.User.Role)
	s.NotZero(res.User.CompanyID)

	claims, err := s.server.Tokens().Validate(res.Token)
	s.Require().NoError(err)
	s.Equal(res.User.ID, claims.UserID)
	s.Equal(res.User.CompanyID, claims.CompanyID)
}

func (s *ServerSuite) TestLoginRejections() {
	status, env, _ := s.do(http.MethodPost, "/api/login/admin-company", "", loginRequest{Email: "admin@acme.test", Password: "wrong"})
	s.Equal(http.StatusUnauthorized, status)
	s.Equal("error", env.Status)

	status, _, _ = s.do(http.MethodPost, "/api/login/superadmin", "", loginRequest{Email: "admin@acme.test", Password: seedPassword})
	s.Equal(http.StatusUnauthorized, status, "an admin cannot use the superadmin login")

	status, _, _ = s.do(http.MethodPost, "/api/login/nobody", "", loginRequest{Email: "admin@acme.test", Password: seedPassword})
	s.Equal(http.StatusNotFound, status)

	status, _, _ = s.do(http.MethodPost, "/api/login/employee", "", loginRequest{})
	s.Equal(http.StatusBadRequest, status)
}

func (s *ServerSuite) TestRequestIDIsEchoed() {
	_, _, header := s.do(http.MethodGet, "/api/company-details", "", nil)
	s.NotEmpty(header.Get("X-Request-ID"))
}

func (s *ServerSuite) TestCompanyDetails() {
	res := s.login("admin-company", "admin@acme.test")

	status, env, _ := s.do(http.MethodGet, "/api/company-details", res.Token, nil)

	s.Require().Equal(http.StatusOK, status)
	var company model.CompanyProfile
	s.Require().NoError(json.Unmarshal(env.Data, &company))
	s.Equal("Acme", company.Name)
	s.Equal(StatusTrial, company.SubscriptionStatus)
}

func (s *ServerSuite) TestCompanyDetailsRequiresToken() {
	status, _, _ := s.do(http.MethodGet, "/api/company-details", "", nil)
	s.Equal(http.StatusUnauthorized, status)

	status, _, _ = s.do(http.MethodGet, "/api/company-details", "garbage", nil)
	s.Equal(http.StatusUnauthorized, status)
}

func (s *ServerSuite) TestLogoutRevokesToken() {
	res := s.login("employee", "employee@acme.test")

	status, _, _ := s.do(http.MethodPost, "/api/logout", res.Token, nil)
	s.Require().Equal(http.StatusOK, status)

	status, env, _ := s.do(http.MethodGet, "/api/company-details", res.Token, nil)
	s.Equal(http.StatusUnauthorized, status)
	s.Equal("Invalid or expired token", env.Message)
}

func (s *ServerSuite) TestExpiredTrialIsForbidden() {
	res := s.login("admin-company", "admin@globex.test")

	status, env, _ := s.do(http.MethodGet, "/api/company-details", res.Token, nil)

	s.Equal(http.StatusForbidden, status)
	s.Equal("Your free trial has expired. Please subscribe to continue.", env.Message)
}

func (s *ServerSuite) TestInactiveSubscriptionIsForbidden() {
	admin := s.login("admin-company", "admin@acme.test")
	super := s.login("superadmin", "superadmin@portal.test")

	status, _, _ := s.do(http.MethodPut, fmt.Sprintf("/api/companies/%d/subscription", admin.User.CompanyID), super.Token,
		subscriptionRequest{SubscriptionStatus: StatusInactive})
	s.Require().Equal(http.StatusOK, status)

	status, env, _ := s.do(http.MethodGet, "/api/company-details", admin.Token, nil)
	s.Equal(http.StatusForbidden, status)
	s.Equal("Access denied. Please check your subscription status.", env.Message)
}

func (s *ServerSuite) TestSubscriptionUpdateRequiresSuperAdmin() {
	admin := s.login("admin-company", "admin@acme.test")

	status, _, _ := s.do(http.MethodPut, fmt.Sprintf("/api/companies/%d/subscription", admin.User.CompanyID), admin.Token,
		subscriptionRequest{SubscriptionStatus: StatusActive})

	s.Equal(http.StatusForbidden, status)
}

func (s *ServerSuite) TestBroadcastLifecycle() {
	admin := s.login("admin-company", "admin@acme.test")
	employee := s.login("employee", "employee@acme.test")

	status, env, _ := s.do(http.MethodPost, "/api/broadcasts", admin.Token, broadcastRequest{Message: "Office closed Friday"})
	s.Require().Equal(http.StatusCreated, status)
	var created model.BroadcastMessage
	s.Require().NoError(json.Unmarshal(env.Data, &created))

	status, _, _ = s.do(http.MethodPost, "/api/broadcasts", employee.Token, broadcastRequest{Message: "nope"})
	s.Equal(http.StatusForbidden, status, "employees cannot broadcast")

	status, _, _ = s.do(http.MethodPost, fmt.Sprintf("/api/broadcasts/%d/read", created.ID), employee.Token, nil)
	s.Require().Equal(http.StatusOK, status)

	status, env, _ = s.do(http.MethodGet, "/api/broadcasts", employee.Token, nil)
	s.Require().Equal(http.StatusOK, status)
	var list []model.BroadcastMessage
	s.Require().NoError(json.Unmarshal(env.Data, &list))
	s.Require().Len(list, 2)
	s.Equal(created.ID, list[0].ID, "newest first")
	s.True(list[0].IsRead)
	s.False(list[1].IsRead)

	status, _, _ = s.do(http.MethodPost, "/api/broadcasts/999/read", employee.Token, nil)
	s.Equal(http.StatusNotFound, status)
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	store := NewStore(bcrypt.MinCost)
	require.NoError(t, Seed(store, seedPassword))
	srv, err := New(testConfig(), store, nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Listener(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })
	return srv, "ws://" + ln.Addr().String()
}

func tokenFor(t *testing.T, srv *Server, user model.User) string {
	t.Helper()
	token, err := srv.Tokens().Issue(user)
	require.NoError(t, err)
	return token
}

func TestRealtime_BroadcastReachesCompanySubscribers(t *testing.T) {
	srv, base := startServer(t)
	dialer := rtws.NewDialer(2 * time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	acme, err := srv.Store().Company(1)
	require.NoError(t, err)
	token := tokenFor(t, srv, model.User{ID: 100, Role: "employee", CompanyID: acme.ID})
	conn, err := dialer.Dial(ctx, base+"/ws/employee-notifications?token="+token)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.Hub().Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	msg, err := srv.Store().AddBroadcast(acme.ID, "hello", nil)
	require.NoError(t, err)
	n, err := srv.Hub().PublishToCompany(acme.ID, rtmodel.TypeBroadcastMessage, msg)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := conn.ReadMessage()
	require.NoError(t, err)
	decoded, err := rtmodel.Decode(data)
	require.NoError(t, err)
	notice, ok := decoded.(*rtmodel.BroadcastNotice)
	require.True(t, ok)
	assert.Equal(t, "hello", notice.Message)
	assert.Equal(t, msg.ID, notice.ID)
}

func TestRealtime_SuperAdminGetsDashboardOnConnect(t *testing.T) {
	srv, base := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token := tokenFor(t, srv, model.User{ID: 1, Role: "super_admin"})
	conn, err := rtws.NewDialer(2*time.Second).Dial(ctx, base+"/ws/superadmin-dashboard?token="+token)
	require.NoError(t, err)
	defer conn.Close()

	data, err := conn.ReadMessage()
	require.NoError(t, err)
	decoded, err := rtmodel.Decode(data)
	require.NoError(t, err)
	update, ok := decoded.(*rtmodel.SuperAdminDashboardUpdate)
	require.True(t, ok)
	assert.Equal(t, int64(2), update.TotalCompanies)
	assert.Equal(t, int64(1), update.TrialSubscriptions)
	assert.Equal(t, int64(1), update.ExpiredSubscriptions)
	assert.NotEmpty(t, update.RecentActivities)
}

func TestRealtime_HandshakeRejections(t *testing.T) {
	srv, base := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dialer := rtws.NewDialer(2 * time.Second)

	_, err := dialer.Dial(ctx, base+"/ws/dashboard?token=bogus")
	assert.True(t, apperrors.IsUnauthenticated(err), "got %v", err)

	employee := tokenFor(t, srv, model.User{ID: 3, Role: "employee", CompanyID: 1})
	_, err = dialer.Dial(ctx, base+"/ws/superadmin-dashboard?token="+employee)
	assert.True(t, apperrors.IsUnauthenticated(err), "wrong role is rejected at the handshake, got %v", err)
}

func TestRealtime_DisconnectSendsCloseCode(t *testing.T) {
	srv, base := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token := tokenFor(t, srv, model.User{ID: 7, Role: "admin", CompanyID: 1})
	conn, err := rtws.NewDialer(2*time.Second).Dial(ctx, base+"/ws/dashboard?token="+token)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return srv.Hub().Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, srv.Hub().Disconnect(7, 4001))

	_, err = conn.ReadMessage()
	var ce *rtmodel.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 4001, ce.Code)
}
