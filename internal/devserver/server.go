// Package devserver emulates the product backend the portal talks to: the
// login endpoints, company details, broadcasts and the realtime hub. It serves
// local development and end-to-end tests.
package devserver

import (
	"context"
	"net"
	"strings"
	"time"

	rtmodel "tenant-portal/internal/realtime/domain/model"
	"tenant-portal/internal/shared/logger"
	"tenant-portal/internal/tenant"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

const claimsKey = "claims"

// realtimeRoles maps every realtime path onto the role allowed to subscribe
var realtimeRoles = map[string]string{
	"/ws/dashboard":              tenant.RoleAdmin,
	"/ws/superadmin-dashboard":   tenant.RoleSuperAdmin,
	"/ws/employee-notifications": tenant.RoleEmployee,
}

// loginRoles maps every login endpoint onto the role it authenticates
var loginRoles = map[tenant.LoginKind]string{
	tenant.LoginSuperAdmin:   tenant.RoleSuperAdmin,
	tenant.LoginAdminCompany: tenant.RoleAdmin,
	tenant.LoginEmployee:     tenant.RoleEmployee,
}

// Server is the development backend
type Server struct {
	app    *fiber.App
	cfg    *Config
	store  *Store
	tokens *TokenIssuer
	hub    *Hub
	logger logger.Logger
}

// New creates the server and registers its routes
func New(cfg *Config, store *Store, log logger.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tokens, err := NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	log = log.WithComponent("devserver")

	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "tenant-portal devserver",
			DisableStartupMessage: true,
			ErrorHandler:          errorHandler,
		}),
		cfg:    cfg,
		store:  store,
		tokens: tokens,
		hub:    NewHub(log),
		logger: log,
	}
	s.routes()
	return s, nil
}

// App exposes the fiber application, mainly for app.Test
func (s *Server) App() *fiber.App { return s.app }

// Hub exposes the realtime hub
func (s *Server) Hub() *Hub { return s.hub }

// Tokens exposes the token issuer
func (s *Server) Tokens() *TokenIssuer { return s.tokens }

// Store exposes the backing store
func (s *Server) Store() *Store { return s.store }

func (s *Server) routes() {
	s.app.Use(recover.New())
	s.app.Use(requestid.New(requestid.Config{Header: fiber.HeaderXRequestID}))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: s.cfg.AllowOrigins,
		AllowMethods: "GET,POST,PUT,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	}))
	s.app.Use(s.requestLogger())

	api := s.app.Group("/api")
	api.Post("/login/:kind", s.login)
	api.Post("/logout", s.protect(), s.logout)
	api.Get("/company-details", s.protect(), s.companyDetails)
	api.Get("/broadcasts", s.protect(), s.listBroadcasts)
	api.Post("/broadcasts", s.protect(), s.requireRole(tenant.RoleAdmin), s.createBroadcast)
	api.Post("/broadcasts/:id/read", s.protect(), s.markBroadcastRead)
	api.Put("/companies/:id/subscription", s.protect(), s.requireRole(tenant.RoleSuperAdmin), s.updateSubscription)

	s.app.Use("/ws", s.upgrade())
	for path := range realtimeRoles {
		s.app.Get(path, websocket.New(s.serveRealtime(path)))
	}
}

// Listen serves on addr until Shutdown
func (s *Server) Listen(addr string) error {
	s.logger.Infof("Devserver listening on %s", addr)
	return s.app.Listen(addr)
}

// Listener serves on ln until Shutdown
func (s *Server) Listener(ln net.Listener) error {
	s.logger.Infof("Devserver listening on %s", ln.Addr())
	return s.app.Listener(ln)
}

// Shutdown stops the server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// RunDashboardPush pushes the dashboard summary to superadmins every
// DashboardInterval until ctx is done
func (s *Server) RunDashboardPush(ctx context.Context) {
	if s.cfg.DashboardInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.DashboardInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pushDashboard()
		}
	}
}

func (s *Server) pushDashboard() {
	if _, err := s.hub.PublishToSuperAdmins(rtmodel.TypeSuperAdminDashboardUpdate, s.store.Dashboard()); err != nil {
		s.logger.Errorf("Failed to push dashboard: %v", err)
	}
}

func (s *Server) requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		s.logger.WithFields(map[string]interface{}{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
			"latency_ms": time.Since(start).Milliseconds(),
			"request_id": c.GetRespHeader(fiber.HeaderXRequestID),
		}).Debug("Request served")
		return err
	}
}

// protect validates the bearer token and stores its claims
func (s *Server) protect() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if header == "" || token == header {
			return respond(c, fiber.StatusUnauthorized, "Authentication required", nil)
		}
		claims, err := s.tokens.Validate(token)
		if err != nil {
			return respond(c, fiber.StatusUnauthorized, "Invalid or expired token", nil)
		}
		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

func (s *Server) requireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals(claimsKey).(*Claims)
		if !ok || tenant.NormalizeRole(claims.Role) != role {
			return respond(c, fiber.StatusForbidden, "Insufficient permissions", nil)
		}
		return c.Next()
	}
}

// upgrade authenticates realtime handshakes from the token query parameter
func (s *Server) upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		claims, err := s.tokens.Validate(c.Query("token"))
		if err != nil {
			return respond(c, fiber.StatusUnauthorized, "Invalid or expired token", nil)
		}
		if role, ok := realtimeRoles[c.Path()]; ok && tenant.NormalizeRole(claims.Role) != role {
			return respond(c, fiber.StatusForbidden, "Insufficient permissions", nil)
		}
		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

func (s *Server) serveRealtime(path string) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		claims, ok := conn.Locals(claimsKey).(*Claims)
		if !ok {
			return
		}
		var initial [][]byte
		if path == "/ws/superadmin-dashboard" {
			if frame, err := rtmodel.Encode(rtmodel.TypeSuperAdminDashboardUpdate, s.store.Dashboard()); err == nil {
				initial = append(initial, frame)
			}
		}
		s.hub.serve(conn, claims, path, initial...)
	}
}

func respond(c *fiber.Ctx, status int, message string, data interface{}) error {
	st := "success"
	if status >= fiber.StatusBadRequest {
		st = "error"
	}
	return c.Status(status).JSON(fiber.Map{"status": st, "message": message, "data": data})
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return respond(c, code, err.Error(), nil)
}
