package devserver

import (
	"errors"
	"strings"
	"time"

	rtmodel "tenant-portal/internal/realtime/domain/model"
	"tenant-portal/internal/session/domain/model"
	"tenant-portal/internal/tenant"

	"github.com/gofiber/fiber/v2"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type broadcastRequest struct {
	Message    string     `json:"message"`
	ExpireDate *time.Time `json:"expire_date"`
}

type subscriptionRequest struct {
	SubscriptionStatus string     `json:"subscription_status"`
	TrialEndDate       *time.Time `json:"trial_end_date"`
}

func claimsOf(c *fiber.Ctx) *Claims {
	claims, _ := c.Locals(claimsKey).(*Claims)
	return claims
}

func (s *Server) login(c *fiber.Ctx) error {
	role, ok := loginRoles[tenant.LoginKind(c.Params("kind"))]
	if !ok {
		return respond(c, fiber.StatusNotFound, "Unknown login endpoint", nil)
	}
	var req loginRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Password == "" {
		return respond(c, fiber.StatusBadRequest, "Email and password are required", nil)
	}

	user, err := s.store.Authenticate(req.Email, req.Password, role)
	if err != nil {
		s.logger.Infof("Rejected login for %s", req.Email)
		return respond(c, fiber.StatusUnauthorized, "Invalid email or password", nil)
	}
	token, err := s.tokens.Issue(user)
	if err != nil {
		s.logger.Errorf("Failed to sign token: %v", err)
		return respond(c, fiber.StatusInternalServerError, "Could not create session", nil)
	}
	return respond(c, fiber.StatusOK, "Login successful", model.LoginResult{Token: token, User: user})
}

// logout revokes the presented token. Open realtime connections are left alone.
func (s *Server) logout(c *fiber.Ctx) error {
	token := strings.TrimSpace(strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer "))
	if err := s.tokens.Revoke(token); err != nil {
		return respond(c, fiber.StatusUnauthorized, "Invalid or expired token", nil)
	}
	return respond(c, fiber.StatusOK, "Logged out", nil)
}

// entitledCompany loads the caller's company and enforces its subscription.
// A non-zero status is the response to send instead.
func (s *Server) entitledCompany(c *fiber.Ctx) (model.CompanyProfile, int, string) {
	claims := claimsOf(c)
	company, err := s.store.Company(claims.CompanyID)
	if err != nil {
		return model.CompanyProfile{}, fiber.StatusNotFound, "Company not found"
	}
	if reason := s.store.Entitlement(company); reason != "" {
		return model.CompanyProfile{}, fiber.StatusForbidden, reason
	}
	return company, 0, ""
}

func (s *Server) companyDetails(c *fiber.Ctx) error {
	company, status, message := s.entitledCompany(c)
	if status != 0 {
		return respond(c, status, message, nil)
	}
	return respond(c, fiber.StatusOK, "Company details retrieved", company)
}

func (s *Server) listBroadcasts(c *fiber.Ctx) error {
	claims := claimsOf(c)
	if _, status, message := s.entitledCompany(c); status != 0 {
		return respond(c, status, message, nil)
	}
	return respond(c, fiber.StatusOK, "Broadcasts retrieved", s.store.Broadcasts(claims.CompanyID, claims.UserID))
}

func (s *Server) createBroadcast(c *fiber.Ctx) error {
	claims := claimsOf(c)
	var req broadcastRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		return respond(c, fiber.StatusBadRequest, "Message is required", nil)
	}
	msg, err := s.store.AddBroadcast(claims.CompanyID, req.Message, req.ExpireDate)
	if err != nil {
		return respond(c, fiber.StatusNotFound, "Company not found", nil)
	}
	n, err := s.hub.PublishToCompany(claims.CompanyID, rtmodel.TypeBroadcastMessage, msg)
	if err != nil {
		s.logger.Errorf("Failed to publish broadcast %d: %v", msg.ID, err)
	}
	s.logger.Infof("Broadcast %d delivered to %d subscribers", msg.ID, n)
	return respond(c, fiber.StatusCreated, "Broadcast created", msg)
}

func (s *Server) markBroadcastRead(c *fiber.Ctx) error {
	claims := claimsOf(c)
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return respond(c, fiber.StatusBadRequest, "Invalid broadcast id", nil)
	}
	if err := s.store.MarkRead(claims.CompanyID, claims.UserID, int64(id)); err != nil {
		return respond(c, fiber.StatusNotFound, "Broadcast not found", nil)
	}
	return respond(c, fiber.StatusOK, "Broadcast marked as read", nil)
}

func (s *Server) updateSubscription(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return respond(c, fiber.StatusBadRequest, "Invalid company id", nil)
	}
	var req subscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return respond(c, fiber.StatusBadRequest, "Invalid request body", nil)
	}
	switch req.SubscriptionStatus {
	case StatusTrial, StatusActive, StatusExpired, StatusInactive:
	default:
		return respond(c, fiber.StatusBadRequest, "Unknown subscription status", nil)
	}

	company, err := s.store.SetSubscription(int64(id), req.SubscriptionStatus, req.TrialEndDate)
	if errors.Is(err, ErrCompanyNotFound) {
		return respond(c, fiber.StatusNotFound, "Company not found", nil)
	}
	if err != nil {
		return respond(c, fiber.StatusInternalServerError, err.Error(), nil)
	}

	notification := map[string]interface{}{
		"type":         "subscription_update",
		"message":      "Subscription of " + company.Name + " changed to " + company.SubscriptionStatus,
		"company_id":   company.ID,
		"company_name": company.Name,
	}
	if _, err := s.hub.PublishToSuperAdmins(rtmodel.TypeSuperAdminNotification, notification); err != nil {
		s.logger.Errorf("Failed to publish notification: %v", err)
	}
	s.pushDashboard()
	return respond(c, fiber.StatusOK, "Subscription updated", company)
}
