package navigation

import (
	"fmt"

	"tenant-portal/internal/shared/logger"
	"tenant-portal/internal/tenant"
)

var mainRoutes = []Route{
	{Name: "Landing", Path: "/", Public: true},
	{Name: "Register", Path: "/register/:packageId", Public: true},
	{Name: "Checkout", Path: "/checkout/:companyId", Public: true},
	{Name: "PaymentFinish", Path: "/payment/finish", Public: true},
	{Name: "PaymentError", Path: "/payment/error", Public: true},
	{Name: "PaymentPending", Path: "/payment/pending", Public: true},
	{Name: "ForgotPassword", Path: "/forgot-password", Public: true},
	{Name: "ResetPassword", Path: "/reset-password", Public: true},
	{Name: "InitialPasswordSetup", Path: "/initial-password-setup", Public: true},
	{Name: "InitialPasswordSuccess", Path: "/initial-password-success", Public: true},
	{Name: "EmployeeResetPassword", Path: "/employee-reset-password", Public: true},
	{Name: "NotFound", Path: "/*", Public: true},
}

var adminRoutes = []Route{
	{Name: "AdminLandingPage", Path: "/"},
	{Name: "AuthPage", Path: "/login"},
	{Name: "ForgotPassword", Path: "/forgot-password"},
	{Name: "ResetPassword", Path: "/reset-password"},
	{Name: "EmailConfirmation", Path: "/email-confirmation"},
	{Name: "AdminDashboard", Path: "/dashboard"},
	{Name: "AdminEmployees", Path: "/employees"},
	{Name: "AdminBroadcasts", Path: "/broadcasts"},
	{Name: "AdminSubscription", Path: "/subscription"},
	{Name: "NotFound", Path: "/*", Public: true},
}

var superAdminRoutes = []Route{
	{Name: "SuperAdminRoot", Path: "/", Redirect: "/dashboard"},
	{Name: "SuperAdminAuth", Path: "/auth"},
	{Name: "SuperAdminDashboardOverview", Path: "/dashboard", Role: tenant.RoleSuperAdmin},
	{Name: "SuperAdminCompanies", Path: "/companies", Role: tenant.RoleSuperAdmin},
	{Name: "SuperAdminSubscriptions", Path: "/subscriptions", Role: tenant.RoleSuperAdmin},
	{Name: "SuperAdminRevenueChart", Path: "/revenue-chart", Role: tenant.RoleSuperAdmin},
	{Name: "SuperAdminSubscriptionPackages", Path: "/subscription-packages", Role: tenant.RoleSuperAdmin},
	{Name: "NotFound", Path: "/*", Public: true},
}

var employeeRoutes = []Route{
	{Name: "EmployeeLanding", Path: "/"},
	{Name: "EmployeeLogin", Path: "/login"},
	{Name: "EmployeeResetPassword", Path: "/employee-reset-password", Public: true},
	{Name: "ForgotPassword", Path: "/forgot-password"},
	{Name: "ResetPassword", Path: "/reset-password"},
	{Name: "EmployeeHome", Path: "/home"},
	{Name: "EmployeeBroadcasts", Path: "/broadcasts"},
	{Name: "EmployeeProfile", Path: "/profile"},
	{Name: "NotFound", Path: "/*", Public: true},
}

// RoutesFor returns the route table of app
func RoutesFor(app tenant.Application) (*Table, error) {
	switch app.Name {
	case tenant.ApplicationMain:
		return NewTable(mainRoutes...)
	case tenant.ApplicationAdmin:
		return NewTable(adminRoutes...)
	case tenant.ApplicationSuperAdmin:
		return NewTable(superAdminRoutes...)
	case tenant.ApplicationEmployee:
		return NewTable(employeeRoutes...)
	}
	return nil, fmt.Errorf("no routes for application %q", app.Name)
}

// Setup builds the router of app with its guards installed: token loss first,
// then authentication. channel may be nil for applications without realtime.
func Setup(app tenant.Application, session SessionReader, channel Closer, policy *AccessPolicy, log logger.Logger) (*Router, error) {
	table, err := RoutesFor(app)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		if policy, err = NewAccessPolicy(""); err != nil {
			return nil, err
		}
	}
	router := NewRouter(table, log)
	router.BeforeEach(NewTokenLossGuard(session, channel, log))
	router.BeforeEach(NewAuthGuard(session, app, policy, log))
	return router, nil
}
