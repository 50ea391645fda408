package tenant

import "strings"

// ApplicationName identifies one of the routed applications sharing the codebase
type ApplicationName string

const (
	ApplicationMain       ApplicationName = "main"
	ApplicationAdmin      ApplicationName = "admin"
	ApplicationSuperAdmin ApplicationName = "superadmin"
	ApplicationEmployee   ApplicationName = "employee"
)

// Role values as issued by the backend
const (
	RoleEmployee   = "employee"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// LoginKind selects the backend login endpoint for an application
type LoginKind string

const (
	LoginSuperAdmin   LoginKind = "superadmin"
	LoginAdminCompany LoginKind = "admin-company"
	LoginEmployee     LoginKind = "employee"
)

// Application describes what a selected tenant application needs from the core:
// where unauthenticated users land, where authenticated users go, which role it
// requires and which realtime path it subscribes to.
type Application struct {
	Name         ApplicationName
	LoginPath    string
	HomePath     string
	RequiredRole string
	// RealtimePath is empty when the application does not use the realtime channel
	RealtimePath string
	LoginKind    LoginKind
}

// UsesRealtime reports whether the application opens a realtime channel
func (a Application) UsesRealtime() bool {
	return a.RealtimePath != ""
}

// RequiresAuth reports whether the application has protected routes at all
func (a Application) RequiresAuth() bool {
	return a.RequiredRole != ""
}

var applications = map[ApplicationName]Application{
	ApplicationMain: {
		Name:      ApplicationMain,
		LoginPath: "/",
		HomePath:  "/",
	},
	ApplicationAdmin: {
		Name:         ApplicationAdmin,
		LoginPath:    "/login",
		HomePath:     "/dashboard",
		RequiredRole: RoleAdmin,
		RealtimePath: "/ws/dashboard",
		LoginKind:    LoginAdminCompany,
	},
	ApplicationSuperAdmin: {
		Name:         ApplicationSuperAdmin,
		LoginPath:    "/auth",
		HomePath:     "/dashboard",
		RequiredRole: RoleSuperAdmin,
		RealtimePath: "/ws/superadmin-dashboard",
		LoginKind:    LoginSuperAdmin,
	},
	ApplicationEmployee: {
		Name:         ApplicationEmployee,
		LoginPath:    "/login",
		HomePath:     "/home",
		RequiredRole: RoleEmployee,
		RealtimePath: "/ws/employee-notifications",
		LoginKind:    LoginEmployee,
	},
}

// subdomainApplications is the enumerated subdomain table. Anything missing
// selects the main application.
var subdomainApplications = map[string]ApplicationName{
	"admin":      ApplicationAdmin,
	"superadmin": ApplicationSuperAdmin,
	"employee":   ApplicationEmployee,
}

// Selector picks the application for a host. Selection is meant to happen
// once at boot.
type Selector struct {
	resolver *Resolver
}

// NewSelector creates a selector backed by resolver
func NewSelector(resolver *Resolver) *Selector {
	if resolver == nil {
		resolver = NewResolver()
	}
	return &Selector{resolver: resolver}
}

// Select returns the application and the resolved subdomain (empty if none)
func (s *Selector) Select(host string) (Application, string) {
	sub, ok := s.resolver.SubdomainOf(host)
	if !ok {
		return applications[ApplicationMain], ""
	}
	return ApplicationFor(sub), sub
}

// ApplicationFor maps a subdomain label onto its application
func ApplicationFor(subdomain string) Application {
	if name, ok := subdomainApplications[strings.ToLower(subdomain)]; ok {
		return applications[name]
	}
	return applications[ApplicationMain]
}

// Lookup returns the application registered under name
func Lookup(name ApplicationName) (Application, bool) {
	app, ok := applications[name]
	return app, ok
}

// NormalizeRole folds the spellings used across the backend into one canonical
// form, so "superadmin", "SuperAdmin" and "super_admin" compare equal.
func NormalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	r = strings.NewReplacer("-", "", "_", "", " ", "").Replace(r)
	switch r {
	case "superadmin":
		return RoleSuperAdmin
	case "admin", "admincompany", "companyadmin":
		return RoleAdmin
	case "employee":
		return RoleEmployee
	}
	return r
}
