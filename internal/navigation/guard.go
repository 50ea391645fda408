package navigation

import (
	"context"

	"tenant-portal/internal/session/domain/model"
	"tenant-portal/internal/shared/logger"
	"tenant-portal/internal/tenant"
)

// DefaultPublicPaths are reachable without a session in every application
var DefaultPublicPaths = []string{"/", "/forgot-password", "/reset-password", "/email-confirmation"}

// Decision is a guard's verdict. An empty Redirect lets the navigation proceed.
type Decision struct {
	Redirect string
}

// Proceed lets the navigation continue
func Proceed() Decision { return Decision{} }

// RedirectTo replaces the navigation target with path
func RedirectTo(path string) Decision { return Decision{Redirect: path} }

// Guard runs before every transition. from is nil on the initial navigation.
type Guard interface {
	Before(ctx context.Context, to, from *Match) (Decision, error)
}

// GuardFunc adapts a function to Guard
type GuardFunc func(ctx context.Context, to, from *Match) (Decision, error)

// Before calls f
func (f GuardFunc) Before(ctx context.Context, to, from *Match) (Decision, error) {
	return f(ctx, to, from)
}

// SessionReader is the read side of the session the guards consult
type SessionReader interface {
	Token() string
	User() *model.User
}

// AuthGuard keeps protected routes behind login and the application's role,
// and moves authenticated sessions off the landing and login pages.
type AuthGuard struct {
	session SessionReader
	app     tenant.Application
	policy  *AccessPolicy
	public  map[string]bool
	logger  logger.Logger
}

// NewAuthGuard creates the guard for app. extraPublic extends DefaultPublicPaths.
func NewAuthGuard(session SessionReader, app tenant.Application, policy *AccessPolicy, log logger.Logger, extraPublic ...string) *AuthGuard {
	if log == nil {
		log = logger.NewNop()
	}
	public := make(map[string]bool)
	for _, p := range DefaultPublicPaths {
		public[p] = true
	}
	for _, p := range extraPublic {
		public[p] = true
	}
	if app.LoginPath != "" {
		public[app.LoginPath] = true
	}
	return &AuthGuard{
		session: session,
		app:     app,
		policy:  policy,
		public:  public,
		logger:  log.WithComponent("navigation"),
	}
}

// IsPublic reports whether m is reachable without a session
func (g *AuthGuard) IsPublic(m *Match) bool {
	return !g.app.RequiresAuth() || m.Route.Public || g.public[m.Path]
}

// Before implements Guard
func (g *AuthGuard) Before(ctx context.Context, to, from *Match) (Decision, error) {
	if !g.app.RequiresAuth() {
		return Proceed(), nil
	}

	allowed, err := g.allowed(to)
	if err != nil {
		return Decision{}, err
	}

	if g.IsPublic(to) {
		entry := to.Path == "/" || to.Path == g.app.LoginPath
		if allowed && entry && to.Path != g.app.HomePath {
			g.logger.WithContext(ctx).Debugf("Authenticated session on %s, forwarding to %s", to.Path, g.app.HomePath)
			return RedirectTo(g.app.HomePath), nil
		}
		return Proceed(), nil
	}

	if allowed {
		return Proceed(), nil
	}
	g.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"path":          to.Path,
		"authenticated": g.session.Token() != "",
	}).Info("Protected route denied, redirecting to login")
	return RedirectTo(g.app.LoginPath), nil
}

func (g *AuthGuard) allowed(to *Match) (bool, error) {
	token := g.session.Token()
	role := ""
	if u := g.session.User(); u != nil {
		role = u.Role
	}
	required := to.Route.Role
	if required == "" {
		required = g.app.RequiredRole
	}
	return g.policy.Allows(AccessRequest{
		Authenticated: token != "",
		Role:          role,
		RequiredRole:  required,
		Path:          to.Path,
		Application:   string(g.app.Name),
	})
}

// TokenSource reports the current session token
type TokenSource interface {
	Token() string
}

// Closer is the realtime channel as seen by the token-loss guard
type Closer interface {
	Active() bool
	Close()
}

// NewTokenLossGuard closes the realtime channel when a navigation starts after
// the token disappeared. It never blocks the navigation.
func NewTokenLossGuard(tokens TokenSource, channel Closer, log logger.Logger) Guard {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.WithComponent("navigation")
	return GuardFunc(func(ctx context.Context, to, from *Match) (Decision, error) {
		if channel != nil && tokens.Token() == "" && channel.Active() {
			log.WithContext(ctx).Info("Session token missing, closing realtime channel")
			channel.Close()
		}
		return Proceed(), nil
	})
}
