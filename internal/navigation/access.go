package navigation

import (
	"fmt"

	"tenant-portal/internal/tenant"

	"github.com/google/cel-go/cel"
)

// DefaultAccessRule admits an authenticated session whose role matches the
// role the route requires
const DefaultAccessRule = `authenticated && (required_role == "" || role == required_role)`

// AccessRequest is the input of an access rule
type AccessRequest struct {
	Authenticated bool
	Role          string
	RequiredRole  string
	Path          string
	Application   string
}

// AccessPolicy evaluates a compiled CEL access rule for protected routes
type AccessPolicy struct {
	expr    string
	program cel.Program
}

func newAccessEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("authenticated", cel.BoolType),
		cel.Variable("role", cel.StringType),
		cel.Variable("required_role", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("application", cel.StringType),
	)
}

// NewAccessPolicy compiles expr, DefaultAccessRule when empty. The rule must
// evaluate to a bool.
func NewAccessPolicy(expr string) (*AccessPolicy, error) {
	if expr == "" {
		expr = DefaultAccessRule
	}
	env, err := newAccessEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create access rule environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("access rule compilation error: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("access rule must return bool, got %s", ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create access rule program: %w", err)
	}
	return &AccessPolicy{expr: expr, program: program}, nil
}

// Expression returns the source of the rule
func (p *AccessPolicy) Expression() string {
	return p.expr
}

// Allows evaluates the rule. Roles are normalized first so spellings like
// "superadmin" and "super_admin" compare equal.
func (p *AccessPolicy) Allows(req AccessRequest) (bool, error) {
	required := ""
	if req.RequiredRole != "" {
		required = tenant.NormalizeRole(req.RequiredRole)
	}
	out, _, err := p.program.Eval(map[string]interface{}{
		"authenticated": req.Authenticated,
		"role":          tenant.NormalizeRole(req.Role),
		"required_role": required,
		"path":          req.Path,
		"application":   req.Application,
	})
	if err != nil {
		return false, fmt.Errorf("access rule evaluation error: %w", err)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("access rule did not return a bool")
	}
	return allowed, nil
}
