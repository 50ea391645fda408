// Package navigation is the client-side router of a tenant application: a
// route table, a guard chain evaluated before every transition and the
// current location.
package navigation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"tenant-portal/internal/shared/errors"
)

// CatchAll as the last pattern segment matches any remaining path
const CatchAll = "*"

var paramNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Route is one entry of an application's route table
type Route struct {
	Name string
	// Path is a pattern of literal segments, ":name" parameters and an optional trailing "*"
	Path string
	// Redirect sends the navigation elsewhere before guards run
	Redirect string
	// Public routes are reachable without a session
	Public bool
	// Role overrides the application's required role for this route
	Role string

	segments []segment
}

type segment struct {
	literal  string
	param    string
	catchAll bool
}

// Match is a path resolved against a route
type Match struct {
	Route  *Route
	Path   string
	Query  url.Values
	Params map[string]string
}

// FullPath returns the path with its query string
func (m *Match) FullPath() string {
	if m == nil {
		return ""
	}
	if len(m.Query) == 0 {
		return m.Path
	}
	return m.Path + "?" + m.Query.Encode()
}

// Table is an ordered route table. The first matching route wins.
type Table struct {
	routes []*Route
}

// NewTable compiles routes into a table
func NewTable(routes ...Route) (*Table, error) {
	t := &Table{routes: make([]*Route, 0, len(routes))}
	for i := range routes {
		r := routes[i]
		segs, err := compilePattern(r.Path)
		if err != nil {
			return nil, err
		}
		r.segments = segs
		t.routes = append(t.routes, &r)
	}
	return t, nil
}

// MustTable is NewTable for static tables
func MustTable(routes ...Route) *Table {
	t, err := NewTable(routes...)
	if err != nil {
		panic(err)
	}
	return t
}

// Routes returns the routes in declaration order
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	for i, r := range t.routes {
		out[i] = *r
	}
	return out
}

// Resolve matches rawPath, which may carry a query string
func (t *Table) Resolve(rawPath string) (*Match, error) {
	p, query, err := splitPath(rawPath)
	if err != nil {
		return nil, err
	}
	parts := splitSegments(p)
	for _, r := range t.routes {
		if params, ok := r.match(parts); ok {
			return &Match{Route: r, Path: p, Query: query, Params: params}, nil
		}
	}
	return nil, errors.NewNotFoundError("route").WithDetail("path", p)
}

func (r *Route) match(parts []string) (map[string]string, bool) {
	params := map[string]string{}
	for i, seg := range r.segments {
		if seg.catchAll {
			params[CatchAll] = strings.Join(parts[i:], "/")
			return params, true
		}
		if i >= len(parts) {
			return nil, false
		}
		switch {
		case seg.param != "":
			params[seg.param] = parts[i]
		case seg.literal != parts[i]:
			return nil, false
		}
	}
	if len(parts) != len(r.segments) {
		return nil, false
	}
	return params, true
}

func compilePattern(pattern string) ([]segment, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, errors.NewValidationError("route path must start with /").WithDetail("path", pattern)
	}
	parts := splitSegments(pattern)
	segs := make([]segment, 0, len(parts))
	for i, part := range parts {
		switch {
		case part == CatchAll:
			if i != len(parts)-1 {
				return nil, errors.NewValidationError("catch-all must be the last segment").WithDetail("path", pattern)
			}
			segs = append(segs, segment{catchAll: true})
		case strings.HasPrefix(part, ":"):
			name := part[1:]
			if !paramNamePattern.MatchString(name) {
				return nil, errors.NewValidationError(fmt.Sprintf("invalid route parameter %q", part)).WithDetail("path", pattern)
			}
			segs = append(segs, segment{param: name})
		default:
			segs = append(segs, segment{literal: part})
		}
	}
	return segs, nil
}

// splitPath separates and normalizes the path of a navigation target
func splitPath(rawPath string) (string, url.Values, error) {
	u, err := url.Parse(rawPath)
	if err != nil {
		return "", nil, errors.NewValidationError("invalid navigation target").WithCause(err).WithDetail("path", rawPath)
	}
	if u.IsAbs() || u.Host != "" {
		return "", nil, errors.NewValidationError("navigation target must be a path").WithDetail("path", rawPath)
	}
	p := "/" + strings.Join(splitSegments(u.Path), "/")
	return p, u.Query(), nil
}

func splitSegments(p string) []string {
	raw := strings.Split(strings.Trim(p, "/"), "/")
	parts := raw[:0]
	for _, s := range raw {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}
