package navigation

import (
	"context"
	"sync"
	"sync/atomic"

	"tenant-portal/internal/shared/errors"
	"tenant-portal/internal/shared/logger"
)

const maxRedirects = 10

// Router resolves navigation targets against its table, runs the guard chain
// and tracks the current location. Navigations are serialized.
type Router struct {
	navMu   sync.Mutex
	mu      sync.RWMutex
	table   *Table
	guards  []Guard
	after   []func(to, from *Match)
	current *Match
	ready   atomic.Bool
	logger  logger.Logger
}

// NewRouter creates a router over table. It is not Ready until Start.
func NewRouter(table *Table, log logger.Logger) *Router {
	if log == nil {
		log = logger.NewNop()
	}
	return &Router{table: table, logger: log.WithComponent("navigation")}
}

// BeforeEach appends a guard. Guards run in registration order.
func (r *Router) BeforeEach(g Guard) {
	r.mu.Lock()
	r.guards = append(r.guards, g)
	r.mu.Unlock()
}

// AfterEach registers a hook called after every completed navigation
func (r *Router) AfterEach(fn func(to, from *Match)) {
	r.mu.Lock()
	r.after = append(r.after, fn)
	r.mu.Unlock()
}

// Start performs the initial navigation and marks the router ready
func (r *Router) Start(ctx context.Context, initial string) error {
	if initial == "" {
		initial = "/"
	}
	err := r.Push(ctx, initial)
	r.ready.Store(true)
	return err
}

// Ready reports whether the initial navigation happened
func (r *Router) Ready() bool {
	return r.ready.Load()
}

// Current returns the current location, nil before Start
func (r *Router) Current() *Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Push navigates to path. Route redirects and guard redirects are followed
// until a target is accepted.
func (r *Router) Push(ctx context.Context, path string) error {
	r.navMu.Lock()
	to, from, err := r.navigate(ctx, path)
	r.navMu.Unlock()
	if err != nil {
		return err
	}

	// hooks run outside the navigation lock so they may navigate themselves
	r.mu.RLock()
	after := append([]func(to, from *Match){}, r.after...)
	r.mu.RUnlock()
	for _, fn := range after {
		fn(to, from)
	}
	return nil
}

func (r *Router) navigate(ctx context.Context, path string) (*Match, *Match, error) {
	r.mu.RLock()
	from := r.current
	guards := append([]Guard{}, r.guards...)
	r.mu.RUnlock()

	target := path
	for hops := 0; hops <= maxRedirects; hops++ {
		to, err := r.table.Resolve(target)
		if err != nil {
			return nil, nil, err
		}
		if to.Route.Redirect != "" {
			target = to.Route.Redirect
			continue
		}

		redirect, err := runGuards(ctx, guards, to, from)
		if err != nil {
			return nil, nil, errors.WrapError(err, "navigation guard failed").WithComponent("navigation").WithDetail("path", to.Path)
		}
		if redirect != "" && redirect != to.Path {
			target = redirect
			continue
		}

		r.mu.Lock()
		r.current = to
		r.mu.Unlock()
		r.logger.WithContext(ctx).Debugf("Navigated to %s", to.FullPath())
		return to, from, nil
	}
	return nil, nil, errors.NewInternalError("too many navigation redirects").WithComponent("navigation").WithDetail("path", path)
}

func runGuards(ctx context.Context, guards []Guard, to, from *Match) (string, error) {
	for _, g := range guards {
		d, err := g.Before(ctx, to, from)
		if err != nil {
			return "", err
		}
		if d.Redirect != "" {
			return d.Redirect, nil
		}
	}
	return "", nil
}
