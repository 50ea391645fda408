package gateway

import (
	"context"

	"tenant-portal/internal/shared/logger"
)

// SessionClearer is the write side of the session used on authentication failure
type SessionClearer interface {
	ClearAuth(ctx context.Context)
}

// ChannelCloser is the realtime channel as seen by the failure handler
type ChannelCloser interface {
	Active() bool
	Close()
}

// Navigator is the client-side router of the selected application
type Navigator interface {
	Ready() bool
	Push(ctx context.Context, path string) error
}

// Redirector restarts the whole application at path. Used when the router is not ready.
type Redirector interface {
	HardRedirect(path string)
}

// RedirectFunc adapts a function to Redirector
type RedirectFunc func(path string)

// HardRedirect calls f(path)
func (f RedirectFunc) HardRedirect(path string) { f(path) }

// AuthFailureHandler runs the teardown sequence for a rejected credential:
// clear the session, close the realtime channel, then navigate to login. The
// channel is closed before navigating so no reconnect timer outlives the token.
type AuthFailureHandler struct {
	session    SessionClearer
	channel    ChannelCloser
	navigator  Navigator
	redirector Redirector
	loginPath  string
	logger     logger.Logger
}

// NewAuthFailureHandler wires the teardown collaborators. channel may be nil
// for applications without realtime.
func NewAuthFailureHandler(session SessionClearer, channel ChannelCloser, navigator Navigator, redirector Redirector, loginPath string, log logger.Logger) *AuthFailureHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &AuthFailureHandler{
		session:    session,
		channel:    channel,
		navigator:  navigator,
		redirector: redirector,
		loginPath:  loginPath,
		logger:     log.WithComponent("gateway"),
	}
}

// HandleUnauthorized implements UnauthorizedHandler
func (h *AuthFailureHandler) HandleUnauthorized(ctx context.Context) {
	h.session.ClearAuth(ctx)

	if h.channel != nil && h.channel.Active() {
		h.logger.Info("Closing realtime channel after authentication failure")
		h.channel.Close()
	}

	if h.navigator != nil && h.navigator.Ready() {
		err := h.navigator.Push(ctx, h.loginPath)
		if err == nil {
			return
		}
		h.logger.Warnf("Navigation to %s failed, falling back to redirect: %v", h.loginPath, err)
	}
	if h.redirector != nil {
		h.redirector.HardRedirect(h.loginPath)
	}
}
