// Package websocket adapts github.com/fasthttp/websocket to the realtime
// channel's transport interfaces.
package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tenant-portal/internal/realtime/domain/model"
	"tenant-portal/internal/realtime/usecase"
	apperrors "tenant-portal/internal/shared/errors"

	"github.com/fasthttp/websocket"
)

const userAgent = "TenantPortal/1.0"

// Dialer opens websocket connections
type Dialer struct {
	dialer *websocket.Dialer
}

// NewDialer creates a Dialer with the given handshake timeout
func NewDialer(handshakeTimeout time.Duration) *Dialer {
	return &Dialer{dialer: &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}}
}

// Dial implements usecase.Dialer. A handshake answered with 401 or 403 is
// reported as an unauthenticated error so the channel does not retry it.
func (d *Dialer) Dial(ctx context.Context, rawURL string) (usecase.Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, rawURL, http.Header{"User-Agent": {userAgent}})
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, apperrors.NewUnauthenticatedError("realtime handshake rejected the token").
				WithCause(err).
				WithComponent("realtime").
				WithDetail("status", resp.StatusCode)
		}
		return nil, apperrors.NewTransportError("realtime handshake failed").WithCause(err).WithComponent("realtime")
	}
	return &Conn{conn: conn}, nil
}

// Conn wraps a websocket connection
type Conn struct {
	conn *websocket.Conn
}

// ReadMessage returns the next data frame. Close frames and broken transports
// are reported as *model.CloseError.
func (c *Conn) ReadMessage() ([]byte, error) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, closeError(err)
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// WriteMessage sends data as a text frame
func (c *Conn) WriteMessage(data []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WriteClose sends a close frame
func (c *Conn) WriteClose(code int, reason string) error {
	return c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

// Close closes the underlying network connection
func (c *Conn) Close() error {
	return c.conn.Close()
}

func closeError(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		code := ce.Code
		if code == websocket.CloseNoStatusReceived {
			code = model.CloseAbnormal
		}
		return &model.CloseError{Code: code, Reason: ce.Text}
	}
	return &model.CloseError{Code: model.CloseAbnormal, Reason: err.Error()}
}
