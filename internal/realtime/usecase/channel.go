package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"tenant-portal/internal/metrics"
	"tenant-portal/internal/realtime/domain/model"
	apperrors "tenant-portal/internal/shared/errors"
	"tenant-portal/internal/shared/logger"

	"github.com/jonboulle/clockwork"
)

// State of the channel's connection lifecycle
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Defaults for reconnection
const (
	DefaultReconnectInterval    = 3 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultDialTimeout          = 10 * time.Second
)

var (
	// ErrNotConnected is returned by Send when the message was not written
	ErrNotConnected = apperrors.ErrNotConnected
	// ErrNoToken is returned by Connect when the session holds no token
	ErrNoToken = errors.New("realtime channel needs a session token")
)

// Conn is one open transport. ReadMessage is only called from the channel's
// reader goroutine, writes are serialized by the channel.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	// WriteClose sends a close frame with code and reason
	WriteClose(code int, reason string) error
	Close() error
}

// Dialer opens transports
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Conn, error)
}

// TokenSource supplies the session token
type TokenSource interface {
	Token() string
}

// Handler receives a decoded message. Handlers run one at a time in arrival order.
type Handler func(msg model.Message)

// Observer sees every decoded message before it is dispatched
type Observer interface {
	Observe(msg model.Message)
}

// Options configure a Channel
type Options struct {
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	DialTimeout          time.Duration
	Clock                clockwork.Clock
	Metrics              metrics.Recorder
	Logger               logger.Logger
	Observers            []Observer
}

// Channel is a reconnecting realtime connection bound to the session token.
type Channel struct {
	mu       sync.Mutex
	state    State
	conn     Conn
	gen      uint64 // bumped on every dial and on Close; events of older generations are ignored
	attempts int
	path     string
	timer    clockwork.Timer

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	dispatchMu sync.Mutex
	writeMu    sync.Mutex

	baseURL     *url.URL
	tokens      TokenSource
	dialer      Dialer
	interval    time.Duration
	maxAttempts int
	dialTimeout time.Duration
	clock       clockwork.Clock
	metrics     metrics.Recorder
	logger      logger.Logger
	observers   []Observer
}

// NewChannel creates a disconnected channel. baseURL is the API base URL the
// realtime URL is derived from.
func NewChannel(baseURL *url.URL, tokens TokenSource, dialer Dialer, opts Options) *Channel {
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = DefaultReconnectInterval
	}
	if opts.MaxReconnectAttempts < 0 {
		opts.MaxReconnectAttempts = 0
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	c := &Channel{
		handlers:    make(map[string]Handler),
		baseURL:     baseURL,
		tokens:      tokens,
		dialer:      dialer,
		interval:    opts.ReconnectInterval,
		maxAttempts: opts.MaxReconnectAttempts,
		dialTimeout: opts.DialTimeout,
		clock:       opts.Clock,
		metrics:     opts.Metrics,
		logger:      opts.Logger.WithComponent("realtime"),
		observers:   opts.Observers,
	}
	c.metrics.RecordRealtimeState(StateDisconnected.String())
	return c
}

// BuildURL derives <ws|wss>://host[:port]<path>?token=<token> from the API base URL
func BuildURL(base *url.URL, path, token string) (string, error) {
	if base == nil {
		return "", fmt.Errorf("no base URL")
	}
	u := url.URL{Host: base.Host, Path: path}
	switch base.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported base URL scheme %q", base.Scheme)
	}
	q := url.Values{}
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect opens the channel on path. It is a no-op while connected or
// connecting, and fails fast without a token. An explicit Connect resets the
// reconnect budget, including after the channel gave up.
func (c *Channel) Connect(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateConnected || c.state == StateConnecting {
		c.logger.Debugf("Connect(%s) ignored, channel is %s", path, c.state)
		return nil
	}
	if c.tokens.Token() == "" {
		c.logger.Warn("No session token, realtime channel stays disconnected")
		c.stopTimerLocked()
		c.setStateLocked(StateDisconnected)
		return ErrNoToken
	}

	c.stopTimerLocked()
	c.attempts = 0
	c.path = path
	return c.dialLocked()
}

// Close shuts the channel down with a normal closure. It never reconnects.
func (c *Channel) Close() {
	c.mu.Lock()
	c.gen++
	c.stopTimerLocked()
	conn := c.conn
	c.conn = nil
	prev := c.state
	c.setStateLocked(StateClosed)
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		if err := conn.WriteClose(model.CloseNormal, "Manual closure"); err != nil {
			c.logger.Debugf("Close frame not sent: %v", err)
		}
		c.writeMu.Unlock()
		_ = conn.Close()
	}
	if prev != StateClosed {
		c.logger.Info("Realtime channel closed")
	}
}

// Send encodes message as JSON and writes it. Without an open connection the
// message is dropped and ErrNotConnected returned; nothing is buffered.
func (c *Channel) Send(message interface{}) error {
	c.mu.Lock()
	if c.state != StateConnected || c.conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.Unlock()

	raw, err := encode(message)
	if err != nil {
		return apperrors.NewValidationError("message is not serializable").WithCause(err)
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(raw)
	c.writeMu.Unlock()
	if err != nil {
		// closing lets the reader observe the failure and run the close policy once
		_ = conn.Close()
		return apperrors.NewTransportError("failed to write realtime message").WithCause(err)
	}
	return nil
}

// SendTyped wraps payload into an envelope of messageType and sends it
func (c *Channel) SendTyped(messageType string, payload interface{}) error {
	raw, err := model.Encode(messageType, payload)
	if err != nil {
		return apperrors.NewValidationError("message is not serializable").WithCause(err)
	}
	return c.Send(rawFrame(raw))
}

// OnMessage registers handler for messageType, replacing any previous one.
// model.Wildcard registers the fallback handler.
func (c *Channel) OnMessage(messageType string, handler Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	if handler == nil {
		delete(c.handlers, messageType)
		return
	}
	c.handlers[messageType] = handler
}

// OffMessage removes the handler for messageType
func (c *Channel) OffMessage(messageType string) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	delete(c.handlers, messageType)
}

// State returns the current lifecycle state
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether messages can be sent right now
func (c *Channel) Connected() bool {
	return c.State() == StateConnected
}

// Active reports whether the channel holds or is trying to obtain a connection
func (c *Channel) Active() bool {
	switch c.State() {
	case StateConnecting, StateConnected, StateReconnecting:
		return true
	}
	return false
}

// ReconnectAttempts returns the attempts made since the last successful open
func (c *Channel) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Path returns the last path passed to Connect
func (c *Channel) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

func (c *Channel) dialLocked() error {
	rawURL, err := BuildURL(c.baseURL, c.path, c.tokens.Token())
	if err != nil {
		c.setStateLocked(StateDisconnected)
		return err
	}
	c.gen++
	gen := c.gen
	c.setStateLocked(StateConnecting)
	c.logger.WithFields(map[string]interface{}{
		"path":    c.path,
		"attempt": c.attempts,
	}).Debug("Dialing realtime channel")

	go c.dial(gen, rawURL)
	return nil
}

func (c *Channel) dial(gen uint64, rawURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.dialTimeout)
	defer cancel()

	conn, err := c.dialer.Dial(ctx, rawURL)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.logger.Warnf("Realtime dial failed: %v", err)
		if apperrors.IsUnauthenticated(err) {
			// retrying with a rejected token cannot succeed
			c.setStateLocked(StateDisconnected)
			c.mu.Unlock()
			return
		}
		c.handleCloseLocked(model.CloseAbnormal)
		c.mu.Unlock()
		return
	}

	c.conn = conn
	c.attempts = 0
	c.stopTimerLocked()
	c.setStateLocked(StateConnected)
	c.mu.Unlock()

	c.logger.WithFields(map[string]interface{}{"path": c.Path()}).Info("Realtime channel connected")
	go c.readLoop(gen, conn)
}

// readLoop is the only place a connection's close is observed, so the close
// policy runs exactly once per connection.
func (c *Channel) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			code := model.CloseAbnormal
			var ce *model.CloseError
			if errors.As(err, &ce) {
				code = ce.Code
			}

			c.mu.Lock()
			if gen == c.gen {
				c.conn = nil
				c.logger.Infof("Realtime transport closed with code %d: %v", code, err)
				c.handleCloseLocked(code)
			}
			c.mu.Unlock()
			return
		}
		c.dispatch(gen, data)
	}
}

// handleCloseLocked applies the reconnect policy. Caller holds mu.
func (c *Channel) handleCloseLocked(code int) {
	switch {
	case code == model.CloseNormal:
		c.setStateLocked(StateDisconnected)
	case c.attempts >= c.maxAttempts:
		c.logger.Errorf("Max reconnect attempts (%d) reached, realtime channel gives up", c.maxAttempts)
		c.setStateLocked(StateClosed)
	case c.tokens.Token() == "":
		c.logger.Warn("Session token gone, not reconnecting")
		c.setStateLocked(StateDisconnected)
	default:
		c.attempts++
		c.setStateLocked(StateReconnecting)
		c.metrics.RecordReconnectAttempt()
		c.logger.Infof("Reconnecting realtime channel in %s (%d/%d)", c.interval, c.attempts, c.maxAttempts)
		gen := c.gen
		c.stopTimerLocked()
		c.timer = c.clock.AfterFunc(c.interval, func() { c.retry(gen) })
	}
}

func (c *Channel) retry(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.state != StateReconnecting {
		return
	}
	c.timer = nil
	if c.tokens.Token() == "" {
		c.logger.Warn("Session token gone before reconnect, staying disconnected")
		c.setStateLocked(StateDisconnected)
		return
	}
	_ = c.dialLocked()
}

func (c *Channel) dispatch(gen uint64, data []byte) {
	msg, err := model.Decode(data)
	if err != nil {
		c.metrics.RecordDroppedMessage("malformed")
		c.logger.Debugf("Dropping malformed realtime frame: %v", err)
		return
	}

	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.mu.Lock()
	stale := gen != c.gen
	c.mu.Unlock()
	if stale {
		return
	}

	c.metrics.RecordRealtimeMessage(msg.Type())
	for _, o := range c.observers {
		c.safeCall(func() { o.Observe(msg) })
	}

	c.handlersMu.RLock()
	h, ok := c.handlers[msg.Type()]
	if !ok {
		h, ok = c.handlers[model.Wildcard]
	}
	c.handlersMu.RUnlock()

	if !ok {
		c.metrics.RecordDroppedMessage("unhandled")
		return
	}
	c.safeCall(func() { h(msg) })
}

func (c *Channel) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorf("Realtime handler panicked: %v", r)
		}
	}()
	fn()
}

func (c *Channel) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Channel) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.metrics.RecordRealtimeState(s.String())
}
