// Package gateway is the shared HTTP path to the product backend. It attaches
// the session credential to every request and tears the session down when the
// backend rejects it.
package gateway

import (
	"context"
	"net/http"
	"time"

	"tenant-portal/internal/metrics"
	"tenant-portal/internal/shared/logger"
	"tenant-portal/internal/shared/utils"

	"github.com/google/uuid"
)

const (
	headerAuthorization = "Authorization"
	headerRequestID     = "X-Request-ID"
)

// CredentialSource supplies the bearer token. It must not block.
type CredentialSource interface {
	Token() string
}

// UnauthorizedHandler reacts to a response that rejected the credential
type UnauthorizedHandler interface {
	HandleUnauthorized(ctx context.Context)
}

// Transport is an http.RoundTripper that authenticates outgoing requests and
// dispatches authentication-denied responses to an UnauthorizedHandler.
type Transport struct {
	base         http.RoundTripper
	credentials  CredentialSource
	unauthorized UnauthorizedHandler
	metrics      metrics.Recorder
	logger       logger.Logger
}

// NewTransport wraps base. A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper, credentials CredentialSource, unauthorized UnauthorizedHandler, rec metrics.Recorder, log logger.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Transport{
		base:         base,
		credentials:  credentials,
		unauthorized: unauthorized,
		metrics:      rec,
		logger:       log.WithComponent("gateway"),
	}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	out := req.Clone(ctx)

	if token := t.credentials.Token(); token != "" {
		out.Header.Set(headerAuthorization, "Bearer "+token)
	}
	if out.Header.Get(headerRequestID) == "" {
		out.Header.Set(headerRequestID, utils.GetRequestIDOrDefault(ctx, uuid.NewString()))
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(out)
	t.metrics.RecordHTTPLatency(time.Since(start))
	if err != nil {
		t.logger.WithContext(ctx).Warnf("%s %s failed: %v", out.Method, out.URL.Path, err)
		return nil, err
	}
	t.metrics.RecordHTTPStatus(resp.StatusCode)

	if resp.StatusCode == http.StatusUnauthorized {
		t.metrics.RecordUnauthorized()
		t.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"method":     out.Method,
			"path":       out.URL.Path,
			"request_id": out.Header.Get(headerRequestID),
		}).Warn("Backend rejected the session credential")
		if t.unauthorized != nil {
			t.unauthorized.HandleUnauthorized(ctx)
		}
	}
	return resp, nil
}

// NewHTTPClient returns a client whose transport is t
func NewHTTPClient(t *Transport, timeout time.Duration) *http.Client {
	return &http.Client{Transport: t, Timeout: timeout}
}
