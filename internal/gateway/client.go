package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"tenant-portal/internal/session/domain/model"
	apperrors "tenant-portal/internal/shared/errors"
	"tenant-portal/internal/shared/logger"
	"tenant-portal/internal/tenant"

	"github.com/microcosm-cc/bluemonday"
)

// Backend endpoints
const (
	pathLogin          = "/api/login/"
	pathLogout         = "/api/logout"
	pathCompanyDetails = "/api/company-details"
	pathBroadcasts     = "/api/broadcasts"
)

const maxResponseBytes = 4 << 20

// envelope is the response wrapper every backend endpoint uses
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// APIClient is the typed client for the product backend. It sends every call
// through the gateway transport of httpClient.
type APIClient struct {
	http    *http.Client
	baseURL *url.URL
	policy  *bluemonday.Policy
	logger  logger.Logger
}

// NewAPIClient creates a client for baseURL
func NewAPIClient(baseURL *url.URL, httpClient *http.Client, log logger.Logger) *APIClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &APIClient{
		http:    httpClient,
		baseURL: baseURL,
		policy:  bluemonday.StrictPolicy(),
		logger:  log.WithComponent("api_client"),
	}
}

// Login authenticates with the endpoint for kind
func (c *APIClient) Login(ctx context.Context, kind tenant.LoginKind, email, password string) (*model.LoginResult, error) {
	if kind == "" {
		return nil, apperrors.NewValidationError("application has no login endpoint")
	}
	var res model.LoginResult
	if err := c.do(ctx, http.MethodPost, pathLogin+string(kind), credentials{Email: email, Password: password}, &res); err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, apperrors.NewMalformedMessageError("login response carried no token").WithComponent("api_client")
	}
	return &res, nil
}

// Logout revokes the current token on the backend
func (c *APIClient) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, pathLogout, nil, nil)
}

// CompanyProfile reads the company details of the authenticated user
func (c *APIClient) CompanyProfile(ctx context.Context) (*model.CompanyProfile, error) {
	var profile model.CompanyProfile
	if err := c.do(ctx, http.MethodGet, pathCompanyDetails, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Broadcasts returns the broadcast feed in backend order, with markup stripped
// from message bodies.
func (c *APIClient) Broadcasts(ctx context.Context) ([]model.BroadcastMessage, error) {
	var messages []model.BroadcastMessage
	if err := c.do(ctx, http.MethodGet, pathBroadcasts, nil, &messages); err != nil {
		return nil, err
	}
	for i := range messages {
		messages[i].Message = c.policy.Sanitize(messages[i].Message)
	}
	return messages, nil
}

// MarkBroadcastRead marks one broadcast as read for the current user
func (c *APIClient) MarkBroadcastRead(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, path.Join(pathBroadcasts, strconv.FormatInt(id, 10), "read"), nil, nil)
}

func (c *APIClient) endpoint(p string) string {
	u := *c.baseURL
	u.Path = path.Join("/", c.baseURL.Path, p)
	return u.String()
}

func (c *APIClient) do(ctx context.Context, method, p string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return apperrors.NewInternalError("failed to encode request").WithCause(err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(p), reader)
	if err != nil {
		return apperrors.NewInternalError("failed to build request").WithCause(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.NewTransportError(fmt.Sprintf("%s %s failed", method, p)).WithCause(err).WithComponent("api_client")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperrors.NewTransportError("failed to read response").WithCause(err).WithComponent("api_client")
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, env.Message)
	}
	if decodeErr != nil {
		return apperrors.NewMalformedMessageError("response is not a valid envelope").WithCause(decodeErr).WithComponent("api_client")
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		c.logger.WithContext(ctx).Warnf("Unexpected data shape from %s: %v", p, err)
		return apperrors.NewMalformedMessageError("unexpected response data").WithCause(err).WithComponent("api_client")
	}
	return nil
}

func statusError(status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	var err *apperrors.AppError
	switch status {
	case http.StatusUnauthorized:
		err = apperrors.NewUnauthenticatedError(message)
	case http.StatusForbidden:
		err = apperrors.NewEntitlementError(message)
	case http.StatusNotFound:
		err = apperrors.NewNotFoundError("resource").WithDetail("message", message)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		err = apperrors.NewValidationError(message)
	default:
		err = apperrors.NewTransportError(message)
		err.HTTPCode = status
	}
	return err.WithComponent("api_client").WithDetail("status", status)
}
