// Package platform implements the PlatformClient port against the fleet
// platform's JSON-RPC API. The platform exposes a single POST endpoint; every
// call names a method ("Authenticate", "Get", "Add", "Set") and carries its
// parameters, including the session credentials, in the request body.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/routeintel/fleetpanel/internal/domain/model"
	"github.com/routeintel/fleetpanel/internal/domain/port/driven"
	"github.com/routeintel/fleetpanel/internal/observability"
)

// Compile-time interface satisfaction check.
var _ driven.PlatformClient = (*Client)(nil)

// defaultHTTPClient enforces a request timeout as a safety net alongside
// context cancellation.
var defaultHTTPClient = &http.Client{Timeout: 30 * time.Second}

// Client implements the driven.PlatformClient port. It authenticates lazily:
// the first RPC triggers an Authenticate call, and an expired session is
// renewed transparently once per call before the failure surfaces.
type Client struct {
	creds      model.PlatformCredentials
	addInID    string
	httpClient *http.Client

	mu       sync.Mutex
	endpoint string  // rewritten when Authenticate reports a federation path
	session  *sessionCredentials
}

// NewClient creates a client for the given platform credentials. addInID is
// this widget's registration id with the platform; every add-in record write
// carries it.
func NewClient(creds model.PlatformCredentials, addInID string) *Client {
	return &Client{
		creds:      creds,
		addInID:    addInID,
		httpClient: defaultHTTPClient,
		endpoint:   rpcEndpoint(creds.Server),
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and
// server URL. This constructor is intended for testing, allowing injection of
// an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, server string, creds model.PlatformCredentials, addInID string) *Client {
	creds.Server = server
	return &Client{
		creds:      creds,
		addInID:    addInID,
		httpClient: httpClient,
		endpoint:   rpcEndpoint(server),
	}
}

// rpcEndpoint derives the RPC URL from a server base URL.
func rpcEndpoint(server string) string {
	return strings.TrimRight(server, "/") + "/apiv1"
}

// sessionCredentials is the platform's session token bundle, echoed verbatim
// inside the params of every authenticated call.
type sessionCredentials struct {
	UserName  string `json:"userName"`
	Database  string `json:"database"`
	SessionID string `json:"sessionId"`
}

// rpcRequest is the JSON body sent to the platform API.
type rpcRequest struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params"`
}

// rpcError is the error object of a failed platform call. The platform
// reports a human-readable message plus a list of named host exceptions; this
// client only interprets the names that signal an expired session.
type rpcError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Errors  []struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"errors"`
}

// rpcResponse is the envelope of every platform reply.
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// authResult is the payload returned by Authenticate.
type authResult struct {
	Credentials sessionCredentials `json:"credentials"`
	Path        string             `json:"path"`
}

// Authenticate signs in with the configured credentials and caches the
// session. It is called lazily by every other method but is also exposed so
// callers can verify fresh credentials before adopting them.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticateLocked(ctx)
}

// authenticateLocked performs the Authenticate RPC and updates the cached
// session and endpoint. Callers must hold c.mu.
func (c *Client) authenticateLocked(ctx context.Context) error {
	if !c.creds.Complete() {
		return &driven.GatewayError{
			Method:  "Authenticate",
			Message: "platform credentials are not configured",
		}
	}

	params := map[string]any{
		"userName": c.creds.Username,
		"password": c.creds.Password,
		"database": c.creds.Database,
	}

	var result authResult
	if err := c.post(ctx, c.endpoint, "Authenticate", params, &result); err != nil {
		return err
	}

	// The platform may answer from a different federation member; all
	// subsequent calls must go there.
	if result.Path != "" && result.Path != "ThisServer" {
		c.endpoint = rpcEndpoint("https://" + result.Path)
		slog.Info("platform session redirected", "endpoint", c.endpoint)
	}

	c.session = &result.Credentials
	slog.Debug("platform session established", "database", result.Credentials.Database)
	return nil
}

// call invokes an authenticated RPC. params must be a map; the session
// credentials are injected under the "credentials" key. An expired session is
// renewed once and the call retried; a second failure surfaces.
func (c *Client) call(ctx context.Context, method string, params map[string]any, out any) error {
	c.mu.Lock()
	if c.session == nil {
		if err := c.authenticateLocked(ctx); err != nil {
			c.mu.Unlock()
			return err
		}
	}
	endpoint, session := c.endpoint, *c.session
	c.mu.Unlock()

	params["credentials"] = session
	err := c.post(ctx, endpoint, method, params, out)
	if !sessionExpired(err) {
		return err
	}

	slog.Info("platform session expired, renewing", "method", method)
	c.mu.Lock()
	c.session = nil
	if authErr := c.authenticateLocked(ctx); authErr != nil {
		c.mu.Unlock()
		return authErr
	}
	endpoint, session = c.endpoint, *c.session
	c.mu.Unlock()

	params["credentials"] = session
	return c.post(ctx, endpoint, method, params, out)
}

// post performs one HTTP round-trip and decodes the RPC envelope. Any
// failure, transport or host-reported, is returned as *driven.GatewayError.
func (c *Client) post(ctx context.Context, endpoint, method string, params any, out any) error {
	start := time.Now()
	err := c.postOnce(ctx, endpoint, method, params, out)
	observability.ObserveGatewayCall(method, time.Since(start), err)
	return err
}

func (c *Client) postOnce(ctx context.Context, endpoint, method string, params any, out any) error {
	body, err := json.Marshal(rpcRequest{
		ID:     uuid.NewString(),
		Method: method,
		Params: params,
	})
	if err != nil {
		return &driven.GatewayError{Method: method, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &driven.GatewayError{Method: method, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &driven.GatewayError{Method: method, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &driven.GatewayError{
			Method:  method,
			Message: fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &driven.GatewayError{Method: method, Err: fmt.Errorf("decode response: %w", err)}
	}

	if envelope.Error != nil {
		gerr := &driven.GatewayError{
			Method:  method,
			Code:    envelope.Error.Code,
			Message: envelope.Error.Message,
		}
		if len(envelope.Error.Errors) > 0 {
			gerr.Name = envelope.Error.Errors[0].Name
			if gerr.Message == "" {
				gerr.Message = envelope.Error.Errors[0].Message
			}
		}
		return gerr
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return &driven.GatewayError{Method: method, Err: fmt.Errorf("decode result: %w", err)}
		}
	}

	return nil
}

// sessionExpired reports whether err is the platform telling us our session
// token is no longer valid.
func sessionExpired(err error) bool {
	var gerr *driven.GatewayError
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Name == "InvalidUserException" || gerr.Name == "SessionExpiredException"
}
