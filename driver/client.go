// ABOUTME: This file implements the token-free RPC transport beneath the session layer
// ABOUTME: Session management and retry policy live above; this only sends and classifies

package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"sync-bridge/models"
)

const rpcEndpoint = "/rpc"

// Client sends JSON envelope requests to the backend's RPC endpoint.
// It carries no session state so the session manager can be built on top
// of it without a dependency cycle.
type Client struct {
	baseURL    string
	realm      string
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
}

// NewClient creates an RPC client for the given backend base URL and realm
func NewClient(baseURL, realm string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		realm:     realm,
		logger:    logger,
		userAgent: "sync-bridge/1.0",
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				IdleConnTimeout:       90 * time.Second,
				MaxIdleConns:          10,
				MaxIdleConnsPerHost:   2,
			},
		},
	}
}

// Realm returns the backend tenant this client is bound to
func (c *Client) Realm() string {
	return c.realm
}

// SetHTTPClient allows injecting a custom HTTP client (useful for testing with proxies)
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetTimeout sets the HTTP client timeout for testing purposes
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// Call routes a procedure of the form "service.method" (method is the segment
// after the last dot) with an optional bearer token. The raw result payload is
// returned; application-level errors in the response surface as protocol errors.
func (c *Client) Call(ctx context.Context, token, procedure string, args []interface{}, kwargs map[string]interface{}) (json.RawMessage, error) {
	service, method, err := splitProcedure(procedure)
	if err != nil {
		return nil, err
	}
	return c.doCall(ctx, token, service, method, args, kwargs)
}

// CallPrivileged routes a procedure authenticated by the elevated service
// identity instead of a user token. The identity triple travels as the
// leading envelope args, the way the backend's inter-service protocol expects.
func (c *Client) CallPrivileged(ctx context.Context, identity *models.ServiceIdentity, procedure string, args []interface{}, kwargs map[string]interface{}) (json.RawMessage, error) {
	service, method, err := splitProcedure(procedure)
	if err != nil {
		return nil, err
	}
	if !identity.IsComplete() {
		return nil, NewAuthError(procedure, 0, "service identity is incomplete")
	}

	privileged := make([]interface{}, 0, len(args)+3)
	privileged = append(privileged, identity.Realm, identity.PrincipalID, identity.Secret)
	privileged = append(privileged, args...)

	return c.doCall(ctx, "", service, method, privileged, kwargs)
}

// Ping performs the unauthenticated connectivity probe
func (c *Client) Ping(ctx context.Context) (*VersionInfo, error) {
	raw, err := c.doCall(ctx, "", "common", "version", nil, nil)
	if err != nil {
		return nil, err
	}

	var info VersionInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, NewNetworkError("common.version", fmt.Errorf("malformed version payload: %w", err))
	}
	return &info, nil
}

// AuthenticateUser verifies end-user credentials and opens a session.
// This is a non-mutating check distinct from the elevated service login.
func (c *Client) AuthenticateUser(ctx context.Context, login, password string) (*SessionResult, error) {
	kwargs := map[string]interface{}{
		"realm":    c.realm,
		"login":    login,
		"password": password,
	}

	raw, err := c.doCall(ctx, "", "auth", "login", nil, kwargs)
	if err != nil {
		return nil, err
	}

	return decodeSessionResult("auth.login", raw)
}

// RefreshSession exchanges a refresh token for a new token pair
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*SessionResult, error) {
	kwargs := map[string]interface{}{
		"refresh_token": refreshToken,
	}

	raw, err := c.doCall(ctx, "", "auth", "refresh", nil, kwargs)
	if err != nil {
		return nil, err
	}

	return decodeSessionResult("auth.refresh", raw)
}

// Logout invalidates the session server-side. Callers treat failures as
// best-effort; local state is cleared regardless.
func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.doCall(ctx, token, "auth", "logout", nil, nil)
	return err
}

// AuthenticateService performs the elevated service login and returns the
// canonical principal id the backend assigned to the credential.
func (c *Client) AuthenticateService(ctx context.Context, principalID, secret string) (string, error) {
	args := []interface{}{c.realm, principalID, secret}

	raw, err := c.doCall(ctx, "", "common", "login", args, nil)
	if err != nil {
		return "", err
	}

	var result ServiceLoginResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", NewNetworkError("common.login", fmt.Errorf("malformed login payload: %w", err))
	}
	if result.PrincipalID == "" {
		return "", NewAuthError("common.login", 0, "service credentials rejected")
	}
	return result.PrincipalID, nil
}

// ListCapabilities fetches the entity types the backend exposes, authenticated
// by the elevated identity.
func (c *Client) ListCapabilities(ctx context.Context, identity *models.ServiceIdentity) ([]string, error) {
	raw, err := c.CallPrivileged(ctx, identity, "common.capabilities", nil, nil)
	if err != nil {
		return nil, err
	}

	var result CapabilitiesResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, NewNetworkError("common.capabilities", fmt.Errorf("malformed capabilities payload: %w", err))
	}
	return result.EntityTypes, nil
}

// doCall sends one envelope and classifies the outcome. No retries here.
func (c *Client) doCall(ctx context.Context, token, service, method string, args []interface{}, kwargs map[string]interface{}) (json.RawMessage, error) {
	procedure := service + "." + method

	envelope := rpcRequest{
		Service: service,
		Method:  method,
		Args:    args,
		Kwargs:  kwargs,
		ID:      uuid.New().String(),
	}
	if envelope.Args == nil {
		envelope.Args = []interface{}{}
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, NewValidationError(procedure, 0, fmt.Sprintf("unencodable request payload: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+rpcEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, NewValidationError(procedure, 0, fmt.Sprintf("malformed request: %v", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		classified := ClassifyTransportError(procedure, err)
		c.logger.Debug("RPC transport failure",
			"procedure", procedure,
			"kind", string(classified.Kind),
			"error", err)
		return nil, classified
	}
	defer resp.Body.Close()

	// Classify the status before touching the body as JSON
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		classified := ClassifyStatus(procedure, resp.StatusCode, string(body))
		c.logger.Debug("RPC call rejected",
			"procedure", procedure,
			"status_code", resp.StatusCode,
			"kind", string(classified.Kind))
		return nil, classified
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, NewNetworkError(procedure, fmt.Errorf("garbled response body: %w", err))
	}

	// A 200 response can still carry an application-level error object
	if decoded.Error != nil {
		c.logger.Debug("RPC call returned application error",
			"procedure", procedure,
			"code", decoded.Error.Code,
			"message", decoded.Error.Message)
		return nil, NewProtocolError(procedure, fmt.Sprintf("backend error %d: %s", decoded.Error.Code, decoded.Error.Message))
	}

	return decoded.Result, nil
}

func decodeSessionResult(procedure string, raw json.RawMessage) (*SessionResult, error) {
	var result SessionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, NewNetworkError(procedure, fmt.Errorf("malformed session payload: %w", err))
	}
	if result.AccessToken == "" {
		return nil, NewAuthError(procedure, 0, "backend returned no access token")
	}
	return &result, nil
}

func splitProcedure(procedure string) (string, string, error) {
	idx := strings.LastIndex(procedure, ".")
	if idx <= 0 || idx == len(procedure)-1 {
		return "", "", NewValidationError(procedure, 0, "procedure must be of the form service.method")
	}
	return procedure[:idx], procedure[idx+1:], nil
}
