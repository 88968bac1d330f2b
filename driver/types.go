// ABOUTME: This file defines the JSON envelope wire format for the backend RPC protocol
// ABOUTME: Requests carry service/method/args/kwargs/id; responses carry result or error

package driver

import (
	"encoding/json"
)

// rpcRequest is the envelope POSTed to the backend's single RPC endpoint
type rpcRequest struct {
	Service string                 `json:"service"`
	Method  string                 `json:"method"`
	Args    []interface{}          `json:"args"`
	Kwargs  map[string]interface{} `json:"kwargs,omitempty"`
	ID      string                 `json:"id"`
}

// rpcResponse is the envelope returned by the backend
type rpcResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcErrorBody   `json:"error,omitempty"`
}

// rpcErrorBody is the application-level error object inside a 200 response
type rpcErrorBody struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// VersionInfo is the result of the unauthenticated version probe
type VersionInfo struct {
	ServerVersion string `json:"server_version"`
	Protocol      int    `json:"protocol"`
}

// SessionResult is the payload returned by user login and session refresh
type SessionResult struct {
	AccessToken  string                 `json:"access_token"`
	RefreshToken string                 `json:"refresh_token,omitempty"` // May be absent when not rotated
	ExpiresIn    int                    `json:"expires_in,omitempty"`    // Seconds; may be absent, see JWT fallback
	User         map[string]interface{} `json:"user,omitempty"`
}

// ServiceLoginResult is the payload returned by the elevated service login
type ServiceLoginResult struct {
	PrincipalID string `json:"principal_id"`
}

// CapabilitiesResult lists the entity types the backend exposes
type CapabilitiesResult struct {
	EntityTypes []string `json:"entity_types"`
}
