// ABOUTME: This file defines domain models for the end-user auth session
// ABOUTME: Handles access/refresh token pairs and expiry-buffer checks

package models

import (
	"time"
)

// AuthSession represents an authenticated end-user session
type AuthSession struct {
	AccessToken  string                 `json:"access_token"`
	RefreshToken string                 `json:"refresh_token"`
	ExpiresAt    time.Time              `json:"expires_at"` // Calculated expiration time
	IssuedAt     time.Time              `json:"issued_at"`  // When the session was established
	User         map[string]interface{} `json:"user,omitempty"`
}

// NewAuthSession creates a session from a login or refresh result
func NewAuthSession(accessToken, refreshToken string, expiresAt time.Time, user map[string]interface{}) *AuthSession {
	return &AuthSession{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		IssuedAt:     time.Now(),
		User:         user,
	}
}

// IsAuthenticated reports whether the session carries an access token
func (s *AuthSession) IsAuthenticated() bool {
	return s != nil && s.AccessToken != ""
}

// IsExpired checks if the session's access token is expired
func (s *AuthSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// NeedsRefresh checks if the token expires within the buffer window
func (s *AuthSession) NeedsRefresh(buffer time.Duration) bool {
	return time.Now().Add(buffer).After(s.ExpiresAt)
}

// TimeUntilExpiry returns the duration until the access token expires
func (s *AuthSession) TimeUntilExpiry() time.Duration {
	return time.Until(s.ExpiresAt)
}

// UpdateFromRefresh replaces the token pair after a successful refresh.
// The refresh token is kept when the backend does not rotate it.
func (s *AuthSession) UpdateFromRefresh(accessToken, refreshToken string, expiresAt time.Time) {
	s.AccessToken = accessToken
	s.ExpiresAt = expiresAt
	s.IssuedAt = time.Now()

	if refreshToken != "" {
		s.RefreshToken = refreshToken
	}
}
