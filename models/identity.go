// ABOUTME: This file defines the elevated service identity used for privileged RPCs
// ABOUTME: Kept separate from AuthSession and never derived from end-user credentials

package models

import (
	"time"
)

// ServiceIdentity represents the backend-to-backend credential of the app itself
type ServiceIdentity struct {
	PrincipalID string    `json:"principal_id"`
	Secret      string    `json:"secret"`
	Realm       string    `json:"realm"`
	IssuedAt    time.Time `json:"issued_at"`
}

// NewServiceIdentity creates an identity from an elevated login result
func NewServiceIdentity(principalID, secret, realm string) *ServiceIdentity {
	return &ServiceIdentity{
		PrincipalID: principalID,
		Secret:      secret,
		Realm:       realm,
		IssuedAt:    time.Now(),
	}
}

// IsComplete reports whether the identity can authenticate privileged calls
func (i *ServiceIdentity) IsComplete() bool {
	return i != nil && i.PrincipalID != "" && i.Secret != "" && i.Realm != ""
}
