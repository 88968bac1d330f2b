// ABOUTME: This file defines storage for the elevated service identity
// ABOUTME: Held under its own key, never mixed with the end-user session

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"sync-bridge/models"
)

// IdentityRepository defines storage operations for the service identity
type IdentityRepository interface {
	// GetIdentity retrieves the stored identity, or ErrIdentityNotFound
	GetIdentity(ctx context.Context) (*models.ServiceIdentity, error)

	// SaveIdentity persists the identity, replacing any previous one
	SaveIdentity(ctx context.Context, identity *models.ServiceIdentity) error

	// ClearIdentity removes the stored identity. Idempotent.
	ClearIdentity(ctx context.Context) error
}

// KVIdentityRepository stores the identity as JSON under a fixed key
type KVIdentityRepository struct {
	store KeyValueStore
}

// NewKVIdentityRepository creates an identity repository over the given store
func NewKVIdentityRepository(store KeyValueStore) *KVIdentityRepository {
	return &KVIdentityRepository{store: store}
}

// GetIdentity retrieves the stored identity, or ErrIdentityNotFound
func (r *KVIdentityRepository) GetIdentity(ctx context.Context) (*models.ServiceIdentity, error) {
	value, err := r.store.Get(ctx, keyServiceIdentity)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to read service identity: %w", err)
	}

	var identity models.ServiceIdentity
	if err := json.Unmarshal(value, &identity); err != nil {
		return nil, fmt.Errorf("failed to decode stored identity: %w", err)
	}
	return &identity, nil
}

// SaveIdentity persists the identity, replacing any previous one
func (r *KVIdentityRepository) SaveIdentity(ctx context.Context, identity *models.ServiceIdentity) error {
	if !identity.IsComplete() {
		return fmt.Errorf("cannot save incomplete service identity")
	}

	value, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	return r.store.Set(ctx, keyServiceIdentity, value)
}

// ClearIdentity removes the stored identity. Idempotent.
func (r *KVIdentityRepository) ClearIdentity(ctx context.Context) error {
	return r.store.Remove(ctx, keyServiceIdentity)
}
