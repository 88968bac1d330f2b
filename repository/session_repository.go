// ABOUTME: This file defines session storage over the durable key-value store
// ABOUTME: The session manager is the only writer; everything else reads through it

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"sync-bridge/models"
)

// SessionRepository defines storage operations for the end-user auth session
type SessionRepository interface {
	// GetSession retrieves the stored session, or ErrSessionNotFound
	GetSession(ctx context.Context) (*models.AuthSession, error)

	// SaveSession persists the session, replacing any previous one
	SaveSession(ctx context.Context, session *models.AuthSession) error

	// ClearSession removes the stored session. Idempotent.
	ClearSession(ctx context.Context) error
}

// KVSessionRepository stores the session as JSON under a fixed key
type KVSessionRepository struct {
	store KeyValueStore
}

// NewKVSessionRepository creates a session repository over the given store
func NewKVSessionRepository(store KeyValueStore) *KVSessionRepository {
	return &KVSessionRepository{store: store}
}

// GetSession retrieves the stored session, or ErrSessionNotFound
func (r *KVSessionRepository) GetSession(ctx context.Context) (*models.AuthSession, error) {
	value, err := r.store.Get(ctx, keySession)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var session models.AuthSession
	if err := json.Unmarshal(value, &session); err != nil {
		return nil, fmt.Errorf("failed to decode stored session: %w", err)
	}
	return &session, nil
}

// SaveSession persists the session, replacing any previous one
func (r *KVSessionRepository) SaveSession(ctx context.Context, session *models.AuthSession) error {
	if session == nil || session.AccessToken == "" {
		return fmt.Errorf("cannot save session without an access token")
	}

	value, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return r.store.Set(ctx, keySession, value)
}

// ClearSession removes the stored session. Idempotent.
func (r *KVSessionRepository) ClearSession(ctx context.Context) error {
	return r.store.Remove(ctx, keySession)
}
